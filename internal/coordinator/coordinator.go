// Package coordinator drives the Recording Coordinator: it owns the pure
// fsm.Context, executes the effects fsm.Step returns against real audio,
// transport, indicator, and output adapters, and feeds system-probe
// observations back in as events. No method here is safe to call from more
// than one goroutine except Handle, State, and the notifier Run loops, which
// only ever post to the event channel.
package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/fsm"
	"github.com/wanpengxie/dictate/internal/ipc"
	"github.com/wanpengxie/dictate/internal/metrics"
	"github.com/wanpengxie/dictate/internal/output"
	"github.com/wanpengxie/dictate/internal/transcript"
)

const eventQueueDepth = 32

// Coordinator is the single-instance owner of one dictation daemon's
// lifecycle. Construct with New and drive it with Run; Handle serves IPC
// commands from any goroutine.
type Coordinator struct {
	cfg       config.Config
	logger    *slog.Logger
	indicator indicatorController
	commit    committer
	recorder  *metrics.Recorder

	probe        probe
	selectDevice deviceSelector
	startCapture captureStarter
	dialTransport transportDialer

	events chan fsm.Event

	// mu guards every field the event loop and its spawned bring-up/teardown
	// goroutines touch: the fsm context, adapter handles, and the
	// in-progress transcript segments. Background notifier goroutines never
	// read these fields directly; they only ever post events.
	mu       sync.Mutex
	fsmCtx   fsm.Context
	capture  captureStream
	queue    *audio.Queue
	sender   *audio.Sender
	client   transportClient
	segments []string
	started  time.Time
	summary  SessionSummary

	// transitioned is closed and replaced on every fsm.Step call, letting
	// RunSession wait for a state change without polling on a fixed
	// interval.
	transitioned chan struct{}

	timerMu sync.Mutex
	timers  map[fsm.TimerName]*time.Timer

	silenceMu  sync.Mutex
	lastLoudAt time.Time

	debugMu             sync.Mutex
	debugTransportFile  *os.File

	closeCh chan struct{}
}

// New constructs a Coordinator wired to real adapters.
func New(cfg config.Config, logger *slog.Logger, indicatorCtl indicatorController, recorder *metrics.Recorder) *Coordinator {
	if recorder == nil {
		recorder, _ = metrics.NewRecorder(nil)
	}
	return newCoordinator(
		cfg,
		logger,
		indicatorCtl,
		output.NewCommitter(cfg, logger),
		recorder,
		sysprobeAdapter{},
		defaultDeviceSelector,
		defaultCaptureStarter,
		defaultTransportDialer,
	)
}

// newCoordinator is the fully-parameterized constructor used by New and by
// tests to substitute fake adapters.
func newCoordinator(
	cfg config.Config,
	logger *slog.Logger,
	indicatorCtl indicatorController,
	commit committer,
	recorder *metrics.Recorder,
	p probe,
	selectDevice deviceSelector,
	startCapture captureStarter,
	dialTransport transportDialer,
) *Coordinator {
	return &Coordinator{
		cfg:           cfg,
		logger:        logger,
		indicator:     indicatorCtl,
		commit:        commit,
		recorder:      recorder,
		probe:         p,
		selectDevice:  selectDevice,
		startCapture:  startCapture,
		dialTransport: dialTransport,
		events:        make(chan fsm.Event, eventQueueDepth),
		fsmCtx:        fsm.Idle(),
		timers:        make(map[fsm.TimerName]*time.Timer),
		transitioned:  make(chan struct{}),
		closeCh:       make(chan struct{}),
	}
}

// SessionSummary reports the outcome of one RunSession cycle: the fields a
// one-shot owner process logs on exit and echoes to its stdout/stderr.
type SessionSummary struct {
	State          fsm.State
	Transcript     string
	Cancelled      bool
	Err            error
	AudioDevice    string
	BytesCaptured  int64
	StartedAt      time.Time
	FinishedAt     time.Time
	FocusedMonitor string
}

// State returns a snapshot of the current FSM state, safe for concurrent
// callers.
func (c *Coordinator) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsmCtx.State
}

// post enqueues an event, dropping it if the queue is saturated rather than
// blocking the caller; a saturated queue means the loop is already behind
// and a dropped system-probe observation is preferable to a deadlock.
func (c *Coordinator) post(ev fsm.Event) {
	select {
	case c.events <- ev:
	default:
		if c.logger != nil {
			c.logger.Warn("coordinator event queue saturated; dropping event", "event_kind", string(ev.Kind))
		}
	}
}

// Run drives the event loop until ctx is canceled. It also starts the
// system-probe notifiers (sleep/wake, device-change) for the lifetime of the
// call.
func (c *Coordinator) Run(ctx context.Context) error {
	probeCtx, cancelProbes := context.WithCancel(ctx)
	defer cancelProbes()
	c.startSystemProbes(probeCtx)

	for {
		select {
		case <-ctx.Done():
			close(c.closeCh)
			return nil
		case ev := <-c.events:
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Coordinator) handleEvent(ctx context.Context, ev fsm.Event) {
	c.mu.Lock()
	before := c.fsmCtx
	next, effects := fsm.Step(before, ev)
	c.fsmCtx = next
	woken := c.transitioned
	c.transitioned = make(chan struct{})
	c.mu.Unlock()
	close(woken)

	c.logTransition(ev, before, next)

	for _, eff := range effects {
		c.executeEffect(ctx, eff)
		if c.recorder != nil {
			c.recorder.RecordEffect(string(eff.Kind))
		}
	}
}

func (c *Coordinator) logTransition(ev fsm.Event, before, after fsm.Context) {
	if c.logger == nil {
		return
	}
	level := slog.LevelDebug
	if isFaultEvent(ev.Kind) {
		level = slog.LevelWarn
		if c.recorder != nil {
			c.recorder.RecordFault(string(ev.Kind))
		}
	}
	c.logger.Log(context.Background(), level, "coordinator event",
		"event_kind", string(ev.Kind),
		"session_token", ev.SessionToken,
		"from_state", string(before.State),
		"to_state", string(after.State),
	)
}

// isFaultEvent reports whether kind belongs to the *Error/*Denied/*Timeout/
// *Gone fault-path family that warrants Warn/Error-level logging.
func isFaultEvent(kind fsm.EventKind) bool {
	s := string(kind)
	return strings.HasSuffix(s, "_error") ||
		strings.HasSuffix(s, "_denied") ||
		strings.HasSuffix(s, "_timeout") ||
		strings.HasSuffix(s, "_gone") ||
		strings.HasSuffix(s, "_failed") ||
		s == "network_unavailable"
}

// newSessionToken mints a fresh unguessable session identifier.
func newSessionToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// currentSessionToken snapshots the live session token.
func (c *Coordinator) currentSessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSessionTokenLocked()
}

// currentSessionTokenLocked is currentSessionToken for callers that already
// hold c.mu, used to re-check liveness atomically with a resource store.
func (c *Coordinator) currentSessionTokenLocked() string {
	return c.fsmCtx.SessionToken
}

// assembleTranscript builds the final transcript text from accumulated
// segments under the configured formatting options.
func (c *Coordinator) assembleTranscript() string {
	c.mu.Lock()
	segments := append([]string(nil), c.segments...)
	c.mu.Unlock()
	return transcript.Assemble(segments, transcript.Options{
		TrailingSpace:       c.cfg.Transcript.TrailingSpace,
		CapitalizeSentences: c.cfg.Transcript.CapitalizeSentences,
	})
}

func (c *Coordinator) stateChangeSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitioned
}

func (c *Coordinator) snapshotSummary() SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// RunSession drives exactly one dictation cycle: start the event loop,
// request a new session, wait for the fsm to settle back into Idle or
// Error, then stop the loop and report a summary. This is the one-shot
// owner-process model: one invocation claims the IPC socket, runs one
// recording, and exits once it is committed (or failed).
func (c *Coordinator) RunSession(ctx context.Context) SessionSummary {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		_ = c.Run(loopCtx)
		close(runDone)
	}()

	c.post(fsm.Event{Kind: fsm.EventUserStart, NewToken: newSessionToken()})
	c.waitForSessionEnd(ctx)

	cancel()
	<-runDone
	return c.snapshotSummary()
}

func (c *Coordinator) waitForSessionEnd(ctx context.Context) {
	seenActive := false
	for {
		sig := c.stateChangeSignal()
		state := c.State()
		if state != fsm.StateIdle {
			seenActive = true
		}
		if seenActive && (state == fsm.StateIdle || state == fsm.StateError) {
			return
		}
		select {
		case <-sig:
		case <-ctx.Done():
			return
		}
	}
}

var _ ipc.Handler = (*Coordinator)(nil)
