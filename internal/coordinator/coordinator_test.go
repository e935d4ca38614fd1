package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/fsm"
	"github.com/wanpengxie/dictate/internal/ipc"
	"github.com/wanpengxie/dictate/internal/transport"
)

func newTestCoordinator(t *testing.T, p probe, capture *fakeCapture, tr *fakeTransport, commit *fakeCommitter, ind *fakeIndicator) *Coordinator {
	t.Helper()
	device := audio.Device{ID: "fake-mic", Description: "fake", Available: true}

	selectDevice := func(context.Context, string, []string) (audio.Selection, error) {
		return audio.Selection{Device: device}, nil
	}
	startCapture := func(context.Context, audio.Device) (captureStream, error) {
		return capture, nil
	}
	dialTransport := func(config.Config, string) transportClient {
		return tr
	}

	c := newCoordinator(testConfig(), nil, ind, commit, nil, p, selectDevice, startCapture, dialTransport)
	return c
}

func runCoordinator(t *testing.T, c *Coordinator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("coordinator Run did not exit after cancel")
		}
	})
	return cancel
}

func waitForState(t *testing.T, c *Coordinator, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("coordinator did not reach state %s, stuck at %s", want, c.State())
}

func TestHandleStatusReportsCurrentState(t *testing.T) {
	capture := newFakeCapture(audio.Device{}, nil)
	c := newTestCoordinator(t, &fakeProbe{}, capture, newFakeTransport(), &fakeCommitter{}, &fakeIndicator{})
	runCoordinator(t, c)

	resp := c.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateIdle), resp.State)
}

func TestHandleStartDrivesFullSessionToRecording(t *testing.T) {
	frames := [][]byte{make([]byte, 320), make([]byte, 320)}
	capture := newFakeCapture(audio.Device{ID: "fake-mic"}, frames)
	tr := newFakeTransport()
	commit := &fakeCommitter{}
	ind := &fakeIndicator{}
	c := newTestCoordinator(t, &fakeProbe{}, capture, tr, commit, ind)
	runCoordinator(t, c)

	resp := c.Handle(context.Background(), ipc.Request{Command: "start"})
	require.True(t, resp.OK)

	waitForState(t, c, fsm.StateRecording)
}

func TestHandleStartRejectedWhileRecording(t *testing.T) {
	capture := newFakeCapture(audio.Device{ID: "fake-mic"}, nil)
	c := newTestCoordinator(t, &fakeProbe{}, capture, newFakeTransport(), &fakeCommitter{}, &fakeIndicator{})
	runCoordinator(t, c)

	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "start"}).OK)
	waitForState(t, c, fsm.StateRecording)

	resp := c.Handle(context.Background(), ipc.Request{Command: "start"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot start")
}

func TestHandleStopCommitsAssembledTranscript(t *testing.T) {
	capture := newFakeCapture(audio.Device{ID: "fake-mic"}, [][]byte{make([]byte, 320)})
	tr := newFakeTransport()
	commit := &fakeCommitter{}
	c := newTestCoordinator(t, &fakeProbe{}, capture, tr, commit, &fakeIndicator{})
	runCoordinator(t, c)

	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "start"}).OK)
	waitForState(t, c, fsm.StateRecording)

	resp := c.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)

	waitForState(t, c, fsm.StateIdle)
	require.Equal(t, "hello world", commit.last())
}

func TestHandleCancelDiscardsAccumulatedSegments(t *testing.T) {
	capture := newFakeCapture(audio.Device{ID: "fake-mic"}, nil)
	commit := &fakeCommitter{}
	c := newTestCoordinator(t, &fakeProbe{}, capture, newFakeTransport(), commit, &fakeIndicator{})
	runCoordinator(t, c)

	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "start"}).OK)
	waitForState(t, c, fsm.StateRecording)

	c.mu.Lock()
	c.segments = []string{"should not be committed"}
	c.mu.Unlock()

	resp := c.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)

	waitForState(t, c, fsm.StateIdle)
	require.Empty(t, commit.last())
}

func TestHandleUnknownCommand(t *testing.T) {
	c := newTestCoordinator(t, &fakeProbe{}, newFakeCapture(audio.Device{}, nil), newFakeTransport(), &fakeCommitter{}, &fakeIndicator{})
	runCoordinator(t, c)

	resp := c.Handle(context.Background(), ipc.Request{Command: "wat"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestMicPermissionDeniedEntersErrorState(t *testing.T) {
	p := &fakeProbe{failMic: errDenied{}}
	c := newTestCoordinator(t, p, newFakeCapture(audio.Device{}, nil), newFakeTransport(), &fakeCommitter{}, &fakeIndicator{})
	runCoordinator(t, c)

	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "start"}).OK)
	waitForState(t, c, fsm.StateError)
}

type errDenied struct{}

func (errDenied) Error() string { return "permission denied" }

func TestFrameIsLoudThreshold(t *testing.T) {
	quiet := make([]byte, 32)
	loud := make([]byte, 32)
	for i := 0; i+1 < len(loud); i += 2 {
		loud[i] = 0xff
		loud[i+1] = 0x7f
	}

	require.False(t, frameIsLoud(quiet, 500))
	require.True(t, frameIsLoud(loud, 500))
}

func TestArmedTimerEventMapping(t *testing.T) {
	ev, ok := armedTimerEvent(fsm.TimerArmingTimeout, "tok")
	require.True(t, ok)
	require.Equal(t, fsm.EventArmingTimeout, ev.Kind)

	ev, ok = armedTimerEvent(fsm.TimerFlushTimeout, "tok")
	require.True(t, ok)
	require.Equal(t, fsm.EventFlushTimeout, ev.Kind)

	_, ok = armedTimerEvent(fsm.TimerSilenceCheck, "tok")
	require.False(t, ok, "silence check is handled directly by onTimerFired, not via the generic mapping")
}

// delayedTransport wraps a fakeTransport, blocking Connect until release is
// closed, so a test can park a bring-up goroutine mid-flight.
type delayedTransport struct {
	*fakeTransport
	release chan struct{}
}

func (d *delayedTransport) Connect(ctx context.Context, opts transport.HandshakeOptions) error {
	<-d.release
	return d.fakeTransport.Connect(ctx, opts)
}

// TestStaleBringUpDoesNotClobberNewSession exercises the race where
// doInitAudio/doConnectTransport resolve after the session that requested
// them has already ended: the opened capture stream and transport client
// must be disposed, never installed over whatever the live session (or no
// session) is using.
func TestStaleBringUpDoesNotClobberNewSession(t *testing.T) {
	device := audio.Device{ID: "fake-mic", Description: "fake", Available: true}
	capture := newFakeCapture(device, nil)
	captureReleased := make(chan struct{})

	tr := &delayedTransport{fakeTransport: newFakeTransport(), release: make(chan struct{})}

	selectDevice := func(context.Context, string, []string) (audio.Selection, error) {
		return audio.Selection{Device: device}, nil
	}
	startCapture := func(context.Context, audio.Device) (captureStream, error) {
		<-captureReleased
		return capture, nil
	}
	dialTransport := func(config.Config, string) transportClient {
		return tr
	}

	c := newCoordinator(testConfig(), nil, &fakeIndicator{}, &fakeCommitter{}, nil, &fakeProbe{}, selectDevice, startCapture, dialTransport)
	runCoordinator(t, c)

	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "start"}).OK)
	waitForState(t, c, fsm.StateArming)

	// Both bring-up effects are now in flight and blocked. Cancel before
	// either resolves, dropping the session back to Idle with an empty
	// session token.
	require.True(t, c.Handle(context.Background(), ipc.Request{Command: "cancel"}).OK)
	waitForState(t, c, fsm.StateIdle)

	// Now let the stale bring-up goroutines complete.
	close(captureReleased)
	close(tr.release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if capture.wasStopped() && tr.wasClosed() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, capture.wasStopped(), "stale capture stream must be disposed, not installed")
	require.True(t, tr.wasClosed(), "stale transport client must be disposed, not installed")

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Nil(t, c.capture, "stale capture must not clobber the live (nil) handle")
	require.Nil(t, c.client, "stale transport client must not clobber the live (nil) handle")
}

func TestNewSessionTokenIsNonEmptyAndUnique(t *testing.T) {
	a := newSessionToken()
	b := newSessionToken()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}
