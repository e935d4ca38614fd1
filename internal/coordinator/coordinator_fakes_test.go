package coordinator

import (
	"context"
	"sync"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/transport"
)

// fakeCapture is a captureStream that replays a fixed set of PCM chunks and
// then blocks on Stop.
type fakeCapture struct {
	device  audio.Device
	chunks  chan []byte
	raw     []byte
	stopCh  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	stopped bool
}

func newFakeCapture(device audio.Device, frames [][]byte) *fakeCapture {
	fc := &fakeCapture{device: device, chunks: make(chan []byte, len(frames)+1), stopCh: make(chan struct{})}
	for _, f := range frames {
		fc.chunks <- f
		fc.raw = append(fc.raw, f...)
	}
	return fc
}

func (f *fakeCapture) Device() audio.Device      { return f.device }
func (f *fakeCapture) Chunks() <-chan []byte     { return f.chunks }
func (f *fakeCapture) BytesCaptured() int64      { return int64(len(f.raw)) }
func (f *fakeCapture) RawPCM() []byte            { return f.raw }
func (f *fakeCapture) Stop() error {
	f.once.Do(func() {
		close(f.stopCh)
		close(f.chunks)
	})
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fakeTransport is a transportClient double that echoes one final result
// each time Send is called with isLast set, and never errors.
type fakeTransport struct {
	results chan transport.Result
	errs    chan error
	sent    int

	mu     sync.Mutex
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results: make(chan transport.Result, 4),
		errs:    make(chan error, 1),
	}
}

func (f *fakeTransport) Connect(context.Context, transport.HandshakeOptions) error { return nil }

func (f *fakeTransport) Send(_ context.Context, pcm []byte, isLast bool) error {
	f.sent++
	if isLast {
		f.results <- transport.Result{Text: "hello world", IsFinal: true}
	}
	return nil
}

func (f *fakeTransport) Results() <-chan transport.Result { return f.results }
func (f *fakeTransport) Errors() <-chan error              { return f.errs }
func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeCommitter records committed transcripts.
type fakeCommitter struct {
	mu        sync.Mutex
	committed []string
}

func (f *fakeCommitter) Commit(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, text)
	return nil
}

func (f *fakeCommitter) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.committed) == 0 {
		return ""
	}
	return f.committed[len(f.committed)-1]
}

// fakeIndicator is a no-op indicator.Controller recording call counts.
type fakeIndicator struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeIndicator) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}
func (f *fakeIndicator) ShowRecording(context.Context)     { f.record("recording") }
func (f *fakeIndicator) ShowTranscribing(context.Context)  { f.record("transcribing") }
func (f *fakeIndicator) ShowError(context.Context, string) { f.record("error") }
func (f *fakeIndicator) CueStop(context.Context)           { f.record("cue_stop") }
func (f *fakeIndicator) CueComplete(context.Context)       { f.record("cue_complete") }
func (f *fakeIndicator) CueCancel(context.Context)         { f.record("cue_cancel") }
func (f *fakeIndicator) Hide(context.Context)              { f.record("hide") }
func (f *fakeIndicator) FocusedMonitor() string            { return "" }

// fakeProbe always succeeds unless told to fail a named check.
type fakeProbe struct {
	failMic        error
	failReachable  error
}

func (f *fakeProbe) CheckMicAccess(context.Context, config.AudioConfig) error { return f.failMic }
func (f *fakeProbe) CheckAccessibility(context.Context) error                { return nil }
func (f *fakeProbe) CheckReachable(context.Context, string, []string) error  { return f.failReachable }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Coordinator.SilenceWindowSeconds = 60
	cfg.Coordinator.IdleSweepSeconds = 3600
	cfg.Coordinator.ArmingTimeoutSeconds = 5
	cfg.Coordinator.FlushTimeoutSeconds = 0.2
	return cfg
}
