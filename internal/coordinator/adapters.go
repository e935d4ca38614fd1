package coordinator

import (
	"context"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/indicator"
	"github.com/wanpengxie/dictate/internal/transport"
)

// captureStream is the subset of *audio.Capture the Coordinator depends on,
// narrowed so tests can supply a fake without a live PulseAudio server.
type captureStream interface {
	Device() audio.Device
	Chunks() <-chan []byte
	BytesCaptured() int64
	RawPCM() []byte
	Stop() error
}

// transportClient is the subset of *transport.Client the Coordinator drives.
type transportClient interface {
	Connect(ctx context.Context, opts transport.HandshakeOptions) error
	Send(ctx context.Context, pcm []byte, isLast bool) error
	Results() <-chan transport.Result
	Errors() <-chan error
	Close() error
}

// committer is the subset of *output.Committer the Coordinator depends on.
type committer interface {
	Commit(ctx context.Context, transcript string) error
}

// probe is the subset of sysprobe functions the Coordinator's bring-up path
// exercises, narrowed to an interface so tests can fake permission/
// reachability outcomes without touching Pulse or the network.
type probe interface {
	CheckMicAccess(ctx context.Context, cfg config.AudioConfig) error
	CheckAccessibility(ctx context.Context) error
	CheckReachable(ctx context.Context, endpoint string, aux []string) error
}

// deviceSelector resolves the configured input device, narrowed from
// audio.SelectDeviceWithPriority so tests can supply a fixed selection.
type deviceSelector func(ctx context.Context, input string, priority []string) (audio.Selection, error)

// captureStarter opens a capture stream against a resolved device.
type captureStarter func(ctx context.Context, device audio.Device) (captureStream, error)

// transportDialer constructs an unconnected transport client.
type transportDialer func(cfg config.Config, connectID string) transportClient

// indicatorController is the session-facing indicator contract the
// Coordinator drives, matching indicator.Controller.
type indicatorController = indicator.Controller
