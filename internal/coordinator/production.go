package coordinator

import (
	"context"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
	"github.com/wanpengxie/dictate/internal/sysprobe"
	"github.com/wanpengxie/dictate/internal/transport"
)

// sysprobeAdapter wires the package-level sysprobe functions into the
// Coordinator's probe interface.
type sysprobeAdapter struct{}

func (sysprobeAdapter) CheckMicAccess(ctx context.Context, cfg config.AudioConfig) error {
	return sysprobe.CheckMicAccess(ctx, cfg)
}

func (sysprobeAdapter) CheckAccessibility(ctx context.Context) error {
	return sysprobe.CheckAccessibility(ctx)
}

func (sysprobeAdapter) CheckReachable(ctx context.Context, endpoint string, aux []string) error {
	return sysprobe.CheckReachable(ctx, endpoint, aux)
}

func defaultDeviceSelector(ctx context.Context, input string, priority []string) (audio.Selection, error) {
	return audio.SelectDeviceWithPriority(ctx, input, priority)
}

func defaultCaptureStarter(ctx context.Context, device audio.Device) (captureStream, error) {
	return audio.StartCapture(ctx, device)
}

func defaultTransportDialer(cfg config.Config, connectID string) transportClient {
	creds := transport.Credentials{
		AppKey:     cfg.ASRAppKey,
		AccessKey:  cfg.ASRAccessKey,
		ResourceID: cfg.ASRResourceID,
	}
	return transport.NewClient(cfg.ASREndpoint, creds, connectID)
}
