package sysprobe

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/wanpengxie/dictate/internal/audio"
	"github.com/wanpengxie/dictate/internal/config"
)

// CheckMicAccess opens and immediately closes a capture stream against the
// configured input selection, surfacing permission or device-busy failures
// before a recording is armed rather than mid-session.
func CheckMicAccess(ctx context.Context, cfg config.AudioConfig) error {
	selection, err := audio.SelectDeviceWithPriority(ctx, cfg.Input, cfg.FallbackPriority)
	if err != nil {
		return fmt.Errorf("select audio device: %w", err)
	}

	capture, err := audio.StartCapture(ctx, selection.Device)
	if err != nil {
		return fmt.Errorf("open capture on %q: %w", selection.Device.ID, err)
	}
	return capture.Stop()
}

// CheckAccessibility runs a read-only hyprctl query to confirm the
// compositor IPC socket is reachable before the paste effect depends on it.
func CheckAccessibility(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "hyprctl", "activewindow")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hyprctl activewindow: %w", err)
	}
	return nil
}
