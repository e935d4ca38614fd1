package coordinator

import (
	"context"
	"log/slog"

	"github.com/wanpengxie/dictate/internal/fsm"
	"github.com/wanpengxie/dictate/internal/sysprobe"
)

// startSystemProbes launches the sleep/wake and device-change notifiers for
// the Coordinator's lifetime. Both post events with no session token, per
// the system probe's posting-not-calling discipline: a dead notifier (the
// system bus or Pulse connection failing to open) only disables that one
// observation and is logged, never fatal to the daemon.
func (c *Coordinator) startSystemProbes(ctx context.Context) {
	go c.runSleepWakeNotifier(ctx)
	go c.runDeviceChangeNotifier(ctx)
	c.armIdleSweep()
}

func (c *Coordinator) runSleepWakeNotifier(ctx context.Context) {
	notifier, err := sysprobe.NewSleepWakeNotifier()
	if err != nil {
		c.logf(slog.LevelWarn, "sleep/wake notifier unavailable", err)
		return
	}
	defer notifier.Close()

	notifier.Run(ctx, func(sleeping bool) {
		if sleeping {
			c.post(fsm.Event{Kind: fsm.EventSystemWillSleep})
			return
		}
		c.post(fsm.Event{Kind: fsm.EventSystemDidWake})
	})
}

func (c *Coordinator) runDeviceChangeNotifier(ctx context.Context) {
	notifier, err := sysprobe.NewDeviceChangeNotifier()
	if err != nil {
		c.logf(slog.LevelWarn, "device-change notifier unavailable", err)
		return
	}
	defer notifier.Close()

	notifier.Run(ctx, func() {
		if c.State() != fsm.StateRecording {
			return
		}
		c.post(fsm.Event{
			Kind:     fsm.EventDefaultInputChanged,
			NewToken: newSessionToken(),
		})
	})
}

func (c *Coordinator) logf(level slog.Level, message string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, message, "error", err.Error())
}
