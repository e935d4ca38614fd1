package sysprobe

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// SleepWakeNotifier emits a value each time logind reports the machine is
// about to sleep (true) or has just resumed (false). The Coordinator treats
// a sleep notification during Recording as a stop with a short flush, and a
// wake notification as a return from Error to Idle.
type SleepWakeNotifier struct {
	conn *dbus.Conn
	ch   chan *dbus.Signal
}

// NewSleepWakeNotifier subscribes to logind's PrepareForSleep signal on the
// system bus.
func NewSleepWakeNotifier() (*SleepWakeNotifier, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	matchOpts := []dbus.MatchOption{
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	}
	if err := conn.AddMatchSignal(matchOpts...); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe PrepareForSleep: %w", err)
	}

	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)

	return &SleepWakeNotifier{conn: conn, ch: ch}, nil
}

// Run delivers sleeping=true just before suspend and sleeping=false on
// resume, until ctx is canceled.
func (n *SleepWakeNotifier) Run(ctx context.Context, onChange func(sleeping bool)) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-n.ch:
			if !ok {
				return
			}
			if sig == nil || sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" {
				continue
			}
			if len(sig.Body) == 0 {
				continue
			}
			sleeping, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			onChange(sleeping)
		}
	}
}

// Close releases the system bus connection.
func (n *SleepWakeNotifier) Close() error {
	n.conn.RemoveSignal(n.ch)
	return n.conn.Close()
}
