package coordinator

import (
	"time"

	"github.com/wanpengxie/dictate/internal/fsm"
)

// armedTimerEvent maps a fsm-armed timer name to the event it fires when
// it expires. TimerSilenceCheck and TimerIdleSweep are armed directly by the
// Coordinator (never by Step) and are handled separately in onSilenceCheck
// and onIdleSweep.
func armedTimerEvent(name fsm.TimerName, token string) (fsm.Event, bool) {
	switch name {
	case fsm.TimerArmingTimeout:
		return fsm.Event{Kind: fsm.EventArmingTimeout, SessionToken: token}, true
	case fsm.TimerFlushTimeout:
		return fsm.Event{Kind: fsm.EventFlushTimeout, SessionToken: token}, true
	case fsm.TimerErrorRecover:
		return fsm.Event{Kind: fsm.EventAutoRecover, SessionToken: token}, true
	default:
		return fsm.Event{}, false
	}
}

// armTimer (re)arms the named timer, canceling any prior registration under
// the same name, per the registry's single-slot-per-name contract.
func (c *Coordinator) armTimer(name fsm.TimerName, d time.Duration, token string) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if existing, ok := c.timers[name]; ok {
		existing.Stop()
	}

	c.timers[name] = time.AfterFunc(d, func() {
		c.onTimerFired(name, token)
	})
}

// cancelTimer stops and forgets the named timer if armed.
func (c *Coordinator) cancelTimer(name fsm.TimerName) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if existing, ok := c.timers[name]; ok {
		existing.Stop()
		delete(c.timers, name)
	}
}

func (c *Coordinator) onTimerFired(name fsm.TimerName, token string) {
	switch name {
	case fsm.TimerSilenceCheck:
		c.onSilenceCheck(token)
		return
	case fsm.TimerIdleSweep:
		c.onIdleSweep()
		return
	}

	if ev, ok := armedTimerEvent(name, token); ok {
		c.post(ev)
	}
}

const silencePollInterval = 250 * time.Millisecond

// noteAudioLevel records that a captured frame carried signal above the
// configured silence threshold, resetting the rolling silence window.
func (c *Coordinator) noteAudioLevel(loud bool, now time.Time) {
	if !loud {
		return
	}
	c.silenceMu.Lock()
	c.lastLoudAt = now
	c.silenceMu.Unlock()
}

// armSilenceCheck starts the recurring silence-window poll for one
// recording session.
func (c *Coordinator) armSilenceCheck(token string) {
	c.silenceMu.Lock()
	c.lastLoudAt = time.Now()
	c.silenceMu.Unlock()
	c.armTimer(fsm.TimerSilenceCheck, silencePollInterval, token)
}

// onSilenceCheck re-arms the poll unless the configured silence window has
// elapsed with no loud frames, in which case it synthesizes a UserStop for
// the live session, auto-ending a dictation the speaker has gone quiet on.
func (c *Coordinator) onSilenceCheck(token string) {
	if c.currentSessionToken() != token || c.State() != fsm.StateRecording {
		return
	}

	c.silenceMu.Lock()
	elapsed := time.Since(c.lastLoudAt)
	c.silenceMu.Unlock()

	window := time.Duration(c.cfg.Coordinator.SilenceWindowSeconds * float64(time.Second))
	if elapsed >= window {
		c.post(fsm.Event{Kind: fsm.EventUserStop, SessionToken: token})
		return
	}

	c.armTimer(fsm.TimerSilenceCheck, silencePollInterval, token)
}

// armIdleSweep schedules the next proactive readiness check while idle.
func (c *Coordinator) armIdleSweep() {
	d := time.Duration(c.cfg.Coordinator.IdleSweepSeconds * float64(time.Second))
	c.armTimer(fsm.TimerIdleSweep, d, "")
}

// onIdleSweep unconditionally releases any adapter handle still held while
// idle, defending against an adapter that clung to a device or connection
// after a fault path. It also re-validates permissions and ASR reachability
// so a subsequent start doesn't stall discovering a stale problem; those
// checks are only logged, never surfaced as a user-visible error outside of
// Arming.
func (c *Coordinator) onIdleSweep() {
	if c.State() != fsm.StateIdle {
		return
	}

	c.doReleaseResources()

	go func() {
		ctx := newBringUpContext()
		defer ctx.cancel()

		if err := c.probe.CheckMicAccess(ctx.ctx, c.cfg.Audio); err != nil && c.logger != nil {
			c.logger.Debug("idle sweep: mic access check failed", "error", err.Error())
		}
		if err := c.probe.CheckReachable(ctx.ctx, c.cfg.ASREndpoint, nil); err != nil && c.logger != nil {
			c.logger.Debug("idle sweep: asr reachability check failed", "error", err.Error())
		}
	}()

	c.armIdleSweep()
}
