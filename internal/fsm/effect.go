package fsm

import "time"

// EffectKind names a declarative side effect the runtime must enact. Effects
// are values; Step only produces them, it never executes them.
type EffectKind string

const (
	EffectNewSession       EffectKind = "new_session"
	EffectUpdateUI         EffectKind = "update_ui"
	EffectShowError        EffectKind = "show_error"
	EffectArmTimer         EffectKind = "arm_timer"
	EffectCancelTimer      EffectKind = "cancel_timer"
	EffectCheckPermissions EffectKind = "check_permissions"
	EffectInitAudio        EffectKind = "init_audio"
	EffectConnectTransport EffectKind = "connect_transport"
	EffectStartCapture     EffectKind = "start_capture"
	EffectStopCapture      EffectKind = "stop_capture"
	EffectFlushQueue       EffectKind = "flush_queue"
	EffectCloseTransport   EffectKind = "close_transport"
	EffectReleaseResources EffectKind = "release_resources"
	EffectCommitText       EffectKind = "commit_text"
)

// TimerName identifies one slot in the Coordinator's named timer registry.
// Arming a named timer cancels any prior registration under the same name.
type TimerName string

const (
	TimerArmingTimeout TimerName = "arming_timeout"
	TimerFlushTimeout  TimerName = "flush_timeout"
	TimerSilenceCheck  TimerName = "silence_check"
	TimerIdleSweep     TimerName = "idle_sweep"
	TimerErrorRecover  TimerName = "error_recover"
)

// Effect is one instance of a side effect, carrying whatever parameters its
// kind requires (timer name/duration, UI text).
type Effect struct {
	Kind     EffectKind
	Timer    TimerName
	Duration time.Duration
	Message  string
}

func updateUI(message string) Effect { return Effect{Kind: EffectUpdateUI, Message: message} }
func showError(message string) Effect { return Effect{Kind: EffectShowError, Message: message} }
func armTimer(name TimerName, d time.Duration) Effect {
	return Effect{Kind: EffectArmTimer, Timer: name, Duration: d}
}
func cancelTimer(name TimerName) Effect { return Effect{Kind: EffectCancelTimer, Timer: name} }
func simple(kind EffectKind) Effect     { return Effect{Kind: kind} }
