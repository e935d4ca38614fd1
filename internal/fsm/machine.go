package fsm

import "time"

const (
	armingTimeout  = 5 * time.Second
	flushTimeout   = 1 * time.Second
	flushTimeoutShort = 500 * time.Millisecond
	errorRecover   = 3 * time.Second
)

// Step applies one event to ctx and returns the next context plus the
// ordered list of effects the runtime must execute. Step performs no I/O: the
// same (ctx, event) pair always yields an identical result.
func Step(ctx Context, event Event) (Context, []Effect) {
	if stale(ctx, event) {
		return ctx, nil
	}

	switch ctx.State {
	case StateIdle:
		return stepIdle(ctx, event)
	case StateArming:
		return stepArming(ctx, event)
	case StateRecording:
		return stepRecording(ctx, event)
	case StateStopping:
		return stepStopping(ctx, event)
	case StateError:
		return stepError(ctx, event)
	default:
		return ctx, nil
	}
}

// stale implements the first check of every Step invocation: an event
// carrying a session token that disagrees with the live session is dropped,
// including a token that no longer matches because the live session already
// ended (ctx.SessionToken == "").
func stale(ctx Context, event Event) bool {
	return event.SessionToken != "" && event.SessionToken != ctx.SessionToken
}

func stepIdle(ctx Context, event Event) (Context, []Effect) {
	switch event.Kind {
	case EventUserStart:
		next := Context{State: StateArming, SessionToken: event.NewToken}
		return next, []Effect{
			simple(EffectNewSession),
			updateUI("initializing"),
			armTimer(TimerArmingTimeout, armingTimeout),
			simple(EffectCheckPermissions),
			simple(EffectInitAudio),
			simple(EffectConnectTransport),
		}
	case EventMicPermissionDenied, EventAccessibilityDenied:
		return ctx, []Effect{showError("permission denied")}
	default:
		return ctx, nil
	}
}

func stepArming(ctx Context, event Event) (Context, []Effect) {
	switch event.Kind {
	case EventMicPermissionOk:
		ctx.Arming.PermOK = true
		return promoteIfReady(ctx)
	case EventAudioReady:
		ctx.Arming.AudioReady = true
		return promoteIfReady(ctx)
	case EventTransportConnected:
		ctx.Arming.TransportReady = true
		return promoteIfReady(ctx)
	case EventUserStop:
		next := Context{State: StateIdle}
		return next, []Effect{simple(EffectReleaseResources), updateUI("cancelled")}
	case EventArmingTimeout:
		next := Context{State: StateIdle}
		return next, []Effect{simple(EffectReleaseResources), showError("init timeout")}
	case EventMicPermissionDenied, EventAudioInitFailed:
		next := ctx
		next.State = StateError
		return next, []Effect{
			cancelTimer(TimerArmingTimeout),
			simple(EffectReleaseResources),
			showError(event.Detail),
			armTimer(TimerErrorRecover, errorRecover),
		}
	case EventTransportError, EventNetworkUnavailable:
		next := Context{State: StateIdle}
		return next, []Effect{simple(EffectReleaseResources), showError(event.Detail)}
	default:
		return ctx, nil
	}
}

// promoteIfReady latches the started flag and promotes Arming -> Recording
// exactly once, whichever readiness event arrives last.
func promoteIfReady(ctx Context) (Context, []Effect) {
	if !ctx.Arming.ready() || ctx.Arming.Started {
		return ctx, nil
	}
	ctx.Arming.Started = true
	next := ctx
	next.State = StateRecording
	return next, []Effect{
		cancelTimer(TimerArmingTimeout),
		simple(EffectStartCapture),
		updateUI("speak"),
	}
}

func stepRecording(ctx Context, event Event) (Context, []Effect) {
	switch event.Kind {
	case EventUserStop:
		next := ctx
		next.State = StateStopping
		return next, []Effect{
			simple(EffectStopCapture),
			simple(EffectFlushQueue),
			armTimer(TimerFlushTimeout, flushTimeout),
			updateUI("processing"),
		}
	case EventDefaultInputChanged:
		next := Context{State: StateArming, SessionToken: event.NewToken}
		return next, []Effect{
			simple(EffectNewSession),
			simple(EffectStopCapture),
			simple(EffectCloseTransport),
			simple(EffectInitAudio),
			simple(EffectConnectTransport),
			updateUI("device changed"),
		}
	case EventSystemWillSleep:
		next := ctx
		next.State = StateStopping
		return next, []Effect{
			simple(EffectStopCapture),
			simple(EffectFlushQueue),
			armTimer(TimerFlushTimeout, flushTimeoutShort),
		}
	case EventTransportError:
		next := ctx
		next.State = StateStopping
		return next, []Effect{
			simple(EffectStopCapture),
			simple(EffectFlushQueue),
			armTimer(TimerFlushTimeout, flushTimeoutShort),
			showError(event.Detail),
		}
	case EventAudioDeviceGone:
		next := ctx
		next.State = StateStopping
		return next, []Effect{
			simple(EffectFlushQueue),
			armTimer(TimerFlushTimeout, flushTimeoutShort),
			showError(event.Detail),
		}
	default:
		return ctx, nil
	}
}

func stepStopping(ctx Context, event Event) (Context, []Effect) {
	switch event.Kind {
	case EventQueueFlushed, EventFlushTimeout:
		next := Context{State: StateIdle}
		return next, []Effect{
			cancelTimer(TimerFlushTimeout),
			simple(EffectCloseTransport),
			simple(EffectReleaseResources),
			simple(EffectCommitText),
			updateUI("hide"),
		}
	case EventUserStop:
		return ctx, nil
	default:
		return ctx, nil
	}
}

func stepError(ctx Context, event Event) (Context, []Effect) {
	switch event.Kind {
	case EventUserStart:
		next := Context{State: StateArming, SessionToken: event.NewToken}
		return next, []Effect{
			cancelTimer(TimerErrorRecover),
			simple(EffectReleaseResources),
			simple(EffectNewSession),
			updateUI("initializing"),
			armTimer(TimerArmingTimeout, armingTimeout),
			simple(EffectCheckPermissions),
			simple(EffectInitAudio),
			simple(EffectConnectTransport),
		}
	case EventAutoRecover, EventSystemDidWake, EventUserStop:
		next := Context{State: StateIdle}
		return next, []Effect{simple(EffectReleaseResources), updateUI("hide")}
	default:
		return ctx, nil
	}
}
