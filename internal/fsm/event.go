package fsm

// EventKind enumerates the full event alphabet recognized by Step, drawn from
// the user, system, and error families.
type EventKind string

const (
	// User-originated.
	EventUserStart EventKind = "user_start"
	EventUserStop  EventKind = "user_stop"
	EventQuit      EventKind = "quit"

	// System-originated.
	EventMicPermissionOk       EventKind = "mic_permission_ok"
	EventAudioReady            EventKind = "audio_ready"
	EventTransportConnected    EventKind = "transport_connected"
	EventTransportDisconnected EventKind = "transport_disconnected"
	EventDefaultInputChanged   EventKind = "default_input_changed"
	EventSystemWillSleep       EventKind = "system_will_sleep"
	EventSystemDidWake         EventKind = "system_did_wake"
	EventQueueFlushed          EventKind = "queue_flushed"
	EventFlushTimeout          EventKind = "flush_timeout"
	EventAutoRecover           EventKind = "auto_recover"

	// Error-originated.
	EventMicPermissionDenied EventKind = "mic_permission_denied"
	EventAccessibilityDenied EventKind = "accessibility_denied"
	EventAudioDeviceGone     EventKind = "audio_device_gone"
	EventAudioInitFailed     EventKind = "audio_init_failed"
	EventTransportError      EventKind = "transport_error"
	EventNetworkUnavailable  EventKind = "network_unavailable"
	EventArmingTimeout       EventKind = "arming_timeout"
)

// Event is a tagged record posted to the Coordinator's queue. SessionToken is
// empty for system-probe events, which are observed regardless of session.
//
// NewToken is set by the runtime, never by an adapter, on the handful of
// events that mint or rotate a session (UserStart in Idle/Error,
// DefaultInputChanged in Recording). Step adopts it verbatim as the next
// context's SessionToken, keeping Step itself free of any randomness.
type Event struct {
	Kind         EventKind
	SessionToken string
	NewToken     string
	Detail       string
}
