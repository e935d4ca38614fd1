// Package config resolves, parses, validates, and defaults dictate configuration.
package config

// Config is the fully materialized runtime configuration used by dictate.
type Config struct {
	ASREndpoint   string
	ASRAppKey     string
	ASRAccessKey  string
	ASRResourceID string
	Audio         AudioConfig
	Paste         PasteConfig
	ASR           ASRConfig
	Transcript    TranscriptConfig
	Indicator     IndicatorConfig
	Clipboard     CommandConfig
	PasteCmd      CommandConfig
	Vocab         VocabConfig
	Debug         DebugConfig
	Coordinator   CoordinatorConfig
	Metrics       MetricsConfig
}

// CoordinatorConfig controls Recording Coordinator timer and queue tuning.
type CoordinatorConfig struct {
	SilenceThreshold     float64
	SilenceWindowSeconds float64
	ArmingTimeoutSeconds float64
	FlushTimeoutSeconds  float64
	ErrorRecoverSeconds  float64
	IdleSweepSeconds     float64
	QueueCapacityFrames  int
}

// MetricsConfig controls the optional loopback Prometheus metrics listener.
type MetricsConfig struct {
	Enable     bool
	ListenAddr string
}

// AudioConfig controls preferred and fallback input-source selection.
// FallbackPriority is tried in order (e.g. bluetooth before built-in) before
// the Pulse default source is used.
type AudioConfig struct {
	Input            string
	Fallback         string
	FallbackPriority []string
}

// PasteConfig controls post-commit paste behavior.
type PasteConfig struct {
	Enable   bool
	Shortcut string
}

// ASRConfig controls request-level recognizer hints sent in the session handshake.
type ASRConfig struct {
	AutomaticPunctuation bool
	LanguageCode         string
	Model                string
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	Height            int
	TextRecording     string
	TextProcessing    string
	TextError         string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump     bool
	EnableTransportDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to ASR adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
