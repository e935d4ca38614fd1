package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		ASREndpoint:   "wss://asr.example.com/v1/stream",
		ASRAppKey:     "",
		ASRAccessKey:  "",
		ASRResourceID: "",
		Audio: AudioConfig{
			Input:            "default",
			Fallback:         "default",
			FallbackPriority: nil,
		},
		Paste: PasteConfig{Enable: true, Shortcut: "CTRL,V"},
		ASR: ASRConfig{
			AutomaticPunctuation: true,
			LanguageCode:         "en-US",
			Model:                "",
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "dictate-indicator",
			SoundEnable:    true,
			Height:         28,
			ErrorTimeoutMS: 1600,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Debug: DebugConfig{},
		Coordinator: CoordinatorConfig{
			SilenceThreshold:     500,
			SilenceWindowSeconds: 2.0,
			ArmingTimeoutSeconds: 5.0,
			FlushTimeoutSeconds:  1.0,
			ErrorRecoverSeconds:  3.0,
			IdleSweepSeconds:     60.0,
			QueueCapacityFrames:  20,
		},
		Metrics: MetricsConfig{
			Enable:     false,
			ListenAddr: "127.0.0.1:9370",
		},
	}
}
