package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLegacy reads the deprecated flat key=value config format. It only
// covers the small set of scalar keys that existed before the JSONC format;
// vocab sets and nested structures require JSONC.
func parseLegacy(content string, base Config) (Config, []Warning, error) {
	cfg := base

	for lineNo, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo+1, rawLine)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := applyLegacyKey(&cfg, key, value); err != nil {
			return Config{}, nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func applyLegacyKey(cfg *Config, key, value string) error {
	switch key {
	case "asr_endpoint":
		cfg.ASREndpoint = value
	case "asr_app_key":
		cfg.ASRAppKey = value
	case "asr_access_key":
		cfg.ASRAccessKey = value
	case "asr_resource_id":
		cfg.ASRResourceID = value
	case "audio_input":
		cfg.Audio.Input = value
	case "audio_fallback":
		cfg.Audio.Fallback = value
	case "paste.enable":
		return setLegacyBool(&cfg.Paste.Enable, key, value)
	case "paste.shortcut":
		cfg.Paste.Shortcut = value
	case "asr_automatic_punctuation":
		return setLegacyBool(&cfg.ASR.AutomaticPunctuation, key, value)
	case "asr_language_code":
		cfg.ASR.LanguageCode = value
	case "asr_model":
		cfg.ASR.Model = value
	case "transcript.trailing_space":
		return setLegacyBool(&cfg.Transcript.TrailingSpace, key, value)
	case "transcript.capitalize_sentences":
		return setLegacyBool(&cfg.Transcript.CapitalizeSentences, key, value)
	case "clipboard_cmd":
		argv, err := parseArgv(value)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: value, Argv: argv}
	case "paste_cmd":
		argv, err := parseArgv(value)
		if err != nil {
			return fmt.Errorf("invalid paste_cmd: %w", err)
		}
		cfg.PasteCmd = CommandConfig{Raw: value, Argv: argv}
	default:
		return fmt.Errorf("unrecognized key %q (legacy format only supports scalar keys; use JSONC for the rest)", key)
	}
	return nil
}

func setLegacyBool(dst *bool, key, value string) error {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: expected true/false, got %q", key, value)
	}
	*dst = parsed
	return nil
}
