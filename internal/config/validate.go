package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if strings.TrimSpace(cfg.Deepgram.Model) == "" {
		return nil, errors.New("deepgram.model must not be empty")
	}
	if cfg.Deepgram.TimeoutSeconds <= 0 {
		return nil, errors.New("deepgram.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		return nil, errors.New("openai.model must not be empty")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return nil, fmt.Errorf("openai.temperature must be within 0-2, got %g", cfg.OpenAI.Temperature)
	}
	if cfg.OpenAI.TimeoutSeconds <= 0 {
		return nil, errors.New("openai.timeout_seconds must be > 0")
	}
	if base := strings.TrimSpace(cfg.OpenAI.BaseURL); base != "" {
		if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("openai.base_url %q must be an absolute URL", base)
		}
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		return nil, fmt.Errorf("audio.sample_rate must be within 8000-48000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkSeconds <= 0 {
		return nil, errors.New("audio.chunk_seconds must be > 0")
	}
	if cfg.Audio.ChunkSeconds > 60 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.chunk_seconds=%d delays chunk progress updates", cfg.Audio.ChunkSeconds)})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, errors.New("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, errors.New("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, errors.New("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Export.Clipboard && len(cfg.Clipboard.Argv) == 0 {
		return nil, errors.New("clipboard_cmd must not be empty when export.clipboard=true")
	}
	if cfg.Export.SaveRecording && strings.TrimSpace(cfg.Export.Dir) == "" {
		warnings = append(warnings, Warning{Message: "export.save_recording has no effect without export.dir"})
	}

	return warnings, nil
}

// CheckSecrets reports which API keys are missing.
func CheckSecrets(s Secrets) error {
	var missing []string
	if strings.TrimSpace(s.DeepgramAPIKey) == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if strings.TrimSpace(s.OpenAIAPIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing environment: %s", strings.Join(missing, ", "))
}
