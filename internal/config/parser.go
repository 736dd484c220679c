package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type fileConfig struct {
	Deepgram     *fileDeepgram  `json:"deepgram"`
	OpenAI       *fileOpenAI    `json:"openai"`
	Audio        *fileAudio     `json:"audio"`
	Indicator    *fileIndicator `json:"indicator"`
	ClipboardCmd *string        `json:"clipboard_cmd"`
	Export       *fileExport    `json:"export"`
	Metrics      *fileMetrics   `json:"metrics"`
	Debug        *fileDebug     `json:"debug"`
}

type fileDeepgram struct {
	Host           *string `json:"host"`
	Model          *string `json:"model"`
	Language       *string `json:"language"`
	LabelSpeakers  *bool   `json:"label_speakers"`
	TimeoutSeconds *int    `json:"timeout_seconds"`
}

type fileOpenAI struct {
	BaseURL        *string  `json:"base_url"`
	Model          *string  `json:"model"`
	Temperature    *float64 `json:"temperature"`
	TimeoutSeconds *int     `json:"timeout_seconds"`
}

type fileAudio struct {
	Input            *string `json:"input"`
	Fallback         *string `json:"fallback"`
	SampleRate       *int    `json:"sample_rate"`
	ChunkSeconds     *int    `json:"chunk_seconds"`
	EchoCancellation *bool   `json:"echo_cancellation"`
	NoiseSuppression *bool   `json:"noise_suppression"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type fileExport struct {
	Dir           *string `json:"dir"`
	Clipboard     *bool   `json:"clipboard"`
	SaveRecording *bool   `json:"save_recording"`
}

type fileMetrics struct {
	Textfile *string `json:"textfile"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

// Parse reads JSONC content over base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	if strings.TrimSpace(content) != "" {
		normalized, err := normalizeJSONC(content)
		if err != nil {
			return Config{}, nil, err
		}

		decoder := json.NewDecoder(strings.NewReader(normalized))
		decoder.DisallowUnknownFields()

		var payload fileConfig
		if err := decoder.Decode(&payload); err != nil {
			return Config{}, nil, wrapJSONDecodeError(normalized, err)
		}
		if err := ensureSingleJSONValue(decoder); err != nil {
			return Config{}, nil, wrapJSONDecodeError(normalized, err)
		}
		if err := payload.applyTo(&cfg); err != nil {
			return Config{}, nil, err
		}
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (payload fileConfig) applyTo(cfg *Config) error {
	if d := payload.Deepgram; d != nil {
		setTrimmed(&cfg.Deepgram.Host, d.Host)
		setTrimmed(&cfg.Deepgram.Model, d.Model)
		setTrimmed(&cfg.Deepgram.Language, d.Language)
		set(&cfg.Deepgram.LabelSpeakers, d.LabelSpeakers)
		set(&cfg.Deepgram.TimeoutSeconds, d.TimeoutSeconds)
	}

	if o := payload.OpenAI; o != nil {
		setTrimmed(&cfg.OpenAI.BaseURL, o.BaseURL)
		setTrimmed(&cfg.OpenAI.Model, o.Model)
		set(&cfg.OpenAI.Temperature, o.Temperature)
		set(&cfg.OpenAI.TimeoutSeconds, o.TimeoutSeconds)
	}

	if a := payload.Audio; a != nil {
		set(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.SampleRate, a.SampleRate)
		set(&cfg.Audio.ChunkSeconds, a.ChunkSeconds)
		set(&cfg.Audio.EchoCancellation, a.EchoCancellation)
		set(&cfg.Audio.NoiseSuppression, a.NoiseSuppression)
	}

	if i := payload.Indicator; i != nil {
		set(&cfg.Indicator.Enable, i.Enable)
		setTrimmed(&cfg.Indicator.Backend, i.Backend)
		setTrimmed(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		set(&cfg.Indicator.SoundEnable, i.SoundEnable)
		set(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = cmd
	}

	if e := payload.Export; e != nil {
		setTrimmed(&cfg.Export.Dir, e.Dir)
		set(&cfg.Export.Clipboard, e.Clipboard)
		set(&cfg.Export.SaveRecording, e.SaveRecording)
	}

	if m := payload.Metrics; m != nil {
		setTrimmed(&cfg.Metrics.Textfile, m.Textfile)
	}

	if d := payload.Debug; d != nil {
		set(&cfg.Debug.EnableAudioDump, d.AudioDump)
	}

	return nil
}
