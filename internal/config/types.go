// Package config resolves, parses, validates, and defaults medvoice configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Deepgram  DeepgramConfig
	OpenAI    OpenAIConfig
	Audio     AudioConfig
	Indicator IndicatorConfig
	Clipboard CommandConfig
	Export    ExportConfig
	Metrics   MetricsConfig
	Debug     DebugConfig

	// Secrets are read from the environment, never from the config file.
	Secrets Secrets
}

// DeepgramConfig selects the transcription endpoint and model.
type DeepgramConfig struct {
	Host           string
	Model          string
	Language       string
	LabelSpeakers  bool
	TimeoutSeconds int
}

// OpenAIConfig selects the note-generation endpoint and model.
type OpenAIConfig struct {
	BaseURL        string
	Model          string
	Temperature    float64
	TimeoutSeconds int
}

// AudioConfig controls source selection and capture hints.
type AudioConfig struct {
	Input            string
	Fallback         string
	SampleRate       int
	ChunkSeconds     int
	EchoCancellation bool
	NoiseSuppression bool
}

// IndicatorConfig controls lifecycle notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// ExportConfig controls where finished notes go.
type ExportConfig struct {
	Dir           string
	Clipboard     bool
	SaveRecording bool
}

// MetricsConfig points at an optional Prometheus textfile.
type MetricsConfig struct {
	Textfile string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Secrets holds API credentials sourced from the environment.
type Secrets struct {
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
