package config

// Default returns the runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy"

	return Config{
		Deepgram: DeepgramConfig{
			Model:          "nova-3",
			Language:       "en-US",
			LabelSpeakers:  true,
			TimeoutSeconds: 120,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o",
			Temperature:    0.2,
			TimeoutSeconds: 90,
		},
		Audio: AudioConfig{
			Input:            "default",
			Fallback:         "default",
			SampleRate:       16000,
			ChunkSeconds:     10,
			EchoCancellation: true,
			NoiseSuppression: true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "medvoice",
			SoundEnable:    true,
			ErrorTimeoutMS: 4000,
		},
		Clipboard: mustParseCommand(clipboard),
		Export: ExportConfig{
			Clipboard: true,
		},
	}
}
