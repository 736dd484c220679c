package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration, then
// fills Secrets from the environment.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	secrets, err := LoadSecrets(envFiles(resolvedPath)...)
	if err != nil {
		return Loaded{}, err
	}
	loaded.Config.Secrets = secrets
	if secrets.OpenAIBaseURL != "" && loaded.Config.OpenAI.BaseURL == "" {
		loaded.Config.OpenAI.BaseURL = secrets.OpenAIBaseURL
	}
	return loaded, nil
}

// envFiles lists .env overlays next to the config file and in the working
// directory. Earlier files win because godotenv never overrides a set key.
func envFiles(configPath string) []string {
	return []string{
		filepath.Join(filepath.Dir(configPath), ".env"),
		".env",
	}
}

// LoadSecrets applies any existing .env files, then reads API keys from the
// process environment. Variables already set in the environment take
// precedence over .env values.
func LoadSecrets(files ...string) (Secrets, error) {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Secrets{}, fmt.Errorf("load env file %q: %w", file, err)
		}
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return Secrets{}, fmt.Errorf("read secrets from environment: %w", err)
	}
	return secrets, nil
}
