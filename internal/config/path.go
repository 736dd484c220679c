package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir   = "medvoice"
	fileName = "config.jsonc"

	// PathEnv overrides the default config location when --config is absent.
	PathEnv = "MEDVOICE_CONFIG"
)

// ResolvePath picks the config file: explicit flag, then $MEDVOICE_CONFIG,
// then $XDG_CONFIG_HOME, then ~/.config. A leading ~/ is expanded.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(PathEnv)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return expandHome(candidate)
		}
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Dir is the per-user medvoice config directory.
func Dir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to expand ~ in config path")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
