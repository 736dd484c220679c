// Package logging writes structured JSON lines for every medvoice command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir      = "medvoice"
	logFileName = "log.jsonl"
)

// Options tune the runtime logger.
type Options struct {
	// Debug lowers the level to slog.LevelDebug.
	Debug bool
	// Mirror receives a copy of every line, typically stderr for --verbose.
	Mirror io.Writer
}

// Runtime owns the logger and the file it writes to.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens $XDG_STATE_HOME/medvoice/log.jsonl for append.
func New(opts Options) (Runtime, error) {
	path, err := LogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file: %w", err)
	}

	var sink io.Writer = f
	if opts.Mirror != nil {
		sink = io.MultiWriter(f, opts.Mirror)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})).
		With("pid", os.Getpid())
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// Discard returns a runtime that drops everything. Used when the state
// directory is not writable.
func Discard() Runtime {
	return Runtime{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// StateDir resolves $XDG_STATE_HOME/medvoice, falling back to
// ~/.local/state/medvoice.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

func LogPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}
