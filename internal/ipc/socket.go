package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// SocketName is the file created under XDG_RUNTIME_DIR.
const SocketName = "medvoice.sock"

var (
	ErrAlreadyRunning = errors.New("medvoice session already running")
	ErrNotRunning     = errors.New("no medvoice session is running")
)

// RuntimeSocketPath resolves the control socket for the current user.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

type AcquireOptions struct {
	// ProbeTimeout bounds the status roundtrip used to test an existing socket.
	ProbeTimeout time.Duration
	// Retries is how many times a stale socket may be cleared before giving up.
	Retries int
}

// Owner holds the control socket for one recording process.
type Owner struct {
	net.Listener
	path string
}

// Path returns the socket file the owner is bound to.
func (o *Owner) Path() string { return o.path }

// Release stops listening and unlinks the socket file.
func (o *Owner) Release() error {
	closeErr := o.Listener.Close()
	if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove socket %s: %w", o.path, err)
	}
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}
	return nil
}

// Acquire binds path for this process. A responsive owner yields
// ErrAlreadyRunning. A socket nobody answers on is treated as stale and
// removed; a socket that accepts but never answers is left alone.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Owner, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			if err := os.Chmod(path, 0o600); err != nil {
				_ = listener.Close()
				return nil, fmt.Errorf("restrict socket %s: %w", path, err)
			}
			return &Owner{Listener: listener, path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, err := Probe(ctx, path, opts.ProbeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case err != nil:
			return nil, fmt.Errorf("probe existing socket %s: %w", path, err)
		}

		if attempt >= opts.Retries {
			return nil, fmt.Errorf("socket %s still busy after %d retries", path, opts.Retries)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		backoff := time.Duration(attempt+1) * 25 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
