package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Capture and file-source failures. Callers match them with errors.Is.
var (
	ErrPermissionDenied      = errors.New("audio input permission denied")
	ErrNoDevice              = errors.New("no audio input device")
	ErrDeviceBusy            = errors.New("audio input device busy")
	ErrUnsupportedConstraint = errors.New("unsupported capture constraint")
	ErrSecurityBlocked       = errors.New("audio capture blocked by sandbox")
	ErrUnsupportedMediaType  = errors.New("unsupported media type")
	ErrEmptyPayload          = errors.New("empty audio payload")
)

// classifyPulseError tags a raw Pulse failure with the matching sentinel.
// Errors that match nothing are returned unchanged.
func classifyPulseError(err error) error {
	if err == nil {
		return nil
	}

	message := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, os.ErrPermission), strings.Contains(message, "access denied"), strings.Contains(message, "permission"):
		if sandboxed() {
			return fmt.Errorf("%w: %w", ErrSecurityBlocked, err)
		}
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED),
		strings.Contains(message, "no such entity"), strings.Contains(message, "not found"):
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	case strings.Contains(message, "busy"), strings.Contains(message, "suspended"):
		return fmt.Errorf("%w: %w", ErrDeviceBusy, err)
	default:
		return err
	}
}

func sandboxed() bool {
	return strings.TrimSpace(os.Getenv("FLATPAK_ID")) != "" || strings.TrimSpace(os.Getenv("SNAP")) != ""
}
