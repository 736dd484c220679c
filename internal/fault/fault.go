// Package fault classifies capture and remote failures into a flat set of
// kinds with precomputed user-facing messages.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/rbright/medvoice/internal/audio"
)

type Kind string

const (
	PermissionDenied      Kind = "permission_denied"
	DeviceNotFound        Kind = "device_not_found"
	DeviceBusy            Kind = "device_busy"
	UnsupportedConstraint Kind = "unsupported_constraint"
	SecurityBlocked       Kind = "security_blocked"
	Unsupported           Kind = "unsupported"
	NoSpeechDetected      Kind = "no_speech_detected"
	EmptyAudio            Kind = "empty_audio"
	Network               Kind = "network"
	Unknown               Kind = "unknown"
)

// NoSpeechMarker is the transcription text that means nothing was heard.
const NoSpeechMarker = "No speech detected"

var messages = map[Kind]string{
	PermissionDenied:      "Microphone access was denied. Please allow microphone access and try again.",
	DeviceNotFound:        "No microphone found. Please connect a microphone and try again.",
	DeviceBusy:            "Your microphone is busy or unavailable. Please close other applications using it and try again.",
	UnsupportedConstraint: "Your microphone does not support the requested audio settings. Please try a different microphone.",
	SecurityBlocked:       "Microphone access is blocked by your system's security settings.",
	Unsupported:           "Please upload an audio file.",
	NoSpeechDetected:      "We couldn't detect any speech in your recording. Please try speaking more clearly.",
	EmptyAudio:            "The audio file appears to be empty or corrupted.",
	Network:               "Network error occurred. Please check your internet connection and try again.",
	Unknown:               "An error occurred while processing your recording. Please try again.",
}

// EmptyRecordingMessage replaces the EmptyAudio text when a live recording
// produced no audio at all.
const EmptyRecordingMessage = "No speech detected. Please speak clearly during the recording or check your microphone permissions."

// Message returns the default user-facing text for kind.
func Message(kind Kind) string {
	if msg, ok := messages[kind]; ok {
		return msg
	}
	return messages[Unknown]
}

// Error is a classified failure. Cause is kept for logs and never shown.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: Message(kind), Cause: cause}
}

func NewWithMessage(kind Kind, message string, cause error) *Error {
	if strings.TrimSpace(message) == "" {
		message = Message(kind)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified, true
	}
	return nil, false
}

// Classify maps capture and file-source failures onto kinds. Errors already
// classified keep their classification.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if classified, ok := As(err); ok {
		return classified
	}

	switch {
	case errors.Is(err, audio.ErrSecurityBlocked):
		return New(SecurityBlocked, err)
	case errors.Is(err, audio.ErrPermissionDenied):
		return New(PermissionDenied, err)
	case errors.Is(err, audio.ErrNoDevice):
		return New(DeviceNotFound, err)
	case errors.Is(err, audio.ErrDeviceBusy):
		return New(DeviceBusy, err)
	case errors.Is(err, audio.ErrUnsupportedConstraint):
		return New(UnsupportedConstraint, err)
	case errors.Is(err, audio.ErrUnsupportedMediaType):
		return New(Unsupported, err)
	case errors.Is(err, audio.ErrEmptyPayload):
		return New(EmptyAudio, err)
	default:
		return New(Unknown, err)
	}
}

// ClassifyRemote maps a transcription or note-generation failure to Network
// or Unknown.
func ClassifyRemote(err error) *Error {
	if err == nil {
		return nil
	}
	if classified, ok := As(err); ok {
		return classified
	}
	if IsNetwork(err) {
		return New(Network, err)
	}
	return New(Unknown, err)
}

// IsNetwork reports whether err looks like a transport-level failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "network") || strings.Contains(message, "connection")
}

// IsNoSpeech reports whether a transcription result is blank or exactly the
// no-speech marker. A transcript that merely mentions the marker is speech.
func IsNoSpeech(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	return trimmed == "" || trimmed == NoSpeechMarker
}
