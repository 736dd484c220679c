// Package ipc carries control commands between the recording process and
// short-lived CLI invocations over a unix socket, one JSON line each way.
package ipc

import "fmt"

// Commands accepted by the recording process.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Err converts a rejected response into an error.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("request rejected in state %q", r.State)
	}
	return fmt.Errorf("%s", r.Error)
}

// KnownCommand reports whether command is one the recording process serves.
func KnownCommand(command string) bool {
	switch command {
	case CommandStatus, CommandStop, CommandCancel:
		return true
	default:
		return false
	}
}
