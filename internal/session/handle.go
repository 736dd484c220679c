package session

import (
	"context"
	"fmt"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/ipc"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Run records until a stop or cancel request arrives through Handle, then
// finishes the attempt. Context cancellation discards the recording.
func (c *Controller) Run(ctx context.Context, constraints audio.Constraints) (View, error) {
	if err := c.StartRecording(ctx, constraints); err != nil {
		return c.View(), err
	}

	select {
	case <-ctx.Done():
		if err := c.CancelRecording(context.Background()); err != nil {
			return c.View(), err
		}
		return c.View(), ctx.Err()
	case a := <-c.actions:
		switch a {
		case actionCancel:
			if err := c.CancelRecording(ctx); err != nil {
				return c.View(), err
			}
			return c.View(), ErrCancelled
		case actionStop:
			return c.StopRecording(ctx)
		default:
			_ = c.CancelRecording(ctx)
			return c.View(), fmt.Errorf("unknown action %d", a)
		}
	}
}

// Handle serves IPC commands for the process running Run.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		v := c.View()
		return ipc.Response{OK: true, State: string(v.State), Message: statusMessage(v)}
	case ipc.CommandStop:
		return c.request(actionStop, "stop")
	case ipc.CommandCancel:
		return c.request(actionCancel, "cancel")
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) request(a action, verb string) ipc.Response {
	state := c.State()
	if state == fsm.StateProcessing {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s while processing", verb)}
	}
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", verb, state)}
	}

	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: verb + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: verb + " already requested"}
	}
}

func (c *Controller) drainActions() {
	for {
		select {
		case <-c.actions:
		default:
			return
		}
	}
}

func statusMessage(v View) string {
	if v.State == fsm.StateRecording {
		return fmt.Sprintf("recording %ds, %d chunks", v.ElapsedSeconds, v.ChunkCount)
	}
	if v.Status != "" {
		return v.Status
	}
	return string(v.State)
}
