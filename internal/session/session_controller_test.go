package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/ipc"
)

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	h := newHarness(t)

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)

	unknown := h.ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleStopAndCancelStateGuards(t *testing.T) {
	h := newHarness(t)

	stopFromIdle := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stopFromIdle.OK)
	require.Contains(t, stopFromIdle.Error, "cannot stop from state idle")

	cancelFromIdle := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.False(t, cancelFromIdle.OK)
	require.Contains(t, cancelFromIdle.Error, "cannot cancel from state idle")

	h.ctrl.mu.Lock()
	h.ctrl.view.State = fsm.StateProcessing
	h.ctrl.mu.Unlock()

	stopWhileProcessing := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stopWhileProcessing.OK)
	require.Contains(t, stopWhileProcessing.Error, "cannot stop while processing")

	h.ctrl.mu.Lock()
	h.ctrl.view.State = fsm.StateIdle
	h.ctrl.mu.Unlock()
}

func TestHandleStopAlreadyRequested(t *testing.T) {
	h := newHarness(t)
	h.startWithChunks(t)

	first := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, first.OK)
	require.Equal(t, "stop requested", first.Message)

	second := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, second.OK)
	require.Equal(t, "cancel already requested", second.Message)

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.Equal(t, string(fsm.StateRecording), status.State)
	require.Contains(t, status.Message, "recording 0s")
}

func TestRunStopsOnRequest(t *testing.T) {
	h := newHarness(t)

	type outcome struct {
		view View
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		view, err := h.ctrl.Run(context.Background(), audio.DefaultConstraints())
		done <- outcome{view: view, err: err}
	}()

	require.Eventually(t, func() bool { return h.ctrl.State() == fsm.StateRecording }, time.Second, 5*time.Millisecond)
	h.capture.handle(t).chunks <- []byte{1, 2}

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)

	select {
	case got := <-done:
		require.NoError(t, got.err)
		require.Equal(t, fsm.StateDone, got.view.State)
		require.NotNil(t, got.view.Note)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after stop")
	}
}

func TestRunCancelsOnRequest(t *testing.T) {
	h := newHarness(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Run(context.Background(), audio.DefaultConstraints())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.ctrl.State() == fsm.StateRecording }, time.Second, 5*time.Millisecond)
	require.True(t, h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel}).OK)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCancelled)
		require.Equal(t, fsm.StateIdle, h.ctrl.State())
		require.Zero(t, h.transcriber.callCount())
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after cancel")
	}
}

func TestRunContextCancelledDiscardsRecording(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Run(ctx, audio.DefaultConstraints())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.ctrl.State() == fsm.StateRecording }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, fsm.StateIdle, h.ctrl.State())
		require.Equal(t, int32(1), h.capture.handle(t).closes.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after context cancel")
	}
}

func TestRunStartFailure(t *testing.T) {
	h := newHarness(t)
	h.capture.err = audio.ErrNoDevice

	view, err := h.ctrl.Run(context.Background(), audio.DefaultConstraints())
	requireFault(t, err, fault.DeviceNotFound)
	require.Equal(t, fsm.StateIdle, view.State)
	require.NotNil(t, view.LastError)
}

func TestRunIgnoresStaleActionsFromPreviousAttempt(t *testing.T) {
	h := newHarness(t)
	h.ctrl.actions <- actionCancel

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Run(context.Background(), audio.DefaultConstraints())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.ctrl.State() == fsm.StateRecording }, time.Second, 5*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("run finished early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel}).OK)
	require.ErrorIs(t, <-done, ErrCancelled)
}

func TestObserverFuncDelegates(t *testing.T) {
	var got View
	ObserverFunc(func(v View) { got = v }).Observe(View{State: fsm.StateDone})
	require.Equal(t, fsm.StateDone, got.State)
}

func TestUnavailableCollaborators(t *testing.T) {
	_, err := unavailableCapture{}.Open(context.Background(), audio.DefaultConstraints())
	require.True(t, errors.Is(err, audio.ErrNoDevice))

	_, err = unavailableTranscriber{}.Transcribe(context.Background(), audio.NewPayload([]byte{1}, ""))
	require.Error(t, err)

	require.True(t, fallbackNotes{}.Generate(context.Background(), "x").Degraded)
}
