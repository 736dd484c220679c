package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
)

const tickInterval = time.Second

// StartRecording opens the microphone and enters Recording. A capture
// failure is recorded on the view, leaves the controller Idle, and is
// returned as a *fault.Error.
func (c *Controller) StartRecording(ctx context.Context, constraints audio.Constraints) error {
	if err := c.claim(fsm.EventStart); err != nil {
		return err
	}

	if err := constraints.Validate(); err != nil {
		classified := fault.Classify(err)
		c.fail(SourceMicrophone, classified)
		return classified
	}

	handle, err := c.capture.Open(ctx, constraints)
	if err != nil {
		classified := fault.Classify(err)
		c.fail(SourceMicrophone, classified)
		return classified
	}

	c.acc.Reset()
	c.drainActions()

	ticker := c.newTicker(tickInterval)
	stop := make(chan struct{})
	rec := &recording{
		handle:     handle,
		tickerDone: make(chan struct{}),
		pumpDone:   make(chan struct{}),
		stopTicker: sync.OnceFunc(func() {
			close(stop)
			ticker.Stop()
		}),
	}

	c.mu.Lock()
	c.rec = rec
	c.mu.Unlock()

	if _, err := c.settle(fsm.EventStart, func(v *View) {
		c.resetView(v, SourceMicrophone)
	}); err != nil {
		c.mu.Lock()
		c.rec = nil
		c.mu.Unlock()
		close(rec.tickerDone)
		close(rec.pumpDone)
		rec.stopTicker()
		_ = handle.Close()
		return err
	}

	go c.tick(ticker, stop, rec.tickerDone)
	go c.pump(handle, rec.pumpDone)
	return nil
}

// StopRecording releases the microphone, assembles the payload, and runs
// transcription and note generation. The returned error is a *fault.Error
// when the attempt ended in failure.
func (c *Controller) StopRecording(ctx context.Context) (View, error) {
	rec, snapshot, err := c.takeRecording(fsm.EventStop)
	if err != nil {
		return snapshot, err
	}

	c.release(rec)
	payload := c.acc.Assemble(rec.handle.MediaType())
	c.acc.Reset()

	if payload.Len() == 0 {
		empty := fault.NewWithMessage(fault.EmptyAudio, fault.EmptyRecordingMessage, errors.New("recording produced no audio"))
		snapshot, _ := c.settle(fsm.EventEmpty, func(v *View) {
			v.ChunkCount = 0
			v.LastError = empty
			v.Status = empty.Message
			v.FinishedAt = c.now()
		})
		return snapshot, empty
	}

	if _, err := c.settle(fsm.EventStop, func(v *View) {
		v.Payload = &payload
		v.Status = StatusRecordingCaptured
	}); err != nil {
		return c.View(), err
	}
	return c.runPipeline(ctx, payload)
}

// CancelRecording releases the microphone and discards captured audio.
func (c *Controller) CancelRecording(_ context.Context) error {
	rec, _, err := c.takeRecording(fsm.EventCancel)
	if err != nil {
		return err
	}

	c.release(rec)
	c.acc.Reset()

	_, err = c.settle(fsm.EventCancel, func(v *View) {
		v.ChunkCount = 0
		v.Status = "Recording cancelled."
		v.FinishedAt = c.now()
	})
	return err
}

// takeRecording detaches the live recording so exactly one of stop or
// cancel can finish it.
func (c *Controller) takeRecording(event fsm.Event) (*recording, View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.view
	if c.closed {
		return nil, snapshot, ErrClosed
	}
	if _, err := fsm.Transition(c.view.State, event); err != nil {
		return nil, snapshot, err
	}
	if c.rec == nil || c.busy {
		return nil, snapshot, ErrBusy
	}

	rec := c.rec
	c.rec = nil
	c.busy = true
	return rec, snapshot, nil
}

// release stops the ticker, closes the device, and waits for the last chunk.
func (c *Controller) release(rec *recording) {
	rec.stopTicker()
	<-rec.tickerDone

	if err := rec.handle.Close(); err != nil && c.logger != nil {
		c.logger.Warn("close capture handle", "error", err.Error())
	}
	<-rec.pumpDone
}

func (c *Controller) tick(ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.progress(func(v *View) { v.ElapsedSeconds++ })
		}
	}
}

func (c *Controller) pump(handle CaptureHandle, done chan<- struct{}) {
	defer close(done)
	for chunk := range handle.Chunks() {
		if !c.acc.Push(chunk) {
			continue
		}
		count := c.acc.Count()
		c.progress(func(v *View) { v.ChunkCount = count })
	}
}
