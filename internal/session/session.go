// Package session runs one recording or upload attempt at a time through
// capture, transcription, and note generation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/note"
)

var (
	// ErrSessionActive is returned by NewController while another controller is live.
	ErrSessionActive = errors.New("a medvoice session is already active in this process")
	// ErrBusy is returned while an operation is between lifecycle states.
	ErrBusy = errors.New("session is busy")
	// ErrCancelled is returned by Run when the recording was discarded.
	ErrCancelled = errors.New("recording cancelled")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("session controller closed")
)

// Source names where an attempt's audio came from.
type Source string

const (
	SourceMicrophone Source = "microphone"
	SourceFile       Source = "file"
)

// Status lines shown while an attempt progresses.
const (
	StatusRecordingCaptured = "Recording captured successfully! Processing audio..."
	StatusFileUploaded      = "Audio file uploaded successfully! Processing..."
	StatusTranscribed       = "Transcription complete! Generating SOAP notes..."
	StatusNoteReady         = "SOAP notes generated successfully! Your medical documentation is ready."
)

// CaptureHandle is a live microphone stream. Close releases the device and
// closes Chunks once every buffered chunk has been delivered.
type CaptureHandle interface {
	Chunks() <-chan []byte
	MediaType() string
	Close() error
}

// CaptureSource opens the microphone.
type CaptureSource interface {
	Open(context.Context, audio.Constraints) (CaptureHandle, error)
}

// Transcriber turns a payload into text. An empty result is not an error.
type Transcriber interface {
	Transcribe(context.Context, audio.Payload) (string, error)
}

// NoteGenerator always returns a complete note.
type NoteGenerator interface {
	Generate(context.Context, string) note.SOAP
}

// Observer receives a snapshot after every transition and progress update.
type Observer interface {
	Observe(View)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(View)

func (f ObserverFunc) Observe(v View) {
	f(v)
}

// Ticker abstracts the one-second elapsed clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// View is an immutable snapshot of the current attempt.
type View struct {
	// Event is the transition that produced this snapshot. It is empty for
	// tick and chunk progress updates.
	Event fsm.Event

	State          fsm.State
	AttemptID      string
	Source         Source
	ElapsedSeconds int
	ChunkCount     int
	Payload        *audio.Payload
	Transcript     *string
	Note           *note.SOAP
	LastError      *fault.Error
	Status         string

	StartedAt         time.Time
	FinishedAt        time.Time
	TranscribeLatency time.Duration
	NoteLatency       time.Duration
}

// Terminal reports whether the attempt reached Done or Error, or failed
// before leaving Idle.
func (v View) Terminal() bool {
	return v.State == fsm.StateDone || v.State == fsm.StateError || (v.State == fsm.StateIdle && v.LastError != nil)
}

type recording struct {
	handle     CaptureHandle
	stopTicker func()
	tickerDone chan struct{}
	pumpDone   chan struct{}
}

// Controller owns the single live attempt. Methods are safe for concurrent use.
type Controller struct {
	logger     *slog.Logger
	capture    CaptureSource
	transcribe Transcriber
	notes      NoteGenerator
	observers  []Observer
	newTicker  func(time.Duration) Ticker
	loadFile   func(string) (audio.Payload, error)
	now        func() time.Time

	acc audio.Accumulator

	mu     sync.Mutex
	view   View
	rec    *recording
	busy   bool
	closed bool

	notifyMu sync.Mutex
	actions  chan action
}

// Option customizes a Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// WithTicker replaces the elapsed-time clock.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(c *Controller) {
		if newTicker != nil {
			c.newTicker = newTicker
		}
	}
}

// WithFileLoader replaces audio.FromFile for uploads.
func WithFileLoader(load func(string) (audio.Payload, error)) Option {
	return func(c *Controller) {
		if load != nil {
			c.loadFile = load
		}
	}
}

// WithClock replaces time.Now for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

var active atomic.Bool

// NewController claims the process-wide session slot. Close releases it.
func NewController(capture CaptureSource, transcriber Transcriber, notes NoteGenerator, opts ...Option) (*Controller, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}

	c := &Controller{
		capture:    capture,
		transcribe: transcriber,
		notes:      notes,
		newTicker: func(d time.Duration) Ticker {
			return timeTicker{time.NewTicker(d)}
		},
		loadFile: audio.FromFile,
		now:      time.Now,
		view:     View{State: fsm.StateIdle},
		actions:  make(chan action, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capture == nil {
		c.capture = unavailableCapture{}
	}
	if c.transcribe == nil {
		c.transcribe = unavailableTranscriber{}
	}
	if c.notes == nil {
		c.notes = fallbackNotes{}
	}
	return c, nil
}

// Close discards any live recording and releases the session slot.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rec := c.rec
	c.rec = nil
	c.mu.Unlock()

	if rec != nil {
		c.release(rec)
		c.acc.Reset()
	}
	active.Store(false)
	return nil
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	return c.View().State
}

// claim reserves the controller for an operation that starts from a resting
// state. The caller must finish with settle.
func (c *Controller) claim(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	if _, err := fsm.Transition(c.view.State, event); err != nil {
		return err
	}
	c.busy = true
	return nil
}

// apply runs one transition under lock, lets mutate adjust the view, and
// notifies observers with the result.
func (c *Controller) apply(event fsm.Event, mutate func(*View)) (View, error) {
	return c.transition(event, false, mutate)
}

// settle is apply for the transition that ends a claim.
func (c *Controller) settle(event fsm.Event, mutate func(*View)) (View, error) {
	return c.transition(event, true, mutate)
}

func (c *Controller) transition(event fsm.Event, release bool, mutate func(*View)) (View, error) {
	c.mu.Lock()
	if release {
		c.busy = false
	}
	next, err := fsm.Transition(c.view.State, event)
	if err != nil {
		snapshot := c.view
		c.mu.Unlock()
		return snapshot, err
	}
	c.view.State = next
	c.view.Event = event
	if mutate != nil {
		mutate(&c.view)
	}
	snapshot := c.view
	c.mu.Unlock()

	c.logTransition(snapshot)
	c.notify(snapshot)
	return snapshot, nil
}

// progress updates counters without a transition.
func (c *Controller) progress(mutate func(*View)) {
	c.mu.Lock()
	if c.view.State != fsm.StateRecording {
		c.mu.Unlock()
		return
	}
	mutate(&c.view)
	snapshot := c.view
	snapshot.Event = ""
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Controller) notify(v View) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for _, observer := range c.observers {
		observer.Observe(v)
	}
}

// resetView clears the previous attempt's results for a new attempt.
func (c *Controller) resetView(v *View, source Source) {
	*v = View{
		Event:     v.Event,
		State:     v.State,
		AttemptID: uuid.NewString(),
		Source:    source,
		StartedAt: c.now(),
	}
}

// fail returns the controller to Idle with err recorded. It is used when an
// attempt fails before Recording or Processing begins.
func (c *Controller) fail(source Source, err *fault.Error) View {
	snapshot, _ := c.settle(fsm.EventReset, func(v *View) {
		c.resetView(v, source)
		v.LastError = err
		v.Status = err.Message
		v.FinishedAt = c.now()
	})
	return snapshot
}

func (c *Controller) logTransition(v View) {
	if c.logger == nil {
		return
	}
	attrs := []any{
		"event", string(v.Event),
		"state", string(v.State),
		"attempt_id", v.AttemptID,
		"source", string(v.Source),
	}
	if v.LastError != nil {
		attrs = append(attrs, "error_kind", string(v.LastError.Kind))
		if v.LastError.Cause != nil {
			attrs = append(attrs, "error", v.LastError.Cause.Error())
		}
		c.logger.Warn("session transition", attrs...)
		return
	}
	c.logger.Debug("session transition", attrs...)
}

type unavailableCapture struct{}

func (unavailableCapture) Open(context.Context, audio.Constraints) (CaptureHandle, error) {
	return nil, audio.ErrNoDevice
}

type unavailableTranscriber struct{}

func (unavailableTranscriber) Transcribe(context.Context, audio.Payload) (string, error) {
	return "", errors.New("no transcriber configured")
}

type fallbackNotes struct{}

func (fallbackNotes) Generate(context.Context, string) note.SOAP {
	return note.Fallback()
}
