package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/note"
)

type fakeHandle struct {
	chunks    chan []byte
	mediaType string
	closes    atomic.Int32
	once      sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{chunks: make(chan []byte, 32), mediaType: audio.PCMMediaType(16000)}
}

func (h *fakeHandle) Chunks() <-chan []byte { return h.chunks }
func (h *fakeHandle) MediaType() string     { return h.mediaType }
func (h *fakeHandle) Close() error {
	h.closes.Add(1)
	h.once.Do(func() { close(h.chunks) })
	return nil
}

type fakeCapture struct {
	mu      sync.Mutex
	handles []*fakeHandle
	err     error
	opens   int
	last    audio.Constraints
}

func (c *fakeCapture) Open(_ context.Context, constraints audio.Constraints) (CaptureHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	c.last = constraints
	if c.err != nil {
		return nil, c.err
	}
	h := newFakeHandle()
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeCapture) handle(t *testing.T) *fakeHandle {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.handles)
	return c.handles[len(c.handles)-1]
}

type fakeTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	payloads []audio.Payload
}

func (f *fakeTranscriber) Transcribe(_ context.Context, payload audio.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotes struct {
	mu     sync.Mutex
	soap   note.SOAP
	inputs []string
}

func (f *fakeNotes) Generate(_ context.Context, transcript string) note.SOAP {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, transcript)
	return f.soap
}

func (f *fakeNotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type manualTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type recordedViews struct {
	mu    sync.Mutex
	views []View
}

func (r *recordedViews) Observe(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordedViews) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, v := range r.views {
		if v.Event != "" {
			out = append(out, string(v.Event))
		}
	}
	return out
}

func sampleNote() note.SOAP {
	return note.SOAP{
		Subjective: note.Section{Text: "Fever.", Sources: []string{"Patient reports fever."}},
		Objective:  note.Section{Text: "Febrile.", Sources: []string{}},
		Assessment: note.Section{Text: "Viral illness.", Sources: []string{}},
		Plan:       note.Section{Text: "Rest.", Sources: []string{}},
	}
}

type harness struct {
	ctrl        *Controller
	capture     *fakeCapture
	transcriber *fakeTranscriber
	notes       *fakeNotes
	ticker      *manualTicker
	views       *recordedViews
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		capture:     &fakeCapture{},
		transcriber: &fakeTranscriber{text: "Patient reports fever."},
		notes:       &fakeNotes{soap: sampleNote()},
		ticker:      &manualTicker{c: make(chan time.Time)},
		views:       &recordedViews{},
	}
	opts = append([]Option{
		WithTicker(func(time.Duration) Ticker { return h.ticker }),
		WithObserver(h.views),
	}, opts...)

	ctrl, err := NewController(h.capture, h.transcriber, h.notes, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })
	h.ctrl = ctrl
	return h
}

func (h *harness) startWithChunks(t *testing.T, chunks ...[]byte) *fakeHandle {
	t.Helper()
	require.NoError(t, h.ctrl.StartRecording(context.Background(), audio.DefaultConstraints()))
	handle := h.capture.handle(t)
	for _, chunk := range chunks {
		handle.chunks <- chunk
	}
	return handle
}
