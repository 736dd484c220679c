// Package metrics counts attempt outcomes and remote-call latency and can
// export them as a Prometheus textfile for node_exporter.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/session"
)

const namespace = "medvoice"

// Recorder is a session.Observer backed by a private registry.
type Recorder struct {
	registry *prometheus.Registry

	attempts          *prometheus.CounterVec
	outcomes          *prometheus.CounterVec
	transcribeLatency prometheus.Histogram
	noteLatency       prometheus.Histogram
	recordingSeconds  prometheus.Histogram
	audioBytes        *prometheus.CounterVec
	degradedNotes     prometheus.Counter

	mu sync.Mutex
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Attempts started, by audio source.",
		}, []string{"source"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_outcomes_total",
			Help:      "Finished attempts by final state and error kind.",
		}, []string{"source", "state", "kind"}),
		transcribeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_latency_seconds",
			Help:      "Deepgram transcription latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		noteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "note_latency_seconds",
			Help:      "SOAP note generation latency.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 90},
		}),
		recordingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Elapsed recording time at stop.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		audioBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio bytes submitted for transcription.",
		}, []string{"source"}),
		degradedNotes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_notes_total",
			Help:      "Notes that fell back to placeholder sections.",
		}),
	}
}

// Registry exposes the underlying registry for an HTTP handler or tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records counters from transition views.
func (r *Recorder) Observe(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source := string(v.Source)
	switch v.Event {
	case fsm.EventStart, fsm.EventUpload:
		r.attempts.WithLabelValues(source).Inc()
	}

	switch v.Event {
	case fsm.EventStop:
		r.recordingSeconds.Observe(float64(v.ElapsedSeconds))
		if v.Payload != nil {
			r.audioBytes.WithLabelValues(source).Add(float64(v.Payload.Len()))
		}
	case fsm.EventUpload:
		if v.Payload != nil {
			r.audioBytes.WithLabelValues(source).Add(float64(v.Payload.Len()))
		}
	case fsm.EventTranscribed:
		r.transcribeLatency.Observe(v.TranscribeLatency.Seconds())
	case fsm.EventNoted:
		r.noteLatency.Observe(v.NoteLatency.Seconds())
		if v.Note != nil && v.Note.Degraded {
			r.degradedNotes.Inc()
		}
		r.outcomes.WithLabelValues(source, string(v.State), "").Inc()
	case fsm.EventFail, fsm.EventEmpty, fsm.EventReset:
		if v.TranscribeLatency > 0 {
			r.transcribeLatency.Observe(v.TranscribeLatency.Seconds())
		}
		kind := ""
		if v.LastError != nil {
			kind = string(v.LastError.Kind)
		}
		r.outcomes.WithLabelValues(source, string(v.State), kind).Inc()
	case fsm.EventCancel:
		r.outcomes.WithLabelValues(source, "cancelled", "").Inc()
	}
}

var _ session.Observer = (*Recorder)(nil)
