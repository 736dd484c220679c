package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/note"
	"github.com/rbright/medvoice/internal/session"
)

func textfile(t *testing.T, r *Recorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prom", "medvoice.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecorderCountsSuccessfulRecording(t *testing.T) {
	r := New()
	payload := audio.NewPayload(make([]byte, 3200), audio.PCMMediaType(16000))
	soap := note.SOAP{}

	mic := session.SourceMicrophone
	r.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording, Source: mic})
	r.Observe(session.View{State: fsm.StateRecording, Source: mic, ElapsedSeconds: 1})
	r.Observe(session.View{Event: fsm.EventStop, State: fsm.StateProcessing, Source: mic, ElapsedSeconds: 42, Payload: &payload})
	r.Observe(session.View{Event: fsm.EventTranscribed, State: fsm.StateProcessing, Source: mic, TranscribeLatency: 1500 * time.Millisecond})
	r.Observe(session.View{Event: fsm.EventNoted, State: fsm.StateDone, Source: mic, Note: &soap, NoteLatency: 3 * time.Second})

	out := textfile(t, r)
	require.Contains(t, out, `medvoice_attempts_total{source="microphone"} 1`)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="",source="microphone",state="done"} 1`)
	require.Contains(t, out, `medvoice_audio_bytes_total{source="microphone"} 3200`)
	require.Contains(t, out, `medvoice_recording_duration_seconds_sum 42`)
	require.Contains(t, out, `medvoice_transcribe_latency_seconds_sum 1.5`)
	require.Contains(t, out, `medvoice_note_latency_seconds_sum 3`)
	require.Contains(t, out, `medvoice_degraded_notes_total 0`)
}

func TestRecorderCountsFailuresByKind(t *testing.T) {
	r := New()
	file := session.SourceFile

	r.Observe(session.View{Event: fsm.EventReset, State: fsm.StateIdle, Source: file, LastError: fault.New(fault.Unsupported, nil)})
	r.Observe(session.View{Event: fsm.EventUpload, State: fsm.StateProcessing, Source: file})
	r.Observe(session.View{Event: fsm.EventFail, State: fsm.StateError, Source: file, LastError: fault.New(fault.Network, nil), TranscribeLatency: time.Second})
	r.Observe(session.View{Event: fsm.EventCancel, State: fsm.StateIdle, Source: session.SourceMicrophone})

	degraded := note.Fallback()
	r.Observe(session.View{Event: fsm.EventNoted, State: fsm.StateDone, Source: file, Note: &degraded})

	out := textfile(t, r)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="unsupported",source="file",state="idle"} 1`)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="network",source="file",state="error"} 1`)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="",source="microphone",state="cancelled"} 1`)
	require.Contains(t, out, `medvoice_transcribe_latency_seconds_count 1`)
	require.Contains(t, out, `medvoice_degraded_notes_total 1`)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Observe(session.View{Event: fsm.EventStart, Source: session.SourceMicrophone})

	require.Contains(t, textfile(t, a), `medvoice_attempts_total{source="microphone"} 1`)
	require.NotContains(t, textfile(t, b), `medvoice_attempts_total{source="microphone"}`)
}

func TestWriteTextfileAccumulatesAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medvoice.prom")
	mic := session.SourceMicrophone
	degraded := note.Fallback()

	for range 2 {
		r := New()
		r.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording, Source: mic})
		r.Observe(session.View{Event: fsm.EventNoted, State: fsm.StateDone, Source: mic, Note: &degraded, NoteLatency: 2 * time.Second})
		require.NoError(t, r.WriteTextfile(path))
	}

	upload := New()
	upload.Observe(session.View{Event: fsm.EventUpload, State: fsm.StateProcessing, Source: session.SourceFile})
	upload.Observe(session.View{Event: fsm.EventFail, State: fsm.StateError, Source: session.SourceFile, LastError: fault.New(fault.Network, nil), TranscribeLatency: time.Second})
	require.NoError(t, upload.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	require.Contains(t, out, `medvoice_attempts_total{source="microphone"} 2`)
	require.Contains(t, out, `medvoice_attempts_total{source="file"} 1`)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="",source="microphone",state="done"} 2`)
	require.Contains(t, out, `medvoice_attempt_outcomes_total{kind="network",source="file",state="error"} 1`)
	require.Contains(t, out, `medvoice_degraded_notes_total 2`)
	require.Contains(t, out, `medvoice_note_latency_seconds_bucket{le="2"} 2`)
	require.Contains(t, out, `medvoice_note_latency_seconds_bucket{le="+Inf"} 2`)
	require.Contains(t, out, `medvoice_note_latency_seconds_sum 4`)
	require.Contains(t, out, `medvoice_note_latency_seconds_count 2`)
	require.Contains(t, out, `medvoice_transcribe_latency_seconds_count 1`)
	require.Equal(t, 1, strings.Count(out, "# TYPE medvoice_attempts_total counter"))
}

func TestWriteTextfileKeepsUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medvoice.prom")
	require.NoError(t, os.WriteFile(path, []byte("medvoice_attempts_total{ garbage\n"), 0o644))

	r := New()
	r.Observe(session.View{Event: fsm.EventStart, Source: session.SourceMicrophone})
	require.ErrorContains(t, r.WriteTextfile(path), "parse metrics textfile")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "medvoice_attempts_total{ garbage\n", string(data))
}
