package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/note"
	"github.com/rbright/medvoice/internal/session"
)

func sampleSOAP() note.SOAP {
	return note.SOAP{
		Subjective: note.Section{Text: "Patient reports fever.", Sources: []string{"Patient reports fever."}},
		Objective:  note.Section{Text: "Temp 38.4C.", Sources: []string{}},
		Assessment: note.Section{Text: "Likely viral.", Sources: []string{}},
		Plan:       note.Section{Text: "Fluids and rest.", Sources: []string{}},
	}
}

func TestWriteNoteRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")
	soap := sampleSOAP()

	path, err := WriteNote(dir, soap)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "soap-note.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, note.Text(soap), string(data))

	parsed, err := note.ParseText(string(data))
	require.NoError(t, err)
	for _, name := range note.Sections() {
		require.Equal(t, soap.Section(name).Text, parsed.Section(name).Text)
	}
}

func TestRecordingFileName(t *testing.T) {
	at := time.Date(2026, 3, 4, 9, 5, 7, 999_000_000, time.UTC)

	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.webm", RecordingFileName(at, "audio/webm;codecs=opus"))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.webm", RecordingFileName(at, ""))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.wav", RecordingFileName(at, audio.PCMMediaType(16000)))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.wav", RecordingFileName(at, "audio/wav"))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.ogg", RecordingFileName(at, "audio/ogg"))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.mp3", RecordingFileName(at, "audio/mpeg"))

	eastern := at.In(time.FixedZone("EST", -5*60*60))
	require.Equal(t, "medvoice-recording-2026-03-04T09:05:07.webm", RecordingFileName(eastern, "audio/webm"))
}

func TestWriteRecordingWrapsPCM(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := audio.NewPayload([]byte{1, 0, 2, 0}, audio.PCMMediaType(16000))

	path, err := WriteRecording(dir, payload, at)
	require.NoError(t, err)
	require.Equal(t, ".wav", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[:4]))
	require.Len(t, data, 48)
}

func TestWriteRecordingKeepsEncodedAudio(t *testing.T) {
	dir := t.TempDir()
	payload := audio.NewPayload([]byte("webm-bytes"), "audio/webm")

	path, err := WriteRecording(dir, payload, time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "webm-bytes", string(data))
}

func TestExporterWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")
	soap := sampleSOAP()
	payload := audio.NewPayload([]byte{1, 0}, audio.PCMMediaType(16000))

	exporter := NewExporter(ExportOptions{
		Dir:           dir,
		SaveRecording: true,
		Clipboard:     &Clipboard{Argv: []string{writeStdinCaptureScript(t), clipboardPath}},
	}, nil)

	out, err := exporter.Export(context.Background(), session.View{
		State:     fsm.StateDone,
		Source:    session.SourceMicrophone,
		Note:      &soap,
		Payload:   &payload,
		StartedAt: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, NoteFileName), out.NotePath)
	require.Equal(t, filepath.Join(dir, "medvoice-recording-2026-05-06T07:08:09.wav"), out.RecordingPath)
	require.True(t, out.Copied)

	copied, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, note.Text(soap), string(copied))
}

func TestExporterSkipsViewsWithoutNote(t *testing.T) {
	exporter := NewExporter(ExportOptions{Dir: t.TempDir()}, nil)

	out, err := exporter.Export(context.Background(), session.View{State: fsm.StateError})
	require.NoError(t, err)
	require.Equal(t, Exported{}, out)
}

func TestExporterDoesNotSaveUploadedRecording(t *testing.T) {
	dir := t.TempDir()
	soap := sampleSOAP()
	payload := audio.NewPayload([]byte("ogg"), "audio/ogg")

	out, err := NewExporter(ExportOptions{Dir: dir, SaveRecording: true}, nil).Export(context.Background(), session.View{
		State:   fsm.StateDone,
		Source:  session.SourceFile,
		Note:    &soap,
		Payload: &payload,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.NotePath)
	require.Empty(t, out.RecordingPath)
}

func TestExporterClipboardFailureIsNotFatal(t *testing.T) {
	soap := sampleSOAP()
	exporter := NewExporter(ExportOptions{Clipboard: &Clipboard{Argv: []string{writeFailScript(t, "boom")}}}, nil)

	out, err := exporter.Export(context.Background(), session.View{State: fsm.StateDone, Note: &soap})
	require.NoError(t, err)
	require.False(t, out.Copied)
}
