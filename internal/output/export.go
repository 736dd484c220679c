package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/note"
	"github.com/rbright/medvoice/internal/session"
)

// NoteFileName is the export name for rendered notes.
const NoteFileName = "soap-note.txt"

// WriteNote renders soap into dir/soap-note.txt and returns the path.
func WriteNote(dir string, soap note.SOAP) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, NoteFileName)
	if err := os.WriteFile(path, []byte(note.Text(soap)), 0o644); err != nil {
		return "", fmt.Errorf("write note %q: %w", path, err)
	}
	return path, nil
}

// RecordingFileName names an exported recording after its capture time in
// UTC, truncated to seconds.
func RecordingFileName(t time.Time, mediaType string) string {
	return fmt.Sprintf("medvoice-recording-%s%s", t.UTC().Format("2006-01-02T15:04:05"), recordingExtension(mediaType))
}

func recordingExtension(mediaType string) string {
	if _, ok := audio.PCMSampleRate(mediaType); ok {
		return ".wav"
	}
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	switch base {
	case audio.MediaTypeWAV, "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	default:
		return ".webm"
	}
}

// WriteRecording stores payload in dir. Raw PCM is wrapped in a WAV header.
func WriteRecording(dir string, payload audio.Payload, capturedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := RecordingFileName(capturedAt, payload.MediaType())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, audio.Containerize(payload).Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write recording %q: %w", path, err)
	}
	return path, nil
}

// ExportOptions selects which artifacts an Exporter produces.
type ExportOptions struct {
	Dir           string
	SaveRecording bool
	Clipboard     *Clipboard
}

// Exported lists the artifacts produced for one attempt.
type Exported struct {
	NotePath      string
	RecordingPath string
	Copied        bool
}

// Exporter writes a finished attempt's artifacts.
type Exporter struct {
	opts   ExportOptions
	logger *slog.Logger
}

func NewExporter(opts ExportOptions, logger *slog.Logger) *Exporter {
	return &Exporter{opts: opts, logger: logger}
}

// Export handles a Done view. Other views export nothing. Clipboard failures
// are logged and do not fail the export.
func (e *Exporter) Export(ctx context.Context, v session.View) (Exported, error) {
	var out Exported
	if v.Note == nil {
		return out, nil
	}

	if dir := e.opts.Dir; dir != "" {
		path, err := WriteNote(dir, *v.Note)
		if err != nil {
			return out, err
		}
		out.NotePath = path

		if e.opts.SaveRecording && v.Payload != nil && v.Source == session.SourceMicrophone {
			recPath, err := WriteRecording(dir, *v.Payload, v.StartedAt)
			if err != nil {
				return out, err
			}
			out.RecordingPath = recPath
		}
	}

	if e.opts.Clipboard != nil {
		if err := e.opts.Clipboard.Copy(ctx, note.Text(*v.Note)); err != nil {
			if e.logger != nil {
				e.logger.Error("clipboard export failed", "error", err.Error())
			}
		} else {
			out.Copied = true
		}
	}
	return out, nil
}
