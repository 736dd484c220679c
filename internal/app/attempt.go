package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/deepgram"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/indicator"
	"github.com/rbright/medvoice/internal/ipc"
	"github.com/rbright/medvoice/internal/metrics"
	"github.com/rbright/medvoice/internal/note"
	"github.com/rbright/medvoice/internal/notegen"
	"github.com/rbright/medvoice/internal/output"
	"github.com/rbright/medvoice/internal/pipeline"
	"github.com/rbright/medvoice/internal/session"
)

// collaborators are the session's capture and remote dependencies.
type collaborators struct {
	capture     session.CaptureSource
	transcriber session.Transcriber
	notes       session.NoteGenerator
}

func liveCollaborators(cfg config.Config, logger *slog.Logger) (collaborators, error) {
	if err := config.CheckSecrets(cfg.Secrets); err != nil {
		return collaborators{}, err
	}

	transcriber, err := deepgram.New(deepgram.Config{
		APIKey:        cfg.Secrets.DeepgramAPIKey,
		Host:          cfg.Deepgram.Host,
		Model:         cfg.Deepgram.Model,
		Language:      cfg.Deepgram.Language,
		LabelSpeakers: cfg.Deepgram.LabelSpeakers,
		Timeout:       seconds(cfg.Deepgram.TimeoutSeconds),
	}, logger)
	if err != nil {
		return collaborators{}, fmt.Errorf("deepgram client: %w", err)
	}

	notes, err := notegen.New(notegen.Config{
		APIKey:      cfg.Secrets.OpenAIAPIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: &cfg.OpenAI.Temperature,
		Timeout:     seconds(cfg.OpenAI.TimeoutSeconds),
	}, logger)
	if err != nil {
		return collaborators{}, fmt.Errorf("note generator: %w", err)
	}

	return collaborators{
		capture:     pipeline.NewMicrophone(cfg, logger),
		transcriber: transcriber,
		notes:       notes,
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func constraintsFor(cfg config.AudioConfig) audio.Constraints {
	return audio.Constraints{
		EchoCancellation: cfg.EchoCancellation,
		NoiseSuppression: cfg.NoiseSuppression,
		SampleRate:       cfg.SampleRate,
	}
}

// commandRecord owns the control socket for the life of one recording.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	owner, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: acquireProbe, Retries: acquireRetries})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v; use `%s stop` or `%s cancel`\n", err, binaryName, binaryName)
			return exitFailure
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := owner.Release(); err != nil {
			logger.Warn("release control socket failed", "path", owner.Path(), "error", err.Error())
		}
	}()

	return r.runAttempt(ctx, cfg, logger, func(ctx context.Context, ctrl *session.Controller) (session.View, error) {
		var (
			view   session.View
			runErr error
		)

		g, gctx := errgroup.WithContext(ctx)
		serveCtx, stopServing := context.WithCancel(gctx)
		defer stopServing()

		g.Go(func() error {
			return ipc.Serve(serveCtx, owner, ctrl)
		})
		g.Go(func() error {
			defer stopServing()
			view, runErr = ctrl.Run(gctx, constraintsFor(cfg.Audio))
			return nil
		})

		if err := g.Wait(); err != nil {
			return view, fmt.Errorf("ipc server failed: %w", err)
		}
		return view, runErr
	})
}

func (r Runner) commandUpload(ctx context.Context, cfg config.Config, logger *slog.Logger, path string) int {
	return r.runAttempt(ctx, cfg, logger, func(ctx context.Context, ctrl *session.Controller) (session.View, error) {
		return ctrl.UploadFile(ctx, path)
	})
}

// runAttempt wires a controller with every observer, runs one attempt, and
// reports its outcome.
func (r Runner) runAttempt(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	attempt func(context.Context, *session.Controller) (session.View, error),
) int {
	build := r.build
	if build == nil {
		build = liveCollaborators
	}
	deps, err := build(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build session failed", "error", err.Error())
		return exitFailure
	}

	recorder := metrics.New()
	notifier := indicator.New(cfg.Indicator, logger)
	ctrl, err := session.NewController(deps.capture, deps.transcriber, deps.notes,
		session.WithLogger(logger),
		session.WithObserver(notifier),
		session.WithObserver(recorder),
		session.WithObserver(newProgress(r.Stderr)),
	)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer func() { _ = ctrl.Close() }()

	view, runErr := attempt(ctx, ctrl)
	notifier.Wait()

	exporter := output.NewExporter(exportOptions(cfg.Export, cfg.Clipboard), logger)
	code := r.report(context.WithoutCancel(ctx), exporter, view, runErr)

	if path := cfg.Metrics.Textfile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile write failed", "error", err.Error())
		}
	}
	logAttempt(logger, view, runErr)
	return code
}

func exportOptions(cfg config.ExportConfig, clipboard config.CommandConfig) output.ExportOptions {
	opts := output.ExportOptions{Dir: cfg.Dir, SaveRecording: cfg.SaveRecording}
	if cfg.Clipboard {
		opts.Clipboard = &output.Clipboard{Argv: clipboard.Argv}
	}
	return opts
}

// report prints the note on stdout and everything else on stderr.
func (r Runner) report(ctx context.Context, exporter *output.Exporter, v session.View, err error) int {
	if errors.Is(err, session.ErrCancelled) || (errors.Is(err, context.Canceled) && v.State == fsm.StateIdle) {
		fmt.Fprintln(r.Stdout, "cancelled")
		return exitOK
	}

	if v.State == fsm.StateDone && v.Note != nil {
		fmt.Fprintln(r.Stdout, note.Text(*v.Note))

		exported, exportErr := exporter.Export(ctx, v)
		if exportErr != nil {
			fmt.Fprintf(r.Stderr, "error: export note: %v\n", exportErr)
			return exitFailure
		}
		if exported.NotePath != "" {
			fmt.Fprintf(r.Stderr, "saved note to %s\n", exported.NotePath)
		}
		if exported.RecordingPath != "" {
			fmt.Fprintf(r.Stderr, "saved recording to %s\n", exported.RecordingPath)
		}
		if exported.Copied {
			fmt.Fprintln(r.Stderr, "copied note to clipboard")
		}
		if v.Note.Degraded {
			fmt.Fprintln(r.Stderr, "warning: note is incomplete; review before use")
		}
		return exitOK
	}

	if classified, ok := fault.As(err); ok {
		fmt.Fprintf(r.Stderr, "error: %s\n", classified.Message)
		return exitFailure
	}
	if err == nil {
		err = fmt.Errorf("attempt ended in state %s", v.State)
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return exitFailure
}

func logAttempt(logger *slog.Logger, v session.View, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"attempt_id", v.AttemptID,
		"source", v.Source,
		"state", v.State,
		"elapsed_seconds", v.ElapsedSeconds,
		"transcribe_latency_ms", v.TranscribeLatency.Milliseconds(),
		"note_latency_ms", v.NoteLatency.Milliseconds(),
	}
	if !v.StartedAt.IsZero() && !v.FinishedAt.IsZero() {
		fields = append(fields, "duration_ms", v.FinishedAt.Sub(v.StartedAt).Milliseconds())
	}
	if v.Payload != nil {
		fields = append(fields, "audio_bytes", v.Payload.Len(), "media_type", v.Payload.MediaType())
	}
	if v.Transcript != nil {
		fields = append(fields, "transcript_length", len(*v.Transcript))
	}
	if v.Note != nil {
		fields = append(fields, "note_degraded", v.Note.Degraded)
	}

	if errors.Is(err, session.ErrCancelled) || errors.Is(err, context.Canceled) {
		logger.Info("attempt cancelled", fields...)
		return
	}
	if err != nil {
		if classified, ok := fault.As(err); ok {
			fields = append(fields, "kind", classified.Kind)
		}
		logger.Error("attempt failed", append(fields, "error", err.Error())...)
		return
	}
	logger.Info("attempt complete", fields...)
}

// progress echoes status lines to the terminal as the attempt advances.
type progress struct {
	w    io.Writer
	mu   sync.Mutex
	last string
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) Observe(v session.View) {
	line := v.Status
	if v.Event == fsm.EventStart {
		line = fmt.Sprintf("recording; run `%s stop` to finish or `%s cancel` to discard", binaryName, binaryName)
	}
	// Terminal failures are reported once by Runner.report.
	if line == "" || v.LastError != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.w, line)
}
