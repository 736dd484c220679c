// Package app dispatches parsed CLI commands to the session, IPC, doctor and
// device listing.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/cli"
	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/doctor"
	"github.com/rbright/medvoice/internal/ipc"
	"github.com/rbright/medvoice/internal/logging"
	"github.com/rbright/medvoice/internal/version"
)

const (
	binaryName     = "medvoice"
	forwardTimeout = 220 * time.Millisecond
	acquireProbe   = 180 * time.Millisecond
	acquireRetries = 8
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// build overrides the live capture and remote clients.
	build func(config.Config, *slog.Logger) (collaborators, error)
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return exitOK
	}
	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	logOpts := logging.Options{Debug: parsed.Verbose}
	if parsed.Verbose {
		logOpts.Mirror = r.Stderr
	}
	logRuntime, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: logging disabled: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return exitFailure
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	if dir := strings.TrimSpace(parsed.OutDir); dir != "" {
		loaded.Config.Export.Dir = dir
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandRecord:
		return r.commandRecord(ctx, loaded.Config, logger)
	case cli.CommandUpload:
		return r.commandUpload(ctx, loaded.Config, logger, parsed.File)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forward(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forward(ctx, ipc.CommandCancel)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return exitOK
		}
		return exitFailure
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return exitFailure
	}
	for _, device := range devices {
		fmt.Fprintln(r.Stdout, formatDevice(device))
	}
	return exitOK
}

func formatDevice(device audio.Device) string {
	mark := " "
	if device.Default {
		mark = "*"
	}
	var flags []string
	if !device.Available {
		flags = append(flags, "unavailable")
	}
	if device.Muted {
		flags = append(flags, "muted")
	}
	line := fmt.Sprintf("%s %s [%s]", mark, device.Label(), device.State)
	if len(flags) > 0 {
		line += " " + strings.Join(flags, ",")
	}
	return line
}

// commandStatus prints "idle" when no recording process owns the socket.
func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return exitOK
	}

	resp, err := ipc.Call(ctx, socketPath, ipc.CommandStatus, forwardTimeout)
	switch {
	case errors.Is(err, ipc.ErrNotRunning):
		fmt.Fprintln(r.Stdout, "idle")
		return exitOK
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	if resp.Message != "" && resp.Message != state {
		fmt.Fprintf(r.Stdout, "%s: %s\n", state, resp.Message)
		return exitOK
	}
	fmt.Fprintln(r.Stdout, state)
	return exitOK
}

func (r Runner) forward(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	resp, err := ipc.Call(ctx, socketPath, command, forwardTimeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}
