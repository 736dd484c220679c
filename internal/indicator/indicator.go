// Package indicator turns session transitions into on-screen notifications
// and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/hypr"
	"github.com/rbright/medvoice/internal/session"
)

const (
	colorRecording  = "rgb(89b4fa)"
	colorProcessing = "rgb(cba6f7)"
	colorReady      = "rgb(a6e3a1)"
	colorError      = "rgb(f38ba8)"

	// Long enough to outlast any realistic recording; the next transition
	// replaces it.
	stickyTimeoutMS = 3_600_000
	readyTimeoutMS  = 2500

	dispatchTimeout = 400 * time.Millisecond
)

const (
	textRecording   = "Recording…"
	textTranscribe  = "Transcribing…"
	textGenerating  = "Generating SOAP note…"
	textReady       = "SOAP note ready"
	textDegraded    = "SOAP note incomplete. Review before use."
	textFallbackErr = "Recording failed"
)

// Notifier is a session.Observer that mirrors the lifecycle on screen.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger
	cue    func(context.Context, cueKind) error

	mu                    sync.Mutex
	desktopNotificationID uint32
	cueMu                 sync.Mutex
	cues                  sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, cue: emitCue}
}

// Observe dispatches on the event that produced v. Progress updates carry
// no event and are ignored.
func (n *Notifier) Observe(v session.View) {
	ctx := context.Background()

	switch v.Event {
	case fsm.EventStart:
		n.playCue(cueStart)
		n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorRecording, textRecording)
	case fsm.EventStop:
		n.playCue(cueStop)
		n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorProcessing, textTranscribe)
	case fsm.EventUpload:
		n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorProcessing, textTranscribe)
	case fsm.EventTranscribed:
		n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorProcessing, textGenerating)
	case fsm.EventNoted:
		if v.Note != nil && v.Note.Degraded {
			n.playCue(cueError)
			n.show(ctx, hypr.IconWarning, n.errorTimeout(), colorError, textDegraded)
			return
		}
		n.playCue(cueComplete)
		n.show(ctx, hypr.IconOK, readyTimeoutMS, colorReady, textReady)
	case fsm.EventCancel:
		n.playCue(cueCancel)
		n.hide(ctx)
	case fsm.EventEmpty, fsm.EventFail, fsm.EventReset:
		if v.LastError == nil {
			n.hide(ctx)
			return
		}
		n.playCue(cueError)
		n.showError(ctx, v.LastError.Message)
	}
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) showError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = textFallbackErr
	}
	n.show(ctx, hypr.IconError, n.errorTimeout(), colorError, text)
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return 1200
	}
	return n.cfg.ErrorTimeoutMS
}

func (n *Notifier) show(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.desktop() {
			return n.notifyDesktop(ctx, urgencyFor(icon), timeoutMS, text)
		}
		return hypr.Notify(ctx, icon, timeoutMS, color, text)
	})
}

func (n *Notifier) hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		if n.desktop() {
			return n.dismissDesktop(ctx)
		}
		return hypr.DismissNotify(ctx)
	})
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notifyDesktop replaces the previous desktop notification so only one
// lifecycle bubble is visible at a time.
func (n *Notifier) notifyDesktop(ctx context.Context, level urgency, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "medvoice"
	}

	id, err := desktopNotify(ctx, desktopMessage{
		appName:   appName,
		replaceID: replaceID,
		summary:   text,
		timeoutMS: timeoutMS,
		urgency:   level,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue plays asynchronously; cues never overlap.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.cueMu.Lock()
		defer n.cueMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.cue(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}

var _ session.Observer = (*Notifier)(nil)
