package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/fault"
	"github.com/rbright/medvoice/internal/fsm"
	"github.com/rbright/medvoice/internal/hypr"
	"github.com/rbright/medvoice/internal/note"
	"github.com/rbright/medvoice/internal/session"
)

type cueLog struct {
	mu    sync.Mutex
	kinds []cueKind
}

func (c *cueLog) play(_ context.Context, kind cueKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	return nil
}

func newTestNotifier(t *testing.T, cfg config.IndicatorConfig) (*Notifier, *cueLog) {
	t.Helper()
	cues := &cueLog{}
	n := New(cfg, nil)
	n.cue = cues.play
	return n, cues
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestNotifierMirrorsSuccessfulRecording(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	n, cues := newTestNotifier(t, config.Default().Indicator)
	soap := note.SOAP{}

	n.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording})
	n.Observe(session.View{State: fsm.StateRecording, ElapsedSeconds: 1})
	n.Observe(session.View{Event: fsm.EventStop, State: fsm.StateProcessing})
	n.Observe(session.View{Event: fsm.EventTranscribed, State: fsm.StateProcessing})
	n.Observe(session.View{Event: fsm.EventNoted, State: fsm.StateDone, Note: &soap})
	n.Wait()

	require.Equal(t, []string{
		"--quiet dispatch notify 1 3600000 rgb(89b4fa) Recording…",
		"--quiet dispatch notify 1 3600000 rgb(cba6f7) Transcribing…",
		"--quiet dispatch notify 1 3600000 rgb(cba6f7) Generating SOAP note…",
		"--quiet dispatch notify 5 2500 rgb(a6e3a1) SOAP note ready",
	}, readArgs(t, argsFile))
	require.Equal(t, []cueKind{cueStart, cueStop, cueComplete}, cues.kinds)
}

func TestNotifierShowsClassifiedErrors(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	cfg := config.Default().Indicator
	cfg.ErrorTimeoutMS = 0
	n, cues := newTestNotifier(t, cfg)

	n.Observe(session.View{Event: fsm.EventReset, State: fsm.StateIdle, LastError: fault.New(fault.DeviceNotFound, nil)})
	n.Observe(session.View{Event: fsm.EventFail, State: fsm.StateError, LastError: fault.New(fault.Network, nil)})
	n.Observe(session.View{Event: fsm.EventFail, State: fsm.StateError, LastError: &fault.Error{Kind: fault.Unknown}})
	n.Wait()

	require.Equal(t, []string{
		"--quiet dispatch notify 3 1200 rgb(f38ba8) " + fault.Message(fault.DeviceNotFound),
		"--quiet dispatch notify 3 1200 rgb(f38ba8) " + fault.Message(fault.Network),
		"--quiet dispatch notify 3 1200 rgb(f38ba8) Recording failed",
	}, readArgs(t, argsFile))
	require.Equal(t, []cueKind{cueError, cueError, cueError}, cues.kinds)
}

func TestNotifierDegradedNoteWarns(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	n, cues := newTestNotifier(t, config.Default().Indicator)
	soap := note.Fallback()
	n.Observe(session.View{Event: fsm.EventNoted, State: fsm.StateDone, Note: &soap})
	n.Wait()

	require.Equal(t, []string{"--quiet dispatch notify 0 4000 rgb(f38ba8) SOAP note incomplete. Review before use."}, readArgs(t, argsFile))
	require.Equal(t, []cueKind{cueError}, cues.kinds)
}

func TestNotifierCancelDismisses(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	n, cues := newTestNotifier(t, config.Default().Indicator)
	n.Observe(session.View{Event: fsm.EventCancel, State: fsm.StateIdle})
	n.Wait()

	require.Equal(t, []string{"--quiet dispatch dismissnotify"}, readArgs(t, argsFile))
	require.Equal(t, []cueKind{cueCancel}, cues.kinds)
}

func TestNotifierDisabledSkipsDispatchAndSound(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false
	n, cues := newTestNotifier(t, cfg)

	n.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording})
	n.Observe(session.View{Event: fsm.EventCancel, State: fsm.StateIdle})
	n.Wait()

	_, err := os.Stat(argsFile)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, cues.kinds)
}

func TestNotifierDesktopBackendReplacesNotification(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$*" == *" Notify "* ]]; then
  echo 'u 42'
fi
`)

	cfg := config.Default().Indicator
	cfg.Backend = "desktop"
	cfg.SoundEnable = false
	n, _ := newTestNotifier(t, cfg)

	n.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording})
	n.Observe(session.View{Event: fsm.EventStop, State: fsm.StateProcessing})
	n.Observe(session.View{Event: fsm.EventCancel, State: fsm.StateIdle})

	lines := readArgs(t, argsFile)
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i medvoice 0  Recording…  0 1 urgency y 1 3600000")
	require.Contains(t, lines[1], "Notify susssasa{sv}i medvoice 42  Transcribing…")
	require.Contains(t, lines[2], "CloseNotification u 42")
}

func TestParseNotifyReply(t *testing.T) {
	id, err := parseNotifyReply("u 17\n")
	require.NoError(t, err)
	require.Equal(t, uint32(17), id)

	_, err = parseNotifyReply("s hello")
	require.ErrorContains(t, err, "unexpected reply")

	_, err = parseNotifyReply("u nope")
	require.ErrorContains(t, err, "parse notification id")
}

func TestUrgencyFollowsIcon(t *testing.T) {
	require.Equal(t, urgencyCritical, urgencyFor(hypr.IconError))
	require.Equal(t, urgencyCritical, urgencyFor(hypr.IconWarning))
	require.Equal(t, urgencyLow, urgencyFor(hypr.IconOK))
	require.Equal(t, urgencyNormal, urgencyFor(hypr.IconInfo))
}

func TestNotifierDispatchFailureIsNotFatal(t *testing.T) {
	installHyprctlStub(t, `exit 1`)

	n, _ := newTestNotifier(t, config.Default().Indicator)
	n.Observe(session.View{Event: fsm.EventStart, State: fsm.StateRecording})
	n.Wait()
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()
	installStub(t, "hyprctl", body)
}

func installStub(t *testing.T, name string, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
