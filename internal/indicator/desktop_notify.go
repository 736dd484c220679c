package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rbright/medvoice/internal/hypr"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
	notifySignature   = "susssasa{sv}i"
	closeSignature    = "u"
	noActions         = "0"
)

// urgency is the freedesktop "urgency" hint byte.
type urgency byte

const (
	urgencyLow urgency = iota
	urgencyNormal
	urgencyCritical
)

func urgencyFor(icon int) urgency {
	switch icon {
	case hypr.IconError, hypr.IconWarning:
		return urgencyCritical
	case hypr.IconOK:
		return urgencyLow
	default:
		return urgencyNormal
	}
}

type desktopMessage struct {
	appName   string
	replaceID uint32
	summary   string
	timeoutMS int
	urgency   urgency
}

// args renders the Notify call in busctl's positional encoding: app name,
// replace id, icon, summary, body, actions, hints, timeout.
func (m desktopMessage) args() []string {
	return []string{
		m.appName,
		strconv.FormatUint(uint64(m.replaceID), 10),
		"",
		m.summary,
		"",
		noActions,
		"1", "urgency", "y", strconv.Itoa(int(m.urgency)),
		strconv.Itoa(m.timeoutMS),
	}
}

// desktopNotify shows or replaces a notification and returns the id the
// server assigned to it.
func desktopNotify(ctx context.Context, msg desktopMessage) (uint32, error) {
	reply, err := callNotifications(ctx, "Notify", notifySignature, msg.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	id, err := parseNotifyReply(reply)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	return id, nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := callNotifications(ctx, "CloseNotification", closeSignature, strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss: %w", err)
	}
	return nil
}

// parseNotifyReply reads busctl's "u <id>" reply.
func parseNotifyReply(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(reply), " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("unexpected reply %q", strings.TrimSpace(reply))
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", value, err)
	}
	return uint32(id), nil
}

func callNotifications(ctx context.Context, method, signature string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsDest, method, signature}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	if err != nil {
		if detail := strings.TrimSpace(string(out)); detail != "" {
			return "", fmt.Errorf("%w (%s)", err, detail)
		}
		return "", err
	}
	return string(out), nil
}
