// Package hypr wraps the hyprctl calls used for on-screen notifications.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon values accepted by hyprctl notify.
const (
	IconWarning  = 0
	IconInfo     = 1
	IconHint     = 2
	IconError    = 3
	IconConfused = 4
	IconOK       = 5
)

const defaultColor = "rgb(89b4fa)"

// Notify shows a Hyprland notification for timeoutMS.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(icon),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

// Version reports the running compositor's release tag. It fails when no
// Hyprland instance is reachable.
func Version(ctx context.Context) (string, error) {
	out, err := runHyprctlOutput(ctx, "-j", "version")
	if err != nil {
		return "", err
	}

	var payload struct {
		Tag    string `json:"tag"`
		Commit string `json:"commit"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return "", fmt.Errorf("decode hyprctl version json: %w", err)
	}

	tag := strings.TrimSpace(payload.Tag)
	if tag == "" {
		tag = strings.TrimSpace(payload.Commit)
	}
	if tag == "" {
		return "", errors.New("hyprctl version returned no tag")
	}
	return tag, nil
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
