// Package doctor runs readiness checks for config, secrets, local tools,
// audio input and the two remote APIs.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/hypr"
	"github.com/rbright/medvoice/internal/ipc"
	"github.com/rbright/medvoice/internal/notegen"
)

const (
	defaultDeepgramHost = "https://api.deepgram.com"
	probeTimeout        = 3 * time.Second
)

type Check struct {
	Name    string
	Pass    bool
	Message string
}

type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders one line per check.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// probes are the checks that leave the process.
type probes struct {
	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	hyprVersion  func(ctx context.Context) (string, error)
	pingNotes    func(ctx context.Context, cfg config.Config) error
	httpClient   *http.Client
}

func liveProbes() probes {
	return probes{
		selectDevice: audio.SelectDevice,
		hyprVersion:  hypr.Version,
		pingNotes:    pingOpenAI,
		httpClient:   &http.Client{Timeout: probeTimeout},
	}
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	return run(ctx, loaded, liveProbes())
}

func run(ctx context.Context, loaded config.Loaded, p probes) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkSecrets(cfg.Secrets), checkRuntimeSocket()}

	if cfg.Export.Clipboard {
		checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	}
	if dir := strings.TrimSpace(cfg.Export.Dir); dir != "" {
		checks = append(checks, checkExportDir(dir))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkIndicator(ctx, cfg.Indicator, p))
	}

	checks = append(checks,
		checkAudioSelection(ctx, cfg.Audio, p),
		checkDeepgram(ctx, cfg, p.httpClient),
		checkOpenAI(ctx, cfg, p),
	)
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkSecrets(secrets config.Secrets) Check {
	if err := config.CheckSecrets(secrets); err != nil {
		return Check{Name: "secrets", Pass: false, Message: err.Error()}
	}
	return Check{Name: "secrets", Pass: true, Message: "DEEPGRAM_API_KEY and OPENAI_API_KEY are set"}
}

func checkRuntimeSocket() Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "ipc.socket", Pass: false, Message: err.Error()}
	}
	return Check{Name: "ipc.socket", Pass: true, Message: path}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkExportDir creates the directory if needed and proves it is writable.
func checkExportDir(dir string) Check {
	const name = "export.dir"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".medvoice-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("not writable: %v", err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	abs, _ := filepath.Abs(dir)
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("writable %s", abs)}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig, p probes) Check {
	if strings.EqualFold(cfg.Backend, "desktop") {
		return checkBinary("busctl", "desktop notifications via org.freedesktop.Notifications")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	version, err := p.hyprVersion(ctx)
	if err != nil {
		return Check{Name: "hyprctl", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprctl", Pass: true, Message: fmt.Sprintf("Hyprland %s", version)}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig, p probes) Check {
	selection, err := p.selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkDeepgram authenticates against the projects endpoint.
func checkDeepgram(ctx context.Context, cfg config.Config, client *http.Client) Check {
	const name = "deepgram.api"
	key := strings.TrimSpace(cfg.Secrets.DeepgramAPIKey)
	if key == "" {
		return Check{Name: name, Pass: false, Message: "skipped: DEEPGRAM_API_KEY is not set"}
	}

	base := strings.TrimSpace(cfg.Deepgram.Host)
	if base == "" {
		base = defaultDeepgramHost
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	url := strings.TrimRight(base, "/") + "/v1/projects"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Token "+key)

	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s: API key rejected", resp.StatusCode, base)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("authenticated at %s (model %s)", base, cfg.Deepgram.Model)}
}

func checkOpenAI(ctx context.Context, cfg config.Config, p probes) Check {
	const name = "openai.model"
	if strings.TrimSpace(cfg.Secrets.OpenAIAPIKey) == "" {
		return Check{Name: name, Pass: false, Message: "skipped: OPENAI_API_KEY is not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := p.pingNotes(ctx, cfg); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is available", cfg.OpenAI.Model)}
}

func pingOpenAI(ctx context.Context, cfg config.Config) error {
	gen, err := notegen.New(notegen.Config{
		APIKey:  cfg.Secrets.OpenAIAPIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: probeTimeout,
	}, nil)
	if err != nil {
		return err
	}
	return gen.Ping(ctx)
}
