// Package notegen turns an encounter transcript into a SOAP note using an
// OpenAI chat model.
package notegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/rbright/medvoice/internal/note"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.2
	DefaultTimeout     = 90 * time.Second
)

var ErrMissingAPIKey = errors.New("openai api key is required")

// Config selects the chat model and endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	// Temperature nil means DefaultTemperature; an explicit 0 is kept.
	Temperature *float64
	Timeout     time.Duration
}

// Generator produces SOAP notes. Generate never returns an error; failures
// yield note.Fallback.
type Generator struct {
	client oai.Client
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == nil {
		temperature := DefaultTemperature
		cfg.Temperature = &temperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}

	return &Generator{
		client: oai.NewClient(reqOpts...),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Generate requests a note for transcript.
func (g *Generator) Generate(ctx context.Context, transcript string) note.SOAP {
	started := time.Now()

	raw, err := g.complete(ctx, Prompt(transcript))
	if err != nil {
		g.logFallback("soap note request failed", err, started)
		return note.Fallback()
	}

	soap, err := note.Parse(raw)
	if err != nil {
		g.logFallback("soap note response unusable", err, started)
		return note.Fallback()
	}

	if g.logger != nil {
		g.logger.Debug("soap note generated", "model", g.cfg.Model, "elapsed_ms", time.Since(started).Milliseconds())
	}
	return soap
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.cfg.Model),
		Messages:    []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
		Temperature: param.NewOpt(*g.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Generator) logFallback(msg string, err error, started time.Time) {
	if g.logger == nil {
		return
	}
	g.logger.Warn(msg,
		"error", err.Error(),
		"model", g.cfg.Model,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
}

// Ping confirms the configured model is visible to the API key.
func (g *Generator) Ping(ctx context.Context) error {
	model, err := g.client.Models.Get(ctx, g.cfg.Model)
	if err != nil {
		return fmt.Errorf("lookup model %q: %w", g.cfg.Model, err)
	}
	if model.ID == "" {
		return fmt.Errorf("lookup model %q: empty response", g.cfg.Model)
	}
	return nil
}
