// Package deepgram transcribes recorded or uploaded audio through Deepgram's
// pre-recorded listen API.
package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/transcript"
)

const (
	DefaultModel   = "nova-3"
	DefaultTimeout = 2 * time.Minute
)

// ErrNoAudio is returned for zero-length payloads before any request is made.
var ErrNoAudio = fmt.Errorf("no audio data provided: %w", audio.ErrEmptyPayload)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("deepgram api key is required")

// Config selects the Deepgram endpoint and recognition model.
type Config struct {
	APIKey        string
	Host          string
	Model         string
	Language      string
	LabelSpeakers bool
	Timeout       time.Duration
}

// streamer is the slice of the SDK REST client used here.
type streamer interface {
	DoStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions, resBody interface{}) error
}

// Client transcribes one payload per call. It never retries.
type Client struct {
	api    streamer
	cfg    Config
	logger *slog.Logger
}

// New builds a client against the configured Deepgram host.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = withDefaults(cfg)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	options := &interfaces.ClientOptions{}
	if host := strings.TrimSpace(cfg.Host); host != "" {
		options.Host = host
	}
	return &Client{
		api:    listenClient.NewREST(cfg.APIKey, options),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// Transcribe returns the recognized text, or "" when nothing was recognized.
func (c *Client) Transcribe(ctx context.Context, payload audio.Payload) (string, error) {
	if payload.Len() == 0 {
		return "", ErrNoAudio
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	options := c.requestOptions(payload)
	started := time.Now()

	var res response
	if err := c.api.DoStream(ctx, bytes.NewReader(payload.Bytes()), options, &res); err != nil {
		c.logDebug("deepgram request failed", "error", err.Error(), "elapsed_ms", time.Since(started).Milliseconds())
		return "", fmt.Errorf("deepgram transcribe: %w", err)
	}

	text := transcript.Assemble(res.segments(), transcript.Options{LabelSpeakers: c.cfg.LabelSpeakers})
	c.logDebug("deepgram transcript received",
		"chars", len(text),
		"channels", len(res.Results.Channels),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}

func (c *Client) requestOptions(payload audio.Payload) *interfaces.PreRecordedTranscriptionOptions {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.cfg.Model,
		Language:    c.cfg.Language,
		SmartFormat: true,
		Punctuate:   true,
		Paragraphs:  true,
		Diarize:     true,
	}
	if rate, ok := audio.PCMSampleRate(payload.MediaType()); ok {
		options.Encoding = "linear16"
		options.SampleRate = rate
		options.Channels = 1
	}
	return options
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}
