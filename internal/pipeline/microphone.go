// Package pipeline adapts Pulse capture into the chunked stream the session
// controller records from.
package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/medvoice/internal/audio"
	"github.com/rbright/medvoice/internal/config"
	"github.com/rbright/medvoice/internal/session"
)

// DefaultChunkInterval is how much audio each delivered chunk holds.
const DefaultChunkInterval = 10 * time.Second

// frameSource is the part of audio.Capture the microphone consumes.
type frameSource interface {
	Frames() <-chan []byte
	BytesCaptured() int64
	Stop() error
}

// Microphone opens Pulse record streams on demand.
type Microphone struct {
	input    string
	fallback string
	interval time.Duration
	dumpPCM  bool
	logger   *slog.Logger

	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	startCapture func(ctx context.Context, device audio.Device, sampleRate int) (frameSource, error)
}

// NewMicrophone builds a capture source from audio and debug config.
func NewMicrophone(cfg config.Config, logger *slog.Logger) *Microphone {
	interval := time.Duration(cfg.Audio.ChunkSeconds) * time.Second
	if interval <= 0 {
		interval = DefaultChunkInterval
	}
	return &Microphone{
		input:        cfg.Audio.Input,
		fallback:     cfg.Audio.Fallback,
		interval:     interval,
		dumpPCM:      cfg.Debug.EnableAudioDump,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device, sampleRate int) (frameSource, error) {
			return audio.StartCapture(ctx, device, sampleRate)
		},
	}
}

// Open selects a source and starts streaming. Echo cancellation and noise
// suppression are left to the Pulse source's own processing.
func (m *Microphone) Open(ctx context.Context, constraints audio.Constraints) (session.CaptureHandle, error) {
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	rate := constraints.Rate()

	selection, err := m.selectDevice(ctx, m.input, m.fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		m.logWarn(selection.Warning)
	}

	// The stream outlives Open, so it must not inherit a request-scoped ctx.
	capture, err := m.startCapture(context.WithoutCancel(ctx), selection.Device, rate)
	if err != nil {
		return nil, err
	}

	h := &handle{
		source:    capture,
		device:    selection.Device,
		mediaType: audio.PCMMediaType(rate),
		chunkSize: chunkBytes(rate, m.interval),
		chunks:    make(chan []byte, 4),
		done:      make(chan struct{}),
		logger:    m.logger,
	}
	if m.dumpPCM {
		h.dump = &bytes.Buffer{}
		h.rate = rate
	}
	go h.regroup()

	m.logInfo("microphone opened",
		"device", selection.Device.Label(),
		"sample_rate", rate,
		"chunk_bytes", h.chunkSize,
		"echo_cancellation", constraints.EchoCancellation,
		"noise_suppression", constraints.NoiseSuppression,
	)
	return h, nil
}

// chunkBytes is the size of interval worth of mono s16 audio.
func chunkBytes(sampleRate int, interval time.Duration) int {
	size := int(int64(sampleRate) * 2 * int64(interval) / int64(time.Second))
	if size < 2 {
		return 2
	}
	return size - size%2
}

func (m *Microphone) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *Microphone) logInfo(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

// handle regroups 20ms frames into interval-sized chunks.
type handle struct {
	source    frameSource
	device    audio.Device
	mediaType string
	chunkSize int

	chunks chan []byte
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
	dump   *bytes.Buffer
	rate   int
}

func (h *handle) Chunks() <-chan []byte { return h.chunks }

func (h *handle) MediaType() string { return h.mediaType }

// Close stops the stream and waits until the trailing partial chunk is
// delivered and Chunks is closed.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.source.Stop()
		<-h.done

		if h.logger != nil {
			h.logger.Info("microphone closed",
				"device", h.device.Label(),
				"bytes_captured", h.source.BytesCaptured(),
			)
		}
		h.writeDump()
	})
	return h.closeErr
}

func (h *handle) regroup() {
	defer close(h.done)
	defer close(h.chunks)

	pending := make([]byte, 0, h.chunkSize)
	for frame := range h.source.Frames() {
		if h.dump != nil {
			h.dump.Write(frame)
		}
		pending = append(pending, frame...)
		for len(pending) >= h.chunkSize {
			chunk := make([]byte, h.chunkSize)
			copy(chunk, pending)
			pending = append(pending[:0], pending[h.chunkSize:]...)
			h.chunks <- chunk
		}
	}
	if len(pending) > 0 {
		h.chunks <- pending
	}
}

func (h *handle) writeDump() {
	if h.dump == nil || h.dump.Len() == 0 {
		return
	}
	path, err := writeDebugWAV(h.dump.Bytes(), h.rate)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("unable to write debug audio dump", "error", err.Error())
		}
		return
	}
	if h.logger != nil {
		h.logger.Debug("debug audio dump written", "path", path)
	}
}

var _ session.CaptureHandle = (*handle)(nil)
