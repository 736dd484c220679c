//go:build integration

package audio

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Needs a running PulseAudio or PipeWire-pulse server with one input.
func TestCaptureDefaultSourceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	devices, err := ListDevices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)

	selection, err := SelectDevice(ctx, "default", "")
	require.NoError(t, err)
	require.NotEmpty(t, selection.Device.ID)

	capture, err := StartCapture(ctx, selection.Device, DefaultSampleRate)
	require.NoError(t, err)

	var acc Accumulator
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for frame := range capture.Frames() {
			acc.Push(frame)
		}
	}()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, capture.Stop())
	<-collected

	require.Positive(t, acc.Count())
	require.LessOrEqual(t, int64(acc.Len()), capture.BytesCaptured())

	var wav bytes.Buffer
	payload := acc.Assemble(PCMMediaType(DefaultSampleRate))
	require.NoError(t, WriteWAV(&wav, payload.Bytes(), DefaultSampleRate))
	require.Equal(t, "RIFF", wav.String()[:4])
}
