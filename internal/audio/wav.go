package audio

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WriteWAV writes little-endian mono s16 PCM with a minimal WAV header.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int) error {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// Containerize wraps raw PCM payloads in a WAV container. Anything else is
// returned unchanged.
func Containerize(p Payload) Payload {
	rate, ok := PCMSampleRate(p.MediaType())
	if !ok {
		return p
	}

	var buf bytes.Buffer
	buf.Grow(44 + len(p.data))
	_ = WriteWAV(&buf, p.data, rate)
	return Payload{data: buf.Bytes(), mediaType: MediaTypeWAV}
}
