package audio

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultSampleRate is the capture rate used when constraints leave it unset.
	DefaultSampleRate = 16000

	minSampleRate = 8000
	maxSampleRate = 48000

	// MediaTypeWebM is assumed for recordings whose source declares nothing.
	MediaTypeWebM = "audio/webm"
	MediaTypeWAV  = "audio/wav"
	mediaTypeL16  = "audio/l16"
)

// Payload is one immutable audio blob plus its declared media type.
type Payload struct {
	data      []byte
	mediaType string
}

// NewPayload copies data so later caller mutations cannot leak into the payload.
func NewPayload(data []byte, mediaType string) Payload {
	return Payload{
		data:      append([]byte(nil), data...),
		mediaType: strings.TrimSpace(mediaType),
	}
}

// Bytes returns a copy of the payload bytes.
func (p Payload) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

func (p Payload) Len() int {
	return len(p.data)
}

func (p Payload) MediaType() string {
	if p.mediaType == "" {
		return MediaTypeWebM
	}
	return p.mediaType
}

// PCMMediaType declares raw mono s16 PCM at the given rate.
func PCMMediaType(sampleRate int) string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", sampleRate)
}

// PCMSampleRate reports the rate of a raw PCM media type.
func PCMSampleRate(mediaType string) (int, bool) {
	base, params, err := mime.ParseMediaType(mediaType)
	if err != nil || base != mediaTypeL16 {
		return 0, false
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Constraints are advisory capture hints forwarded to the microphone source.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// DefaultConstraints mirrors the hints used for clinical dictation.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       DefaultSampleRate,
	}
}

// Rate resolves the effective sample rate.
func (c Constraints) Rate() int {
	if c.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return c.SampleRate
}

// Validate rejects sample rates the capture stack cannot satisfy.
func (c Constraints) Validate() error {
	rate := c.Rate()
	if rate < minSampleRate || rate > maxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside %d-%d", ErrUnsupportedConstraint, rate, minSampleRate, maxSampleRate)
	}
	return nil
}

// Accumulator collects captured chunks in arrival order for one recording.
type Accumulator struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// Push appends chunk and reports whether it was kept. Empty chunks are dropped.
func (a *Accumulator) Push(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = append(a.chunks, append([]byte(nil), chunk...))
	a.size += len(chunk)
	return true
}

func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// Len is the total byte count across kept chunks.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Assemble concatenates every chunk into a single payload.
func (a *Accumulator) Assemble(mediaType string) Payload {
	a.mu.Lock()
	defer a.mu.Unlock()

	data := make([]byte, 0, a.size)
	for _, chunk := range a.chunks {
		data = append(data, chunk...)
	}
	return Payload{data: data, mediaType: strings.TrimSpace(mediaType)}
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.size = 0
}
