package audio

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]string{
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".mp4":  "audio/mp4",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  MediaTypeWAV,
	".weba": MediaTypeWebM,
	".webm": MediaTypeWebM,
}

// FromFile loads an audio file as a payload.
func FromFile(path string) (Payload, error) {
	file, err := os.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	return FromReader(filepath.Base(path), "", file)
}

// FromReader reads a whole audio blob. An empty mediaType is resolved from the
// name's extension first and the content second.
func FromReader(name string, mediaType string, r io.Reader) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("read audio %q: %w", name, err)
	}

	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = mediaTypeByName(name)
	}
	if mediaType == "" {
		if len(data) == 0 {
			return Payload{}, fmt.Errorf("%w: %q has no content", ErrEmptyPayload, name)
		}
		mediaType = sniffMediaType(data)
	}

	if !isAudio(mediaType) {
		return Payload{}, fmt.Errorf("%w: %q is %s", ErrUnsupportedMediaType, name, mediaType)
	}
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: %q has no content", ErrEmptyPayload, name)
	}

	return Payload{data: data, mediaType: mediaType}, nil
}

func mediaTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if known, ok := audioExtensions[ext]; ok {
		return known
	}
	return mime.TypeByExtension(ext)
}

func sniffMediaType(data []byte) string {
	detected := http.DetectContentType(data)
	switch detected {
	case "application/ogg":
		return "audio/ogg"
	case "video/webm":
		return MediaTypeWebM
	default:
		return detected
	}
}

func isAudio(mediaType string) bool {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(base, "audio/")
}
