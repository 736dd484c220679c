// Package transcript assembles recognized segments into the transcript text
// handed to note generation.
package transcript

import (
	"fmt"
	"strings"
)

// Segment is one recognized span. Speaker is meaningful only when Diarized.
type Segment struct {
	Text     string
	Speaker  int
	Diarized bool
}

// Options controls transcript assembly.
type Options struct {
	// LabelSpeakers prefixes each speaker turn with "Speaker N:" when more
	// than one speaker was recognized.
	LabelSpeakers bool
}

// Assemble normalizes whitespace, drops empty segments, and joins the rest.
// Labeled output puts each speaker turn in its own paragraph.
func Assemble(segments []Segment, opts Options) string {
	kept := make([]Segment, 0, len(segments))
	speakers := map[int]struct{}{}
	for _, segment := range segments {
		text := strings.Join(strings.Fields(segment.Text), " ")
		if text == "" {
			continue
		}
		segment.Text = text
		kept = append(kept, segment)
		if segment.Diarized {
			speakers[segment.Speaker] = struct{}{}
		}
	}
	if len(kept) == 0 {
		return ""
	}

	if !opts.LabelSpeakers || len(speakers) < 2 {
		parts := make([]string, len(kept))
		for i, segment := range kept {
			parts[i] = segment.Text
		}
		return strings.Join(parts, " ")
	}

	var turns []string
	var current strings.Builder
	lastSpeaker := -1
	for _, segment := range kept {
		speaker := segment.Speaker
		if !segment.Diarized {
			speaker = lastSpeaker
		}
		if speaker != lastSpeaker || current.Len() == 0 {
			if current.Len() > 0 {
				turns = append(turns, current.String())
				current.Reset()
			}
			fmt.Fprintf(&current, "Speaker %d: %s", max(speaker, 0), segment.Text)
			lastSpeaker = speaker
			continue
		}
		current.WriteString(" ")
		current.WriteString(segment.Text)
	}
	if current.Len() > 0 {
		turns = append(turns, current.String())
	}
	return strings.Join(turns, "\n\n")
}

// Plain wraps bare strings as undiarized segments.
func Plain(texts ...string) []Segment {
	out := make([]Segment, len(texts))
	for i, text := range texts {
		out[i] = Segment{Text: text}
	}
	return out
}
