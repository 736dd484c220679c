package deepgram

import (
	"strings"

	"github.com/rbright/medvoice/internal/transcript"
)

// response is the subset of a pre-recorded result this client reads.
type response struct {
	Results struct {
		Channels []channel `json:"channels"`
	} `json:"results"`
}

type channel struct {
	Alternatives []alternative `json:"alternatives"`
}

type alternative struct {
	Transcript string      `json:"transcript"`
	Paragraphs *paragraphs `json:"paragraphs"`
}

type paragraphs struct {
	Paragraphs []paragraph `json:"paragraphs"`
}

type paragraph struct {
	Speaker   *int       `json:"speaker"`
	Sentences []sentence `json:"sentences"`
}

type sentence struct {
	Text string `json:"text"`
}

// segments flattens the best alternative of every channel. Paragraphs carry
// speaker turns; the flat transcript is used when they are absent.
func (r response) segments() []transcript.Segment {
	var out []transcript.Segment
	for _, ch := range r.Results.Channels {
		if len(ch.Alternatives) == 0 {
			continue
		}
		best := ch.Alternatives[0]

		if best.Paragraphs == nil || len(best.Paragraphs.Paragraphs) == 0 {
			out = append(out, transcript.Segment{Text: best.Transcript})
			continue
		}
		for _, p := range best.Paragraphs.Paragraphs {
			texts := make([]string, 0, len(p.Sentences))
			for _, s := range p.Sentences {
				texts = append(texts, s.Text)
			}
			segment := transcript.Segment{Text: strings.Join(texts, " ")}
			if p.Speaker != nil {
				segment.Speaker = *p.Speaker
				segment.Diarized = true
			}
			out = append(out, segment)
		}
	}
	return out
}
