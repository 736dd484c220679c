// Package note models SOAP notes, parses model output into them, and renders
// them as plain text for export.
package note

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Section is one SOAP section plus the transcript excerpts supporting it.
type Section struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// SOAP is a complete note. Degraded marks the placeholder produced when
// generation failed.
type SOAP struct {
	Subjective Section `json:"subjective"`
	Objective  Section `json:"objective"`
	Assessment Section `json:"assessment"`
	Plan       Section `json:"plan"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// SectionName is the wire key of a section.
type SectionName string

const (
	Subjective SectionName = "subjective"
	Objective  SectionName = "objective"
	Assessment SectionName = "assessment"
	Plan       SectionName = "plan"
)

// Sections lists section names in note order.
func Sections() []SectionName {
	return []SectionName{Subjective, Objective, Assessment, Plan}
}

// Title is the export heading for the section.
func (n SectionName) Title() string {
	if n == "" {
		return ""
	}
	return strings.ToUpper(string(n[:1])) + string(n[1:])
}

// Section returns the named section.
func (s SOAP) Section(name SectionName) Section {
	switch name {
	case Subjective:
		return s.Subjective
	case Objective:
		return s.Objective
	case Assessment:
		return s.Assessment
	case Plan:
		return s.Plan
	default:
		return Section{}
	}
}

func (s *SOAP) set(name SectionName, section Section) {
	switch name {
	case Subjective:
		s.Subjective = section
	case Objective:
		s.Objective = section
	case Assessment:
		s.Assessment = section
	case Plan:
		s.Plan = section
	}
}

// Fallback is the placeholder note returned when generation fails.
func Fallback() SOAP {
	out := SOAP{Degraded: true}
	for _, name := range Sections() {
		out.set(name, Section{
			Text:    fmt.Sprintf("Error generating %s section. Please try again.", name),
			Sources: []string{},
		})
	}
	return out
}

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// StripFences returns the first fenced block's body, or the trimmed input
// when there is none.
func StripFences(text string) string {
	if match := fencePattern.FindStringSubmatch(text); len(match) > 1 && match[1] != "" {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

// ErrIncomplete reports model output missing at least one section.
var ErrIncomplete = errors.New("soap note is missing sections")

type wireNote struct {
	Subjective *wireSection `json:"subjective"`
	Objective  *wireSection `json:"objective"`
	Assessment *wireSection `json:"assessment"`
	Plan       *wireSection `json:"plan"`
}

type wireSection struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

func (w *wireSection) section() Section {
	sources := w.Sources
	if sources == nil {
		sources = []string{}
	}
	return Section{Text: w.Text, Sources: sources}
}

// Parse decodes model output into a note. All four sections must be present.
func Parse(raw string) (SOAP, error) {
	body := StripFences(raw)

	var wire wireNote
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return SOAP{}, fmt.Errorf("decode soap note json: %w", err)
	}

	var missing []string
	byName := map[SectionName]*wireSection{
		Subjective: wire.Subjective,
		Objective:  wire.Objective,
		Assessment: wire.Assessment,
		Plan:       wire.Plan,
	}
	var out SOAP
	for _, name := range Sections() {
		section := byName[name]
		if section == nil {
			missing = append(missing, string(name))
			continue
		}
		out.set(name, section.section())
	}
	if len(missing) > 0 {
		return SOAP{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return out, nil
}
