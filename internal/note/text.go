package note

import (
	"fmt"
	"strings"
)

// Text renders the note as "Title:\ntext" blocks separated by blank lines.
// Sources are not part of the export.
func Text(s SOAP) string {
	blocks := make([]string, 0, len(Sections()))
	for _, name := range Sections() {
		blocks = append(blocks, name.Title()+":\n"+s.Section(name).Text)
	}
	return strings.Join(blocks, "\n\n")
}

// ParseText reverses Text by locating each heading in order. A section body
// that itself contains the next heading line is split at its first occurrence.
func ParseText(text string) (SOAP, error) {
	names := Sections()
	var out SOAP

	rest := text
	for i, name := range names {
		header := name.Title() + ":\n"
		if !strings.HasPrefix(rest, header) {
			return SOAP{}, fmt.Errorf("expected %q heading", name.Title())
		}
		rest = rest[len(header):]

		if i == len(names)-1 {
			out.set(name, Section{Text: rest, Sources: []string{}})
			break
		}

		next := "\n\n" + names[i+1].Title() + ":\n"
		idx := strings.Index(rest, next)
		if idx < 0 {
			return SOAP{}, fmt.Errorf("expected %q heading", names[i+1].Title())
		}
		out.set(name, Section{Text: rest[:idx], Sources: []string{}})
		rest = rest[idx+2:]
	}
	return out, nil
}
