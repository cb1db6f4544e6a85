// Package summary renders structured summaries for display. The renderer
// is stateless; every field of a summary is optional and absent sections
// are simply omitted.
package summary

import (
	"fmt"
	"strings"

	"github.com/orbitlearn/ollie/internal/domain"
)

// Section is one display block of a rendered summary.
type Section struct {
	Heading string   `json:"heading"`
	Body    string   `json:"body,omitempty"`
	Items   []string `json:"items,omitempty"`
}

// Sections assembles the display blocks present in the summary, in a
// fixed order: overview, key points, vocabulary, fun facts, takeaway.
func Sections(s domain.Summary) []Section {
	var sections []Section

	if s.Overview != "" {
		sections = append(sections, Section{Heading: "Overview", Body: s.Overview})
	}
	if len(s.KeyPoints) > 0 {
		sections = append(sections, Section{Heading: "Key Points", Items: s.KeyPoints})
	}
	if len(s.Vocabulary) > 0 {
		items := make([]string, 0, len(s.Vocabulary))
		for _, entry := range s.Vocabulary {
			items = append(items, fmt.Sprintf("%s — %s", entry.Term, entry.Definition))
		}
		sections = append(sections, Section{Heading: "New Words", Items: items})
	}
	if len(s.FunFacts) > 0 {
		sections = append(sections, Section{Heading: "Fun Facts", Items: s.FunFacts})
	}
	if s.Takeaway != "" {
		sections = append(sections, Section{Heading: "Big Takeaway", Body: s.Takeaway})
	}

	return sections
}

// Render produces a plain-text rendering of the summary, used for
// transcripts and logs. An entirely empty summary renders as "".
func Render(s domain.Summary) string {
	var b strings.Builder

	if s.Title != "" {
		b.WriteString(s.Title)
		b.WriteString("\n")
	}
	for _, section := range Sections(s) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(section.Heading)
		b.WriteString("\n")
		if section.Body != "" {
			b.WriteString(section.Body)
			b.WriteString("\n")
		}
		for _, item := range section.Items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}

	return b.String()
}
