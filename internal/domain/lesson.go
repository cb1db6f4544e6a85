package domain

import "strings"

// Chapter is one section of lesson material.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Lesson is the active learning material a chat session is anchored to.
// Tool generation uses the first available non-empty textual field.
type Lesson struct {
	Title       string    `json:"title,omitempty"`
	RawText     string    `json:"raw_text,omitempty"`
	ContentText string    `json:"content_text,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	KeyConcepts []string  `json:"key_concepts,omitempty"`
	Chapters    []Chapter `json:"chapters,omitempty"`
}

// GenerationInput returns the text to feed tool generation: the first
// non-empty of RawText, ContentText, Summary, then concatenated chapters.
// Empty result means the lesson cannot drive generation.
func (l *Lesson) GenerationInput() string {
	if l == nil {
		return ""
	}
	if s := strings.TrimSpace(l.RawText); s != "" {
		return s
	}
	if s := strings.TrimSpace(l.ContentText); s != "" {
		return s
	}
	if s := strings.TrimSpace(l.Summary); s != "" {
		return s
	}
	var b strings.Builder
	for _, ch := range l.Chapters {
		if strings.TrimSpace(ch.Content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if ch.Title != "" {
			b.WriteString(ch.Title)
			b.WriteString("\n")
		}
		b.WriteString(ch.Content)
	}
	return b.String()
}
