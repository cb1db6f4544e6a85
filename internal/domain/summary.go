package domain

// VocabularyEntry pairs a term with its kid-friendly definition.
type VocabularyEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Summary is a structured lesson summary. Every field is independently
// optional; consumers must skip absent sections.
type Summary struct {
	Title      string            `json:"title,omitempty"`
	Overview   string            `json:"overview,omitempty"`
	KeyPoints  []string          `json:"key_points,omitempty"`
	Vocabulary []VocabularyEntry `json:"vocabulary,omitempty"`
	FunFacts   []string          `json:"fun_facts,omitempty"`
	Takeaway   string            `json:"takeaway,omitempty"`
}

// IsEmpty reports whether the summary carries no content at all.
func (s Summary) IsEmpty() bool {
	return s.Title == "" && s.Overview == "" && len(s.KeyPoints) == 0 &&
		len(s.Vocabulary) == 0 && len(s.FunFacts) == 0 && s.Takeaway == ""
}
