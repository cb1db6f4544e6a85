package domain

import "fmt"

// Question is a single multiple-choice quiz question.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Encouragement string   `json:"encouragement,omitempty"`
}

// Quiz is an ordered set of questions with an optional title.
type Quiz struct {
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// Validate checks the structural invariants of a generated quiz: at least
// one question, non-empty options, and a correct-answer index that points
// into the options.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %q has no questions", q.Title)
	}
	for i, question := range q.Questions {
		if len(question.Options) == 0 {
			return fmt.Errorf("question %d has no options", i)
		}
		if question.CorrectAnswer < 0 || question.CorrectAnswer >= len(question.Options) {
			return fmt.Errorf("question %d correct answer %d out of range [0,%d)", i, question.CorrectAnswer, len(question.Options))
		}
	}
	return nil
}
