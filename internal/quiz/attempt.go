// Package quiz implements the single-attempt-per-question quiz state machine.
package quiz

import (
	"math"

	"github.com/orbitlearn/ollie/internal/domain"
)

// Phase is the state the attempt is currently in.
type Phase int

const (
	// PhaseAnswering waits for the learner to pick an option.
	PhaseAnswering Phase = iota
	// PhaseAnswered shows feedback for the recorded pick until Advance.
	PhaseAnswered
	// PhaseResults is the terminal state after the last question is advanced.
	PhaseResults
)

// Entry is one recorded answer in the attempt log, appended in question order.
type Entry struct {
	QuestionIndex int  `json:"question_index"`
	Selected      int  `json:"selected"`
	Correct       int  `json:"correct"`
	IsCorrect     bool `json:"is_correct"`
}

// KeyEntry is one row of the post-quiz answer key. When the learner chose
// incorrectly both the selected and the correct option are marked.
type KeyEntry struct {
	QuestionIndex int  `json:"question_index"`
	Correct       int  `json:"correct"`
	Selected      int  `json:"selected"`
	WasCorrect    bool `json:"was_correct"`
}

// Attempt tracks one learner's pass through a quiz. State is scoped to a
// single rendered message instance and never persisted.
type Attempt struct {
	quiz          domain.Quiz
	phase         Phase
	index         int
	score         int
	log           []Entry
	showAnswerKey bool
	completed     bool
	onComplete    func(score, total int)
}

// NewAttempt starts an attempt at the first question. onComplete fires
// once when the Results state is reached; it may be nil.
func NewAttempt(q domain.Quiz, onComplete func(score, total int)) *Attempt {
	return &Attempt{quiz: q, onComplete: onComplete}
}

// Phase returns the current state.
func (a *Attempt) Phase() Phase { return a.phase }

// Index returns the current question index.
func (a *Attempt) Index() int { return a.index }

// Score returns the running count of correct answers.
func (a *Attempt) Score() int { return a.score }

// Total returns the number of questions in the quiz.
func (a *Attempt) Total() int { return len(a.quiz.Questions) }

// Log returns the attempt log in question order.
func (a *Attempt) Log() []Entry { return a.log }

// Current returns the question under answer. ok is false once Results is
// reached or when the quiz has no questions.
func (a *Attempt) Current() (domain.Question, bool) {
	if a.phase == PhaseResults || a.index >= len(a.quiz.Questions) {
		return domain.Question{}, false
	}
	return a.quiz.Questions[a.index], true
}

// SelectAnswer records the learner's pick for the current question. Legal
// only in Answering with a valid option index; a second call before
// Advance is ignored, so the first recorded pick stands.
func (a *Attempt) SelectAnswer(option int) bool {
	if a.phase != PhaseAnswering {
		return false
	}
	question, ok := a.Current()
	if !ok || option < 0 || option >= len(question.Options) {
		return false
	}

	correct := option == question.CorrectAnswer
	a.log = append(a.log, Entry{
		QuestionIndex: a.index,
		Selected:      option,
		Correct:       question.CorrectAnswer,
		IsCorrect:     correct,
	})
	if correct {
		a.score++
	}
	a.phase = PhaseAnswered
	return true
}

// Advance moves from Answered to the next question, or to Results after
// the last one. Calling it in any other state is a no-op, which makes
// rapid double-clicks on "next" inert.
func (a *Attempt) Advance() {
	if a.phase != PhaseAnswered {
		return
	}
	if a.index+1 < len(a.quiz.Questions) {
		a.index++
		a.phase = PhaseAnswering
		return
	}

	a.phase = PhaseResults
	if !a.completed {
		a.completed = true
		if a.onComplete != nil {
			a.onComplete(a.score, a.Total())
		}
	}
}

// Retry clears score, log and position and returns to the first question.
// Legal from any state.
func (a *Attempt) Retry() {
	a.phase = PhaseAnswering
	a.index = 0
	a.score = 0
	a.log = nil
	a.showAnswerKey = false
	a.completed = false
}

// ToggleAnswerKey flips the answer-key display. Only meaningful in
// Results; it never affects scoring state.
func (a *Attempt) ToggleAnswerKey() {
	if a.phase != PhaseResults {
		return
	}
	a.showAnswerKey = !a.showAnswerKey
}

// ShowingAnswerKey reports whether the full answer key is expanded.
func (a *Attempt) ShowingAnswerKey() bool { return a.showAnswerKey }

// AnswerKey builds the per-question review rows from the attempt log.
func (a *Attempt) AnswerKey() []KeyEntry {
	key := make([]KeyEntry, 0, len(a.log))
	for _, entry := range a.log {
		key = append(key, KeyEntry{
			QuestionIndex: entry.QuestionIndex,
			Correct:       entry.Correct,
			Selected:      entry.Selected,
			WasCorrect:    entry.IsCorrect,
		})
	}
	return key
}

// Percentage returns the rounded score percentage. A quiz with no
// questions scores zero.
func (a *Attempt) Percentage() int {
	total := a.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(a.score) / float64(total)))
}

// BandMessage returns the tier feedback for the final percentage. Band
// boundaries are inclusive on the lower bound.
func (a *Attempt) BandMessage() string {
	return bandMessage(a.Percentage())
}

func bandMessage(pct int) string {
	switch {
	case pct >= 100:
		return "Perfect score! You really know this stuff! 🌟"
	case pct >= 80:
		return "Amazing work! You're almost there! 🎉"
	case pct >= 60:
		return "Great job! Keep practicing and you'll master it! 💪"
	case pct >= 40:
		return "Good try! Want to review the lesson and go again? 📖"
	default:
		return "Quizzes are tricky! Let's look at the lesson together and try again. 🤗"
	}
}
