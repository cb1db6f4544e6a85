package domain

// Difficulty rates how hard a flashcard is for the learner.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Flashcard is a single front/back review card. Cards are immutable once
// generated; learned-state is tracked separately per review session.
type Flashcard struct {
	ID         string     `json:"id"`
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	Difficulty Difficulty `json:"difficulty"`
	Hint       string     `json:"hint,omitempty"`
}
