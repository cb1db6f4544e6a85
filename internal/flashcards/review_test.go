package flashcards

import (
	"testing"

	"github.com/orbitlearn/ollie/internal/domain"
)

func testDeck(n int) []domain.Flashcard {
	deck := make([]domain.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		deck = append(deck, domain.Flashcard{
			ID:         string(rune('a' + i)),
			Front:      "front",
			Back:       "back",
			Difficulty: domain.DifficultyEasy,
		})
	}
	return deck
}

func TestReviewFlipToggles(t *testing.T) {
	t.Parallel()

	r := NewReview(testDeck(2), nil)
	if r.IsFlipped() {
		t.Fatal("Expected new review to start unflipped")
	}
	r.Flip()
	if !r.IsFlipped() {
		t.Fatal("Expected flipped after Flip")
	}
	r.Flip()
	if r.IsFlipped() {
		t.Fatal("Expected unflipped after second Flip")
	}
}

func TestReviewNavigationWrapsAndUnflips(t *testing.T) {
	t.Parallel()

	r := NewReview(testDeck(3), nil)

	r.Flip()
	r.Next()
	if r.IsFlipped() {
		t.Error("Expected Next to unflip before advancing")
	}
	if r.Index() != 1 {
		t.Errorf("Expected index 1, got %d", r.Index())
	}

	r.Next()
	r.Next()
	if r.Index() != 0 {
		t.Errorf("Expected wraparound to index 0, got %d", r.Index())
	}

	r.Prev()
	if r.Index() != 2 {
		t.Errorf("Expected Prev to wrap to last card, got %d", r.Index())
	}
}

func TestReviewMarkLearnedAdvancesAndCompletes(t *testing.T) {
	t.Parallel()

	completions := 0
	r := NewReview(testDeck(3), func() { completions++ })

	r.MarkLearned() // card a, advances
	if r.Index() != 1 {
		t.Fatalf("Expected auto-advance to index 1, got %d", r.Index())
	}
	if got := r.Progress(); got < 0.33 || got > 0.34 {
		t.Fatalf("Expected progress 1/3, got %v", got)
	}

	r.MarkLearned() // card b
	r.MarkLearned() // card c, completes the deck

	if r.Progress() != 1.0 {
		t.Fatalf("Expected progress 1.0, got %v", r.Progress())
	}
	if completions != 1 {
		t.Fatalf("Expected completion callback exactly once, got %d", completions)
	}

	// Re-marking the last card must not fire completion again.
	r.MarkLearned()
	if completions != 1 {
		t.Fatalf("Expected completion still once after re-mark, got %d", completions)
	}
}

func TestReviewMarkNotLearnedKeepsProgress(t *testing.T) {
	t.Parallel()

	r := NewReview(testDeck(2), nil)
	r.MarkNotLearned()
	if r.LearnedCount() != 0 {
		t.Errorf("Expected learned set untouched, got %d", r.LearnedCount())
	}
	if r.Index() != 1 {
		t.Errorf("Expected advance to index 1, got %d", r.Index())
	}
}

func TestReviewRestartArmsNewPass(t *testing.T) {
	t.Parallel()

	completions := 0
	r := NewReview(testDeck(2), func() { completions++ })
	r.MarkLearned()
	r.MarkLearned()
	if completions != 1 {
		t.Fatalf("Expected one completion, got %d", completions)
	}

	r.Restart()
	if r.Index() != 0 || r.IsFlipped() || r.LearnedCount() != 0 {
		t.Fatal("Expected Restart to reset index, flip state and learned set")
	}

	r.MarkLearned()
	r.MarkLearned()
	if completions != 2 {
		t.Fatalf("Expected completion once per full pass, got %d", completions)
	}
}

func TestReviewEmptyDeck(t *testing.T) {
	t.Parallel()

	r := NewReview(nil, func() { t.Fatal("completion must not fire for empty deck") })
	if !r.Empty() {
		t.Fatal("Expected empty deck")
	}
	if _, ok := r.Current(); ok {
		t.Fatal("Expected no current card")
	}

	// All operations are safe no-ops.
	r.Flip()
	r.Next()
	r.Prev()
	r.MarkLearned()
	r.MarkNotLearned()

	if r.Progress() != 0 {
		t.Errorf("Expected zero progress for empty deck, got %v", r.Progress())
	}
}
