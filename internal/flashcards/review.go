// Package flashcards implements the flip/navigate/mark-learned review loop.
package flashcards

import (
	"github.com/orbitlearn/ollie/internal/domain"
)

// Review is the mutable state of one review pass over an ordered deck.
// The deck itself is immutable; only the index, flip state and learned
// set change. State lives for one rendered message instance.
type Review struct {
	deck       []domain.Flashcard
	index      int
	flipped    bool
	learned    map[string]bool
	completed  bool
	onComplete func()
}

// NewReview starts a review over the given deck. onComplete fires exactly
// once per full pass, when every card has been marked learned; it may be nil.
func NewReview(deck []domain.Flashcard, onComplete func()) *Review {
	return &Review{
		deck:       deck,
		learned:    make(map[string]bool),
		onComplete: onComplete,
	}
}

// Empty reports whether there are no cards to review. Callers render an
// explicit empty state instead of a zero-size progress bar.
func (r *Review) Empty() bool { return len(r.deck) == 0 }

// Current returns the card under review. ok is false for an empty deck.
func (r *Review) Current() (domain.Flashcard, bool) {
	if r.Empty() {
		return domain.Flashcard{}, false
	}
	return r.deck[r.index], true
}

// Index returns the zero-based position of the current card.
func (r *Review) Index() int { return r.index }

// IsFlipped reports whether the back of the current card is showing.
func (r *Review) IsFlipped() bool { return r.flipped }

// Flip toggles the current card between front and back. No-op on an
// empty deck.
func (r *Review) Flip() {
	if r.Empty() {
		return
	}
	r.flipped = !r.flipped
}

// Next unflips and advances to the following card, wrapping at the end.
// Unflipping happens before the index moves so the next card never shows
// its back mid-transition.
func (r *Review) Next() {
	if r.Empty() {
		return
	}
	r.flipped = false
	r.index = (r.index + 1) % len(r.deck)
}

// Prev unflips and steps back one card, wrapping at the start.
func (r *Review) Prev() {
	if r.Empty() {
		return
	}
	r.flipped = false
	r.index = (r.index - 1 + len(r.deck)) % len(r.deck)
}

// MarkLearned records the current card as learned. Completing the deck
// signals onComplete once; otherwise the review auto-advances.
func (r *Review) MarkLearned() {
	card, ok := r.Current()
	if !ok {
		return
	}
	r.learned[card.ID] = true

	if len(r.learned) == len(r.deck) {
		if !r.completed {
			r.completed = true
			if r.onComplete != nil {
				r.onComplete()
			}
		}
		return
	}
	r.Next()
}

// MarkNotLearned auto-advances without touching the learned set.
func (r *Review) MarkNotLearned() {
	r.Next()
}

// Len returns the deck size.
func (r *Review) Len() int { return len(r.deck) }

// LearnedCount returns how many distinct cards are marked learned.
func (r *Review) LearnedCount() int { return len(r.learned) }

// IsLearned reports whether a specific card has been marked learned.
func (r *Review) IsLearned(cardID string) bool { return r.learned[cardID] }

// Progress returns the learned fraction, always within [0,1]. An empty
// deck reports zero progress rather than dividing by zero.
func (r *Review) Progress() float64 {
	if r.Empty() {
		return 0
	}
	return float64(len(r.learned)) / float64(len(r.deck))
}

// Restart clears the learned set, returns to the first card unflipped,
// and arms the completion signal for a new pass.
func (r *Review) Restart() {
	r.learned = make(map[string]bool)
	r.index = 0
	r.flipped = false
	r.completed = false
}
