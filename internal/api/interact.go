package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/flashcards"
	"github.com/orbitlearn/ollie/internal/quiz"
	"github.com/orbitlearn/ollie/internal/session"
)

type quizAnswerRequest struct {
	Option int `json:"option"`
}

type quizStateResponse struct {
	MessageID        string           `json:"message_id"`
	Phase            string           `json:"phase"`
	Index            int              `json:"index"`
	Total            int              `json:"total"`
	Score            int              `json:"score"`
	Question         *domain.Question `json:"question,omitempty"`
	Percentage       int              `json:"percentage"`
	Band             string           `json:"band,omitempty"`
	ShowingAnswerKey bool             `json:"showing_answer_key"`
	AnswerKey        []quiz.KeyEntry  `json:"answer_key,omitempty"`
}

type flashcardStateResponse struct {
	MessageID    string  `json:"message_id"`
	Index        int     `json:"index"`
	Total        int     `json:"total"`
	Flipped      bool    `json:"flipped"`
	Front        string  `json:"front,omitempty"`
	Back         string  `json:"back,omitempty"`
	Hint         string  `json:"hint,omitempty"`
	LearnedCount int     `json:"learned_count"`
	Progress     float64 `json:"progress"`
	Empty        bool    `json:"empty,omitempty"`
}

// HandleQuizAction handles POST /api/quiz/{messageID}/{action} and GET
// /api/quiz/{messageID}. Actions mutate the attempt bound to one quiz
// message; the response is always the attempt state after the action.
func (h *Handler) HandleQuizAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	messageID := chi.URLParam(r, "messageID")
	action := chi.URLParam(r, "action")

	var req quizAnswerRequest
	switch action {
	case "answer":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	case "", "advance", "retry", "key":
	default:
		Error(w, http.StatusNotFound, "unknown quiz action")
		return
	}

	var state quizStateResponse
	err := s.WithQuiz(messageID, func(a *quiz.Attempt) {
		switch action {
		case "answer":
			a.SelectAnswer(req.Option)
		case "advance":
			a.Advance()
		case "retry":
			a.Retry()
		case "key":
			a.ToggleAnswerKey()
		}
		state = quizState(messageID, a)
	})
	if err != nil {
		writeInteractError(w, err)
		return
	}

	if action != "" {
		h.persistTranscript(r, s)
	}
	JSON(w, http.StatusOK, state)
}

var flashcardActions = map[string]func(*flashcards.Review){
	"flip":       (*flashcards.Review).Flip,
	"next":       (*flashcards.Review).Next,
	"prev":       (*flashcards.Review).Prev,
	"learned":    (*flashcards.Review).MarkLearned,
	"notlearned": (*flashcards.Review).MarkNotLearned,
	"restart":    (*flashcards.Review).Restart,
}

// HandleFlashcardAction handles POST /api/flashcards/{messageID}/{action}
// and GET /api/flashcards/{messageID}.
func (h *Handler) HandleFlashcardAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	messageID := chi.URLParam(r, "messageID")
	action := chi.URLParam(r, "action")

	var apply func(*flashcards.Review)
	if action != "" {
		apply = flashcardActions[action]
		if apply == nil {
			Error(w, http.StatusNotFound, "unknown flashcard action")
			return
		}
	}

	var state flashcardStateResponse
	err := s.WithFlashcards(messageID, func(rev *flashcards.Review) {
		if apply != nil {
			apply(rev)
		}
		state = flashcardState(messageID, rev)
	})
	if err != nil {
		writeInteractError(w, err)
		return
	}

	if action != "" {
		h.persistTranscript(r, s)
	}
	JSON(w, http.StatusOK, state)
}

func quizState(messageID string, a *quiz.Attempt) quizStateResponse {
	state := quizStateResponse{
		MessageID:        messageID,
		Index:            a.Index(),
		Total:            a.Total(),
		Score:            a.Score(),
		Percentage:       a.Percentage(),
		ShowingAnswerKey: a.ShowingAnswerKey(),
	}
	switch a.Phase() {
	case quiz.PhaseAnswering:
		state.Phase = "answering"
	case quiz.PhaseAnswered:
		state.Phase = "answered"
	case quiz.PhaseResults:
		state.Phase = "results"
		state.Band = a.BandMessage()
	}
	if q, ok := a.Current(); ok {
		state.Question = &q
	}
	if a.ShowingAnswerKey() {
		state.AnswerKey = a.AnswerKey()
	}
	return state
}

func flashcardState(messageID string, rev *flashcards.Review) flashcardStateResponse {
	state := flashcardStateResponse{
		MessageID:    messageID,
		Index:        rev.Index(),
		Total:        rev.Len(),
		Flipped:      rev.IsFlipped(),
		LearnedCount: rev.LearnedCount(),
		Progress:     rev.Progress(),
		Empty:        rev.Empty(),
	}
	if card, ok := rev.Current(); ok {
		state.Front = card.Front
		state.Hint = card.Hint
		if rev.IsFlipped() {
			state.Back = card.Back
		}
	}
	return state
}

// writeInteractError maps engine lookup failures onto HTTP statuses.
func writeInteractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSuchMessage):
		Error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, session.ErrNotInteractive):
		Error(w, http.StatusConflict, "message has no interactive payload")
	default:
		Error(w, http.StatusInternalServerError, "interaction failed")
	}
}
