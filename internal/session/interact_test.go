package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/flashcards"
	"github.com/orbitlearn/ollie/internal/quiz"
)

// toolMessageID invokes a tool and returns the ID of the generated
// result message.
func toolMessageID(t *testing.T, s *Session, tool Tool) string {
	t.Helper()
	s.InvokeTool(context.Background(), tool)
	msgs := s.Messages()
	if len(msgs) == 0 {
		t.Fatal("tool produced no messages")
	}
	return msgs[len(msgs)-1].ID
}

func TestWithQuizDrivesAttemptToResults(t *testing.T) {
	t.Parallel()

	s := demoSession(t, nil, nil)
	msgID := toolMessageID(t, s, ToolQuiz)
	before := len(s.Messages())

	err := s.WithQuiz(msgID, func(a *quiz.Attempt) {
		if !a.SelectAnswer(0) {
			t.Error("first answer should be accepted")
		}
		if a.SelectAnswer(1) {
			t.Error("second answer before advance should be ignored")
		}
		a.Advance()
		if a.Phase() != quiz.PhaseResults {
			t.Errorf("phase = %v, want results", a.Phase())
		}
		if a.Percentage() != 100 {
			t.Errorf("percentage = %d, want 100", a.Percentage())
		}
	})
	if err != nil {
		t.Fatalf("WithQuiz: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != before+1 {
		t.Fatalf("len(messages) = %d, want %d (completion announcement)", len(msgs), before+1)
	}
	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleAssistant {
		t.Errorf("announcement role = %q", last.Role)
	}
	if !strings.Contains(last.Text(), "1 out of 1") {
		t.Errorf("announcement text = %q, want score summary", last.Text())
	}
	if !strings.Contains(last.Text(), "Perfect score") {
		t.Errorf("announcement text = %q, want perfect-score band", last.Text())
	}
}

func TestWithQuizStatePersistsAcrossCalls(t *testing.T) {
	t.Parallel()

	s := demoSession(t, nil, nil)
	msgID := toolMessageID(t, s, ToolQuiz)

	if err := s.WithQuiz(msgID, func(a *quiz.Attempt) { a.SelectAnswer(1) }); err != nil {
		t.Fatalf("WithQuiz: %v", err)
	}
	err := s.WithQuiz(msgID, func(a *quiz.Attempt) {
		if a.Phase() != quiz.PhaseAnswered {
			t.Errorf("phase = %v, want answered (state must survive between calls)", a.Phase())
		}
		if a.Score() != 0 {
			t.Errorf("score = %d, want 0 for wrong pick", a.Score())
		}
	})
	if err != nil {
		t.Fatalf("WithQuiz second call: %v", err)
	}
}

func TestWithQuizRejectsNonQuizMessages(t *testing.T) {
	t.Parallel()

	s := demoSession(t, nil, nil)
	welcomeID := s.Messages()[0].ID

	err := s.WithQuiz(welcomeID, func(*quiz.Attempt) { t.Error("callback must not run") })
	if !errors.Is(err, ErrNotInteractive) {
		t.Errorf("err = %v, want ErrNotInteractive", err)
	}

	err = s.WithQuiz("missing-id", func(*quiz.Attempt) { t.Error("callback must not run") })
	if !errors.Is(err, ErrNoSuchMessage) {
		t.Errorf("err = %v, want ErrNoSuchMessage", err)
	}
}

func TestWithFlashcardsLearnsDeck(t *testing.T) {
	t.Parallel()

	s := demoSession(t, nil, nil)
	msgID := toolMessageID(t, s, ToolFlashcards)
	before := len(s.Messages())

	err := s.WithFlashcards(msgID, func(r *flashcards.Review) {
		r.Flip()
		if !r.IsFlipped() {
			t.Error("card should be flipped")
		}
		r.MarkLearned()
		if r.Progress() != 1 {
			t.Errorf("progress = %v, want 1", r.Progress())
		}
	})
	if err != nil {
		t.Fatalf("WithFlashcards: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != before+1 {
		t.Fatalf("len(messages) = %d, want %d (completion announcement)", len(msgs), before+1)
	}
	if !strings.Contains(msgs[len(msgs)-1].Text(), "learned every card") {
		t.Errorf("announcement text = %q", msgs[len(msgs)-1].Text())
	}
}

func TestClearChatDropsInteractionState(t *testing.T) {
	t.Parallel()

	s := demoSession(t, nil, nil)
	msgID := toolMessageID(t, s, ToolQuiz)
	if err := s.WithQuiz(msgID, func(a *quiz.Attempt) { a.SelectAnswer(0) }); err != nil {
		t.Fatalf("WithQuiz: %v", err)
	}

	s.ClearChat()

	err := s.WithQuiz(msgID, func(*quiz.Attempt) { t.Error("callback must not run") })
	if !errors.Is(err, ErrNoSuchMessage) {
		t.Errorf("err after clear = %v, want ErrNoSuchMessage", err)
	}
}

func TestHistorySeedsDemoConversation(t *testing.T) {
	t.Parallel()

	history := []domain.Message{
		{ID: "m1", Role: domain.RoleAssistant, Body: domain.TextBody{Text: "Welcome back!"}},
		{ID: "m2", Role: domain.RoleUser, Body: domain.TextBody{Text: "tell me about comets"}},
	}
	s := New(Config{
		Mode:      ModeDemo,
		UserID:    "anon-1",
		SessionID: "tab-1",
		History:   history,
	})

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2 restored", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("restored IDs = %q, %q", msgs[0].ID, msgs[1].ID)
	}
	for _, m := range msgs {
		if strings.Contains(m.Text(), "learning buddy") {
			t.Error("restored session must not re-seed the welcome message")
		}
	}
}
