package session

import (
	"context"

	"github.com/orbitlearn/ollie/internal/domain"
)

// ChatBackend is the live-mode chat collaborator. A session constructed in
// live mode delegates message ownership, sending, clearing and retry to
// it. Absence of a backend is tolerated and treated as "live features
// disabled", never as an error.
type ChatBackend interface {
	Messages() []domain.Message
	IsLoading() bool
	IsStreaming() bool
	SafetyFlags() []string
	Err() error
	SuggestedQuestions() []string
	WelcomeMessage() string

	SendMessage(ctx context.Context, text string) error
	ClearChat()
	RetryLastMessage()
	AddMessage(msg domain.Message)
	AddMessages(msgs []domain.Message)
}

// LessonSource supplies the active lesson a session is anchored to. A nil
// lesson (or one with no generation input) gates tool invocation off.
type LessonSource interface {
	CurrentLesson() *domain.Lesson
}

// GenerateRequest carries the shared payload of all four tool generators.
type GenerateRequest struct {
	Content     string
	Title       string
	Count       int
	KeyConcepts []string
	ChildID     string
	AgeGroup    domain.AgeGroup
}

// ToolGenerator produces structured learning content on demand. Every
// operation validates its own output; a quiz without questions is an error.
type ToolGenerator interface {
	GenerateFlashcards(ctx context.Context, req GenerateRequest) ([]domain.Flashcard, error)
	GenerateSummary(ctx context.Context, req GenerateRequest) (domain.Summary, error)
	GenerateQuiz(ctx context.Context, req GenerateRequest) (domain.Quiz, error)
	GenerateInfographic(ctx context.Context, req GenerateRequest) (domain.InfographicBody, error)
}

// ProfileResolver derives the generation context from the stored child
// profile. Resolution never fails; missing or malformed profiles yield
// the default {no child, OLDER}.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) domain.ProfileRef
}

// StaticLesson is a LessonSource over a fixed lesson, used for demo
// sessions and in tests.
type StaticLesson struct {
	Lesson *domain.Lesson
}

// CurrentLesson returns the fixed lesson.
func (s StaticLesson) CurrentLesson() *domain.Lesson { return s.Lesson }
