// Package domain contains core domain types for the Ollie learning companion.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType discriminates the payload carried by a message.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageFlashcards  MessageType = "flashcards"
	MessageSummary     MessageType = "summary"
	MessageQuiz        MessageType = "quiz"
	MessageInfographic MessageType = "infographic"
	MessageImage       MessageType = "image"
)

// Body is the typed payload of a message. Exactly one concrete body type
// exists per MessageType; dispatch on Type() is exhaustive.
type Body interface {
	Type() MessageType
}

// TextBody carries plain conversational text.
type TextBody struct {
	Text string
}

func (TextBody) Type() MessageType { return MessageText }

// FlashcardsBody carries a generated flashcard deck.
type FlashcardsBody struct {
	Cards []Flashcard
}

func (FlashcardsBody) Type() MessageType { return MessageFlashcards }

// SummaryBody carries a generated structured summary.
type SummaryBody struct {
	Summary Summary
}

func (SummaryBody) Type() MessageType { return MessageSummary }

// QuizBody carries a generated quiz.
type QuizBody struct {
	Quiz Quiz
}

func (QuizBody) Type() MessageType { return MessageQuiz }

// InfographicBody carries a generated infographic image.
type InfographicBody struct {
	Description string
	ImageData   string // base64-encoded
	MimeType    string
}

func (InfographicBody) Type() MessageType { return MessageInfographic }

// ImageBody carries inline image media.
type ImageBody struct {
	ImageData string // base64-encoded
	MimeType  string
}

func (ImageBody) Type() MessageType { return MessageImage }

// Message is a single conversation turn. The Body field carries the
// type-specific payload; a nil Body is treated as empty text.
type Message struct {
	ID             string
	Role           Role
	Timestamp      time.Time
	IsStreaming    bool
	IsError        bool
	IsLimitMessage bool
	SafetyFlags    []string
	Body           Body
}

// Type returns the message's payload discriminant.
func (m Message) Type() MessageType {
	if m.Body == nil {
		return MessageText
	}
	return m.Body.Type()
}

// Text returns the conversational text of the message, empty for
// structured payloads.
func (m Message) Text() string {
	if t, ok := m.Body.(TextBody); ok {
		return t.Text
	}
	return ""
}

// messageEnvelope is the wire/persistence shape of a Message. Only the
// field matching the type discriminant is populated.
type messageEnvelope struct {
	ID             string      `json:"id"`
	Role           Role        `json:"role"`
	Type           MessageType `json:"type"`
	Content        string      `json:"content,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	IsStreaming    bool        `json:"is_streaming,omitempty"`
	IsError        bool        `json:"is_error,omitempty"`
	IsLimitMessage bool        `json:"is_limit_message,omitempty"`
	SafetyFlags    []string    `json:"safety_flags,omitempty"`
	Flashcards     []Flashcard `json:"flashcards,omitempty"`
	Summary        *Summary    `json:"summary,omitempty"`
	Quiz           *Quiz       `json:"quiz,omitempty"`
	Description    string      `json:"description,omitempty"`
	ImageData      string      `json:"image_data,omitempty"`
	MimeType       string      `json:"mime_type,omitempty"`
}

// MarshalJSON flattens the tagged body into the envelope shape.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{
		ID:             m.ID,
		Role:           m.Role,
		Type:           m.Type(),
		Timestamp:      m.Timestamp,
		IsStreaming:    m.IsStreaming,
		IsError:        m.IsError,
		IsLimitMessage: m.IsLimitMessage,
		SafetyFlags:    m.SafetyFlags,
	}

	switch body := m.Body.(type) {
	case nil:
	case TextBody:
		env.Content = body.Text
	case FlashcardsBody:
		env.Flashcards = body.Cards
	case SummaryBody:
		s := body.Summary
		env.Summary = &s
	case QuizBody:
		q := body.Quiz
		env.Quiz = &q
	case InfographicBody:
		env.Description = body.Description
		env.ImageData = body.ImageData
		env.MimeType = body.MimeType
	case ImageBody:
		env.ImageData = body.ImageData
		env.MimeType = body.MimeType
	default:
		return nil, fmt.Errorf("marshal message: unknown body type %T", m.Body)
	}

	return json.Marshal(env)
}

// UnmarshalJSON restores the tagged body from the envelope shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	m.ID = env.ID
	m.Role = env.Role
	m.Timestamp = env.Timestamp
	m.IsStreaming = env.IsStreaming
	m.IsError = env.IsError
	m.IsLimitMessage = env.IsLimitMessage
	m.SafetyFlags = env.SafetyFlags

	switch env.Type {
	case MessageText, "":
		m.Body = TextBody{Text: env.Content}
	case MessageFlashcards:
		m.Body = FlashcardsBody{Cards: env.Flashcards}
	case MessageSummary:
		var s Summary
		if env.Summary != nil {
			s = *env.Summary
		}
		m.Body = SummaryBody{Summary: s}
	case MessageQuiz:
		var q Quiz
		if env.Quiz != nil {
			q = *env.Quiz
		}
		m.Body = QuizBody{Quiz: q}
	case MessageInfographic:
		m.Body = InfographicBody{Description: env.Description, ImageData: env.ImageData, MimeType: env.MimeType}
	case MessageImage:
		m.Body = ImageBody{ImageData: env.ImageData, MimeType: env.MimeType}
	default:
		return fmt.Errorf("unmarshal message: unknown type %q", env.Type)
	}

	return nil
}
