// Package session implements the interactive learning session engine: the
// conversation orchestrator that owns the message stream, enforces the
// demo quota, dispatches tool generation and surfaces safety state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/flashcards"
	"github.com/orbitlearn/ollie/internal/quiz"
	"github.com/orbitlearn/ollie/internal/quota"
)

// ErrNoSuchMessage reports an interaction against a message ID that is
// not in the conversation.
var ErrNoSuchMessage = errors.New("no such message")

// ErrNotInteractive reports an interaction against a message whose
// payload carries no quiz or flashcard state.
var ErrNotInteractive = errors.New("message has no interactive payload")

// Mode selects which of the two disjoint conversation paths a session
// uses. The mode is fixed for the session's lifetime: a demo session
// never reads live backend state and vice versa.
type Mode int

const (
	// ModeDemo is the fully local, quota-enforced anonymous mode.
	ModeDemo Mode = iota
	// ModeLive delegates the conversation to an external chat backend.
	ModeLive
)

// Tool names one of the four on-demand content generators.
type Tool string

const (
	ToolFlashcards  Tool = "flashcards"
	ToolSummary     Tool = "summary"
	ToolQuiz        Tool = "quiz"
	ToolInfographic Tool = "infographic"
)

// Tools lists all tools in display order.
var Tools = []Tool{ToolFlashcards, ToolSummary, ToolQuiz, ToolInfographic}

// DefaultMessageLimit is the number of demo messages allowed per window.
const DefaultMessageLimit = 3

const demoWelcome = "Hi! I'm Ollie, your learning buddy! 🦉 Ask me anything " +
	"you're curious about, or try one of the questions below."

var demoSuggestedQuestions = []string{
	"What are black holes?",
	"Why do volcanoes erupt?",
	"How do rainbows appear?",
	"What did dinosaurs eat?",
}

// toolActions are the synthetic user messages prepended to tool results.
var toolActions = map[Tool]string{
	ToolFlashcards:  "📚 Generate flashcards for this lesson",
	ToolSummary:     "📝 Summarize this lesson",
	ToolQuiz:        "🎯 Quiz me on this lesson",
	ToolInfographic: "🎨 Create an infographic for this lesson",
}

// toolFallbacks are the friendly error replies when a generator fails.
var toolFallbacks = map[Tool]string{
	ToolFlashcards:  "I couldn't make flashcards right now. 😅 Let's try again in a moment, or ask me a question about the lesson instead!",
	ToolSummary:     "I couldn't put a summary together right now. 😅 Want me to answer a question about the lesson while we wait?",
	ToolQuiz:        "I couldn't build a quiz right now. 😅 How about we review the lesson together and try the quiz again soon?",
	ToolInfographic: "I couldn't draw an infographic right now. 😅 I could make flashcards or a summary instead, just say the word!",
}

// Config assembles a session's collaborators. Backend is only consulted
// in live mode; Quota only in demo mode.
type Config struct {
	Mode      Mode
	UserID    string
	SessionID string

	Backend   ChatBackend
	Lesson    LessonSource
	Generator ToolGenerator
	Profiles  ProfileResolver
	Quota     *quota.Keeper

	// MessageLimit caps demo user messages per quota window; zero means
	// DefaultMessageLimit.
	MessageLimit int

	// History seeds a demo session's conversation from a persisted
	// transcript. Empty history seeds the welcome message instead.
	History []domain.Message

	// OnInputChange observes draft edits, when registered.
	OnInputChange func(value string)

	// OnAppend observes every message appended by this session, used to
	// fan appended messages out to stream subscribers.
	OnAppend func(msg domain.Message)

	// Schedule runs f after d and returns a cancel function. Defaults to
	// time.AfterFunc; tests inject an immediate scheduler.
	Schedule func(d time.Duration, f func()) (cancel func())

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is one learner's conversation. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	mode      Mode
	userID    string
	sessionID string

	backend   ChatBackend
	lesson    LessonSource
	generator ToolGenerator
	profiles  ProfileResolver
	keeper    *quota.Keeper
	limit     int

	onInputChange func(string)
	onAppend      func(domain.Message)
	schedule      func(time.Duration, func()) func()
	now           func() time.Time

	messages   []domain.Message // demo-local stream
	input      string
	lastSynced string

	loading map[Tool]bool

	// Per-message interaction state, created lazily on first access and
	// scoped to the rendered message instance.
	attempts map[string]*quiz.Attempt
	reviews  map[string]*flashcards.Review

	timers   map[int]func()
	timerSeq int
	closed   bool

	lastActive time.Time
}

// New constructs a session with its mode resolved once. The two modes
// share no conversation state.
func New(cfg Config) *Session {
	s := &Session{
		mode:          cfg.Mode,
		userID:        cfg.UserID,
		sessionID:     cfg.SessionID,
		backend:       cfg.Backend,
		lesson:        cfg.Lesson,
		generator:     cfg.Generator,
		profiles:      cfg.Profiles,
		keeper:        cfg.Quota,
		limit:         cfg.MessageLimit,
		onInputChange: cfg.OnInputChange,
		onAppend:      cfg.OnAppend,
		schedule:      cfg.Schedule,
		now:           cfg.Now,
		loading:       make(map[Tool]bool),
		attempts:      make(map[string]*quiz.Attempt),
		reviews:       make(map[string]*flashcards.Review),
		timers:        make(map[int]func()),
	}
	if s.limit <= 0 {
		s.limit = DefaultMessageLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.schedule == nil {
		s.schedule = func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		}
	}
	s.lastActive = s.now()

	if s.mode == ModeDemo {
		if len(cfg.History) > 0 {
			s.messages = append(s.messages, cfg.History...)
		} else {
			s.messages = append(s.messages, s.newMessage(domain.RoleAssistant, domain.TextBody{Text: demoWelcome}))
		}
	}
	return s
}

// Mode returns the session's fixed mode.
func (s *Session) Mode() Mode { return s.mode }

// UserID returns the owning anonymous user.
func (s *Session) UserID() string { return s.userID }

// SessionID returns the tab session identifier.
func (s *Session) SessionID() string { return s.sessionID }

// LastActive returns the time of the last user interaction.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Input returns the current draft text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// ChangeInput updates the draft and notifies the registered observer.
func (s *Session) ChangeInput(value string) {
	s.mu.Lock()
	s.input = value
	s.touchLocked()
	observer := s.onInputChange
	s.mu.Unlock()

	if observer != nil {
		observer(value)
	}
}

// SyncInput adopts an externally supplied initial value when it changes,
// without notifying the observer (the value came from outside).
func (s *Session) SyncInput(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == s.lastSynced {
		return
	}
	s.lastSynced = value
	s.input = value
}

// Messages returns a snapshot of the conversation. Live sessions read the
// backend's stream; a live session without a backend reads empty rather
// than failing.
func (s *Session) Messages() []domain.Message {
	if s.mode == ModeLive {
		if s.backend == nil {
			return nil
		}
		return s.backend.Messages()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SuggestedQuestions returns starter prompts for the learner.
func (s *Session) SuggestedQuestions() []string {
	if s.mode == ModeLive {
		if s.backend == nil {
			return nil
		}
		return s.backend.SuggestedQuestions()
	}
	return demoSuggestedQuestions
}

// SafetyFlags returns the active safety flags. Demo sessions always
// report none: no safety pipeline runs client-side in demo.
func (s *Session) SafetyFlags() []string {
	if s.mode != ModeLive || s.backend == nil {
		return nil
	}
	return s.backend.SafetyFlags()
}

// QuotaRemaining reports how many demo messages remain. Live sessions
// have no quota and report -1.
func (s *Session) QuotaRemaining(ctx context.Context) int {
	if s.mode != ModeDemo || s.keeper == nil {
		return -1
	}
	return s.keeper.Remaining(ctx, s.userID, s.limit)
}

// Send submits the current draft. Empty input is a silent no-op. Demo
// sessions enforce the message quota and reply with canned content; live
// sessions delegate to the backend, which owns all bot responses.
func (s *Session) Send(ctx context.Context) {
	s.mu.Lock()
	text := strings.TrimSpace(s.input)
	if text == "" {
		s.mu.Unlock()
		return
	}

	if s.mode == ModeLive {
		backend := s.backend
		s.input = ""
		s.touchLocked()
		s.mu.Unlock()
		if backend == nil {
			return
		}
		if err := backend.SendMessage(ctx, text); err != nil {
			slog.Warn("live send failed", "user_id", s.userID, "session_id", s.sessionID, "error", err)
		}
		return
	}

	// Demo path. The quota guard holds even if the UI failed to disable
	// the send control.
	if s.keeper != nil && s.keeper.Count(ctx, s.userID) >= s.limit {
		s.mu.Unlock()
		return
	}

	userMsg := s.newMessage(domain.RoleUser, domain.TextBody{Text: text})
	s.appendLocked(userMsg)
	s.input = ""
	s.touchLocked()
	s.mu.Unlock()

	count := 1
	if s.keeper != nil {
		count = s.keeper.Increment(ctx, s.userID)
	}

	if count >= s.limit {
		s.scheduleAppend(limitDelay, func() domain.Message {
			msg := s.newMessage(domain.RoleAssistant, domain.TextBody{Text: limitReply})
			msg.IsLimitMessage = true
			return msg
		})
		return
	}

	reply := cannedReply(text)
	s.scheduleAppend(typingDelay(reply), func() domain.Message {
		return s.newMessage(domain.RoleAssistant, domain.TextBody{Text: reply})
	})
}

// ClearChat resets the conversation. Demo sessions return to the welcome
// message; live sessions delegate.
func (s *Session) ClearChat() {
	if s.mode == ModeLive {
		if s.backend != nil {
			s.backend.ClearChat()
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []domain.Message{s.newMessage(domain.RoleAssistant, domain.TextBody{Text: demoWelcome})}
	s.attempts = make(map[string]*quiz.Attempt)
	s.reviews = make(map[string]*flashcards.Review)
	s.touchLocked()
}

// RetryLastMessage re-sends the last user turn in live mode. Demo replies
// are deterministic, so retry is meaningless there and is a no-op.
func (s *Session) RetryLastMessage() {
	if s.mode == ModeLive && s.backend != nil {
		s.backend.RetryLastMessage()
	}
}

// Typing aggregates the shared composing indicator: any tool in flight,
// or the live backend loading or streaming.
func (s *Session) Typing() bool {
	if s.AnyToolLoading() {
		return true
	}
	if s.mode == ModeLive && s.backend != nil {
		return s.backend.IsLoading() || s.backend.IsStreaming()
	}
	return false
}

// ToolLoading reports whether one tool has a generation in flight.
func (s *Session) ToolLoading(tool Tool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[tool]
}

// AnyToolLoading folds the per-tool flags.
func (s *Session) AnyToolLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, busy := range s.loading {
		if busy {
			return true
		}
	}
	return false
}

// InvokeTool runs one generator to completion. It is gated on lesson
// content being present and on no other invocation of the same tool being
// in flight; other tools may run concurrently. Success appends the paired
// action and result messages atomically; failure appends a single
// friendly error message. The loading flag is always cleared.
func (s *Session) InvokeTool(ctx context.Context, tool Tool) {
	if s.generator == nil || s.lesson == nil {
		return
	}
	lesson := s.lesson.CurrentLesson()
	if lesson == nil {
		return
	}
	content := lesson.GenerationInput()
	if content == "" {
		return
	}

	s.mu.Lock()
	if s.closed || s.loading[tool] {
		s.mu.Unlock()
		return
	}
	s.loading[tool] = true
	s.touchLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading[tool] = false
		s.mu.Unlock()
	}()

	req := GenerateRequest{
		Content:     content,
		Title:       lesson.Title,
		KeyConcepts: lesson.KeyConcepts,
	}
	if s.profiles != nil {
		ref := s.profiles.Resolve(ctx, s.userID)
		req.ChildID = ref.ChildID
		req.AgeGroup = ref.AgeGroup
	} else {
		req.AgeGroup = domain.DefaultProfileRef().AgeGroup
	}

	body, err := s.generate(ctx, tool, req)
	if err != nil {
		slog.Warn("tool generation failed", "tool", tool, "user_id", s.userID, "error", err)
		errMsg := s.newMessage(domain.RoleAssistant, domain.TextBody{Text: toolFallbacks[tool]})
		errMsg.IsError = true
		s.append(errMsg)
		return
	}

	action := s.newMessage(domain.RoleUser, domain.TextBody{Text: toolActions[tool]})
	result := s.newMessage(domain.RoleAssistant, body)
	s.appendPair(action, result)
}

func (s *Session) generate(ctx context.Context, tool Tool, req GenerateRequest) (domain.Body, error) {
	switch tool {
	case ToolFlashcards:
		req.Count = 8
		cards, err := s.generator.GenerateFlashcards(ctx, req)
		if err != nil {
			return nil, err
		}
		return domain.FlashcardsBody{Cards: cards}, nil
	case ToolSummary:
		sum, err := s.generator.GenerateSummary(ctx, req)
		if err != nil {
			return nil, err
		}
		return domain.SummaryBody{Summary: sum}, nil
	case ToolQuiz:
		req.Count = 5
		q, err := s.generator.GenerateQuiz(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return domain.QuizBody{Quiz: q}, nil
	case ToolInfographic:
		info, err := s.generator.GenerateInfographic(ctx, req)
		if err != nil {
			return nil, err
		}
		return info, nil
	default:
		return nil, errUnknownTool(tool)
	}
}

// WithQuiz runs fn against the attempt state of a quiz message, creating
// the attempt on first access. fn runs under the session lock and must
// not call back into the session. Completing the attempt appends an
// encouragement message to the conversation.
func (s *Session) WithQuiz(messageID string, fn func(*quiz.Attempt)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoSuchMessage
	}

	a := s.attempts[messageID]
	if a == nil {
		msg, ok := s.findMessageLocked(messageID)
		if !ok {
			return ErrNoSuchMessage
		}
		body, ok := msg.Body.(domain.QuizBody)
		if !ok {
			return ErrNotInteractive
		}
		a = quiz.NewAttempt(body.Quiz, func(score, total int) {
			text := fmt.Sprintf("Quiz complete! You got %d out of %d. %s", score, total, a.BandMessage())
			s.appendEngineLocked(s.newMessage(domain.RoleAssistant, domain.TextBody{Text: text}))
		})
		s.attempts[messageID] = a
	}

	s.touchLocked()
	fn(a)
	return nil
}

// WithFlashcards runs fn against the review state of a flashcards
// message, creating the review on first access. Same locking contract as
// WithQuiz. Learning the whole deck appends a congratulation once.
func (s *Session) WithFlashcards(messageID string, fn func(*flashcards.Review)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoSuchMessage
	}

	r := s.reviews[messageID]
	if r == nil {
		msg, ok := s.findMessageLocked(messageID)
		if !ok {
			return ErrNoSuchMessage
		}
		body, ok := msg.Body.(domain.FlashcardsBody)
		if !ok {
			return ErrNotInteractive
		}
		r = flashcards.NewReview(body.Cards, func() {
			text := "You learned every card! 🎉 Want to quiz yourself on this lesson next?"
			s.appendEngineLocked(s.newMessage(domain.RoleAssistant, domain.TextBody{Text: text}))
		})
		s.reviews[messageID] = r
	}

	s.touchLocked()
	fn(r)
	return nil
}

// findMessageLocked requires s.mu held. Live sessions search the
// backend's stream, which has its own locking.
func (s *Session) findMessageLocked(id string) (domain.Message, bool) {
	msgs := s.messages
	if s.mode == ModeLive {
		if s.backend == nil {
			return domain.Message{}, false
		}
		msgs = s.backend.Messages()
	}
	for _, msg := range msgs {
		if msg.ID == id {
			return msg, true
		}
	}
	return domain.Message{}, false
}

// appendEngineLocked appends a message produced by per-message engine
// state. Requires s.mu held; the live path only touches the backend.
func (s *Session) appendEngineLocked(msg domain.Message) {
	if s.mode == ModeLive {
		if s.backend != nil {
			s.backend.AddMessage(msg)
		}
		s.notify(msg)
		return
	}
	s.appendLocked(msg)
}

// Close cancels pending timers and marks the session dead. Appends after
// Close are dropped so fired timers never touch a closed session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, cancel := range s.timers {
		cancel()
	}
	s.timers = nil
}

func (s *Session) newMessage(role domain.Role, body domain.Body) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Timestamp: s.now(),
		Body:      body,
	}
}

// append adds a single message to the stream of whichever mode owns it.
func (s *Session) append(msg domain.Message) {
	if s.mode == ModeLive {
		if s.backend != nil {
			s.backend.AddMessage(msg)
		}
		s.notify(msg)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.appendLocked(msg)
	s.mu.Unlock()
}

// appendPair adds the action/result pair as one unit: both or neither
// appear, with nothing interleaved between them.
func (s *Session) appendPair(action, result domain.Message) {
	if s.mode == ModeLive {
		if s.backend != nil {
			s.backend.AddMessages([]domain.Message{action, result})
		}
		s.notify(action)
		s.notify(result)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.appendLocked(action)
	s.appendLocked(result)
	s.mu.Unlock()
}

// appendLocked requires s.mu held.
func (s *Session) appendLocked(msg domain.Message) {
	s.messages = append(s.messages, msg)
	s.notify(msg)
}

func (s *Session) notify(msg domain.Message) {
	if s.onAppend != nil {
		s.onAppend(msg)
	}
}

// scheduleAppend arms a single-shot timer that appends a message, and
// tracks it for cancellation on Close.
func (s *Session) scheduleAppend(d time.Duration, build func() domain.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timerSeq++
	id := s.timerSeq
	s.mu.Unlock()

	cancel := s.schedule(d, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.appendLocked(build())
		s.mu.Unlock()
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	if s.timers != nil {
		s.timers[id] = cancel
	}
	s.mu.Unlock()
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

type errUnknownTool Tool

func (e errUnknownTool) Error() string { return "unknown tool: " + string(e) }
