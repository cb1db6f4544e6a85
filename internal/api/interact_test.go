package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orbitlearn/ollie/internal/config"
	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/identity"
	"github.com/orbitlearn/ollie/internal/safety"
	"github.com/orbitlearn/ollie/internal/session"
)

// invokeTool runs a tool and returns the ID of the generated message.
func invokeTool(t *testing.T, router http.Handler, tool string, wantType domain.MessageType) string {
	t.Helper()

	req := newChatRequest(http.MethodPost, "/api/tools/"+tool, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("tool %s status = %d: %s", tool, rr.Code, rr.Body.String())
	}

	var resp toolResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode tool response: %v", err)
	}
	if !resp.Started || resp.State == nil {
		t.Fatalf("tool response = %+v, want a started tool with state", resp)
	}
	for i := len(resp.State.Messages) - 1; i >= 0; i-- {
		if resp.State.Messages[i].Type() == wantType {
			return resp.State.Messages[i].ID
		}
	}
	t.Fatalf("no %s message in state", wantType)
	return ""
}

func postQuizAction(t *testing.T, router http.Handler, msgID, action, body string) (quizStateResponse, int) {
	t.Helper()

	req := newChatRequest(http.MethodPost, fmt.Sprintf("/api/quiz/%s/%s", msgID, action), body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var state quizStateResponse
	if rr.Code == http.StatusOK {
		if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
			t.Fatalf("decode quiz state: %v", err)
		}
	}
	return state, rr.Code
}

func TestQuizEndpointFlow(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)
	msgID := invokeTool(t, router, "quiz", domain.MessageQuiz)

	// Initial state via GET.
	req := newChatRequest(http.MethodGet, "/api/quiz/"+msgID, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET quiz status = %d: %s", rr.Code, rr.Body.String())
	}
	var state quizStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode quiz state: %v", err)
	}
	if state.Phase != "answering" || state.Total != 1 {
		t.Fatalf("initial state = %+v, want answering with 1 question", state)
	}
	if state.Question == nil || state.Question.Question != "What does gravity do?" {
		t.Fatalf("question = %+v", state.Question)
	}

	state, code := postQuizAction(t, router, msgID, "answer", `{"option":0}`)
	if code != http.StatusOK || state.Phase != "answered" || state.Score != 1 {
		t.Fatalf("after answer: code = %d, state = %+v", code, state)
	}

	state, code = postQuizAction(t, router, msgID, "advance", "")
	if code != http.StatusOK || state.Phase != "results" {
		t.Fatalf("after advance: code = %d, state = %+v", code, state)
	}
	if state.Percentage != 100 || !strings.Contains(state.Band, "Perfect score") {
		t.Errorf("results = %+v, want 100%% with perfect-score band", state)
	}

	state, code = postQuizAction(t, router, msgID, "key", "")
	if code != http.StatusOK || !state.ShowingAnswerKey || len(state.AnswerKey) != 1 {
		t.Fatalf("after key: code = %d, state = %+v", code, state)
	}

	state, code = postQuizAction(t, router, msgID, "retry", "")
	if code != http.StatusOK || state.Phase != "answering" || state.Score != 0 {
		t.Fatalf("after retry: code = %d, state = %+v", code, state)
	}
}

func TestQuizEndpointErrors(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)
	msgID := invokeTool(t, router, "quiz", domain.MessageQuiz)

	if _, code := postQuizAction(t, router, msgID, "teleport", ""); code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", code)
	}
	if _, code := postQuizAction(t, router, "no-such-message", "advance", ""); code != http.StatusNotFound {
		t.Errorf("unknown message status = %d, want 404", code)
	}

	// The welcome message is plain text: interacting with it is a conflict.
	req := newChatRequest(http.MethodGet, "/api/chat/messages", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var state chatStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if _, code := postQuizAction(t, router, state.Messages[0].ID, "advance", ""); code != http.StatusConflict {
		t.Errorf("text message status = %d, want 409", code)
	}
}

func TestFlashcardEndpointFlow(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)
	msgID := invokeTool(t, router, "flashcards", domain.MessageFlashcards)

	post := func(action string) flashcardStateResponse {
		t.Helper()
		req := newChatRequest(http.MethodPost, fmt.Sprintf("/api/flashcards/%s/%s", msgID, action), "")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d: %s", action, rr.Code, rr.Body.String())
		}
		var state flashcardStateResponse
		if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
			t.Fatalf("decode flashcard state: %v", err)
		}
		return state
	}

	state := post("flip")
	if !state.Flipped || state.Back != "A pulling force." {
		t.Fatalf("after flip: %+v, want back side visible", state)
	}
	if state.Front != "What is gravity?" || state.Total != 1 {
		t.Errorf("card = %+v", state)
	}

	state = post("learned")
	if state.LearnedCount != 1 || state.Progress != 1 {
		t.Fatalf("after learned: %+v, want full progress", state)
	}

	state = post("restart")
	if state.LearnedCount != 0 || state.Flipped {
		t.Errorf("after restart: %+v, want fresh review", state)
	}

	req := newChatRequest(http.MethodPost, "/api/flashcards/"+msgID+"/shuffle", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", rr.Code)
	}
}

func TestProfileCreateAndGet(t *testing.T) {
	repo := newFakeRepo()
	env := newTestEnv(t, repo)

	// No profile yet.
	req := newChatRequest(http.MethodGet, "/api/profile", "")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET before create status = %d, want 404", rr.Code)
	}

	birthYear := time.Now().Year() - 7
	body := fmt.Sprintf(`{"name":"Mia","birth_year":%d}`, birthYear)
	req = newChatRequest(http.MethodPost, "/api/profile", body)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created profileResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if created.AgeGroup != domain.AgeGroupYoung {
		t.Errorf("age group = %q, want %q", created.AgeGroup, domain.AgeGroupYoung)
	}
	if created.ChildID == "" || !created.IsActive {
		t.Errorf("profile = %+v", created)
	}

	req = newChatRequest(http.MethodGet, "/api/profile", "")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET after create status = %d", rr.Code)
	}
	var got profileResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if got.ChildID != created.ChildID || got.Name != "Mia" {
		t.Errorf("got = %+v, want the created profile", got)
	}

	// The active profile steers generation difficulty.
	invokeTool(t, env.router, "quiz", domain.MessageQuiz)
	if ag := env.gen.lastRequest().AgeGroup; ag != domain.AgeGroupYoung {
		t.Errorf("generator age group = %q, want %q", ag, domain.AgeGroupYoung)
	}
}

func TestProfileCreateValidation(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"birth_year":2018}`},
		{"blank name", `{"name":"   "}`},
		{"birth year too old", `{"name":"Mia","birth_year":1850}`},
		{"birth year in the future", fmt.Sprintf(`{"name":"Mia","birth_year":%d}`, time.Now().Year()+1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newChatRequest(http.MethodPost, "/api/profile", tc.body)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestTranscriptRestoredIntoNewSession(t *testing.T) {
	repo := newFakeRepo()
	env := newTestEnv(t, repo)

	req := newChatRequest(http.MethodPost, "/api/chat/send", `{"message":"What are black holes?"}`)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("send status = %d", rr.Code)
	}

	// Drop the in-memory session, as the idle sweeper would.
	env.registry.Remove(testAnonID, "tab-1")

	req = newChatRequest(http.MethodGet, "/api/chat/messages", "")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rr.Code)
	}
	var state chatStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.Messages) != 3 { // welcome + user + reply, restored
		t.Fatalf("len(messages) = %d, want 3 restored", len(state.Messages))
	}
	var texts []string
	for _, m := range state.Messages {
		texts = append(texts, m.Text())
	}
	if !strings.Contains(strings.Join(texts, "\n"), "What are black holes?") {
		t.Errorf("restored conversation lost the user message: %q", texts)
	}
}

func TestClearDeletesTranscript(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)

	req := newChatRequest(http.MethodPost, "/api/chat/send", `{"message":"hi"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("send status = %d", rr.Code)
	}

	req = newChatRequest(http.MethodPost, "/api/chat/clear", "")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rr.Code)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.transcripts) != 0 {
		t.Errorf("transcripts = %d, want 0 after clear", len(repo.transcripts))
	}
}

func TestStateClassifiesSafetyFlags(t *testing.T) {
	repo := newFakeRepo()
	backend := &flaggedBackend{flags: []string{"pii_detected"}}

	registry := session.NewRegistry(func(userID, sessionID string) *session.Session {
		return session.New(session.Config{
			Mode:      session.ModeLive,
			UserID:    userID,
			SessionID: sessionID,
			Backend:   backend,
		})
	}, time.Hour)
	cfg := &config.Config{RateLimit: config.RateLimitConfig{RequestsPerMinute: 100}}
	h := NewHandler(repo, registry, NewBroadcaster(), nil, cfg)
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	h.RegisterRoutes(r)

	req := newChatRequest(http.MethodGet, "/api/chat/messages", "")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var state chatStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Safety.Status != safety.StatusWarning {
		t.Errorf("safety status = %q, want warning", state.Safety.Status)
	}
	if len(state.Safety.Flags) != 1 || state.Safety.Flags[0].Label != "Personal information detected" {
		t.Errorf("safety flags = %+v", state.Safety.Flags)
	}
}

func TestStateSafetyDefaultsToSafe(t *testing.T) {
	repo := newFakeRepo()
	router := newTestHandler(t, repo)

	req := newChatRequest(http.MethodGet, "/api/chat/messages", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var state chatStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Safety.Status != safety.StatusSafe {
		t.Errorf("safety status = %q, want safe", state.Safety.Status)
	}
}

// flaggedBackend is a live backend stub that reports safety flags.
type flaggedBackend struct {
	flags []string
}

func (b *flaggedBackend) Messages() []domain.Message                { return nil }
func (b *flaggedBackend) IsLoading() bool                           { return false }
func (b *flaggedBackend) IsStreaming() bool                         { return false }
func (b *flaggedBackend) SafetyFlags() []string                     { return b.flags }
func (b *flaggedBackend) Err() error                                { return nil }
func (b *flaggedBackend) SuggestedQuestions() []string              { return nil }
func (b *flaggedBackend) WelcomeMessage() string                    { return "" }
func (b *flaggedBackend) SendMessage(context.Context, string) error { return nil }
func (b *flaggedBackend) ClearChat()                                {}
func (b *flaggedBackend) RetryLastMessage()                         {}
func (b *flaggedBackend) AddMessage(domain.Message)                 {}
func (b *flaggedBackend) AddMessages([]domain.Message)              {}
