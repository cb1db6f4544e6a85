package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/orbitlearn/ollie/internal/convlog"
	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/identity"
	"github.com/orbitlearn/ollie/internal/safety"
	"github.com/orbitlearn/ollie/internal/session"
)

type sendRequest struct {
	Message string `json:"message"`
}

type inputRequest struct {
	Value string `json:"value"`
}

type chatStateResponse struct {
	Messages    []domain.Message `json:"messages"`
	Typing      bool             `json:"typing"`
	SafetyFlags []string         `json:"safety_flags,omitempty"`
	Safety      safety.Result    `json:"safety"`
	Quota       *quotaResponse   `json:"quota,omitempty"`
}

type quotaResponse struct {
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Exhausted bool `json:"exhausted"`
}

// HandleSend handles POST /api/chat/send.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !h.rateLimiter.Allow(s.UserID()) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	h.logTurn(s, "user", "chat_user_message", req.Message)

	s.ChangeInput(req.Message)
	s.Send(r.Context())

	h.persistTranscript(r, s)
	h.writeState(w, r, s)
}

// HandleInput handles POST /api/chat/input, mirroring draft edits so a
// reconnecting tab can restore them.
func (h *Handler) HandleInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.ChangeInput(req.Value)
	JSON(w, http.StatusOK, map[string]string{"value": s.Input()})
}

// HandleClear handles POST /api/chat/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	s.ClearChat()
	h.logTurn(s, "user", "chat_cleared", "")
	if h.repo != nil {
		if err := h.repo.DeleteTranscript(r.Context(), s.UserID(), s.SessionID()); err != nil {
			slog.Warn("failed to delete transcript", "user_id", s.UserID(), "error", err)
		}
	}
	h.writeState(w, r, s)
}

// HandleRetry handles POST /api/chat/retry.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !h.rateLimiter.Allow(s.UserID()) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	s.RetryLastMessage()
	h.persistTranscript(r, s)
	h.writeState(w, r, s)
}

// HandleMessages handles GET /api/chat/messages.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, s)
}

// HandleQuota handles GET /api/chat/quota.
func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.quotaFor(r, s))
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	return h.sessions.Get(userID, sessionID), true
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, s *session.Session) {
	flags := s.SafetyFlags()
	resp := chatStateResponse{
		Messages:    s.Messages(),
		Typing:      s.Typing(),
		SafetyFlags: flags,
		Safety:      safety.Resolve(flags),
		Quota:       h.quotaFor(r, s),
	}
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) quotaFor(r *http.Request, s *session.Session) *quotaResponse {
	remaining := s.QuotaRemaining(r.Context())
	if remaining < 0 {
		return nil // live sessions have no quota
	}
	limit := session.DefaultMessageLimit
	if h.cfg != nil && h.cfg.DemoMessageLimit > 0 {
		limit = h.cfg.DemoMessageLimit
	}
	return &quotaResponse{
		Limit:     limit,
		Remaining: remaining,
		Exhausted: remaining == 0,
	}
}

// persistTranscript snapshots the conversation into the repository. Best
// effort: transcript loss never fails a request.
func (h *Handler) persistTranscript(r *http.Request, s *session.Session) {
	if h.repo == nil {
		return
	}
	msgs := s.Messages()
	data, err := json.Marshal(msgs)
	if err != nil {
		slog.Warn("failed to marshal transcript", "user_id", s.UserID(), "error", err)
		return
	}
	if err := h.repo.UpsertTranscript(r.Context(), &domain.Transcript{
		UserID:       s.UserID(),
		SessionID:    s.SessionID(),
		MessagesJSON: string(data),
		CreatedAt:    time.Now(),
	}); err != nil {
		slog.Warn("failed to persist transcript", "user_id", s.UserID(), "error", err)
	}
}

func (h *Handler) logTurn(s *session.Session, role, eventType, content string) {
	if h.log == nil {
		return
	}
	mode := "live"
	if s.Mode() == session.ModeDemo {
		mode = "demo"
	}
	h.log.Log(convlog.Event{
		UserID:     s.UserID(),
		SessionID:  s.SessionID(),
		Mode:       mode,
		Role:       role,
		EventType:  eventType,
		ContentRaw: content,
	})
}
