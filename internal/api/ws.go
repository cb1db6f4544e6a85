package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/safety"
	"github.com/orbitlearn/ollie/internal/session"
)

// wsMessage represents the WebSocket message structure.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type wsUpdate struct {
	Type        string           `json:"type"`
	Messages    []domain.Message `json:"messages,omitempty"`
	Typing      bool             `json:"typing"`
	SafetyFlags []string         `json:"safety_flags,omitempty"`
	Safety      safety.Result    `json:"safety"`
}

// HandleWS handles GET /api/chat/ws: a bidirectional chat channel. Each
// inbound message triggers a send; the reply frame carries the messages
// appended since the client's last frame.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "user_id", s.UserID())
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "user_id", s.UserID())
		}
	}()

	slog.Info("chat websocket connected", "user_id", s.UserID(), "session_id", s.SessionID())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Send the current conversation up front.
	seen := len(s.Messages())
	if err := h.writeWSUpdate(ctx, ws, s, 0, &seen); err != nil {
		return
	}

	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("websocket closed by client", "user_id", s.UserID())
			} else {
				slog.Warn("websocket read error", "error", err, "user_id", s.UserID())
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "message":
			if !h.rateLimiter.Allow(s.UserID()) {
				_ = h.writeWSJSON(ctx, ws, map[string]string{"type": "error", "error": "rate limit exceeded"})
				continue
			}
			h.logTurn(s, "user", "chat_user_message", msg.Content)
			s.ChangeInput(msg.Content)
			s.Send(ctx)
			h.persistTranscript(r, s)
			if err := h.writeWSUpdate(ctx, ws, s, seen, &seen); err != nil {
				return
			}
		case "refresh":
			if err := h.writeWSUpdate(ctx, ws, s, seen, &seen); err != nil {
				return
			}
		case "ping":
			if err := h.writeWSJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}

// writeWSUpdate sends messages appended since index from, advancing seen.
func (h *Handler) writeWSUpdate(ctx context.Context, ws *websocket.Conn, s *session.Session, from int, seen *int) error {
	msgs := s.Messages()
	if from > len(msgs) {
		from = 0
	}
	flags := s.SafetyFlags()
	update := wsUpdate{
		Type:        "update",
		Messages:    msgs[from:],
		Typing:      s.Typing(),
		SafetyFlags: flags,
		Safety:      safety.Resolve(flags),
	}
	*seen = len(msgs)
	return h.writeWSJSON(ctx, ws, update)
}

func (h *Handler) writeWSJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write error", "error", err)
		return err
	}
	return nil
}
