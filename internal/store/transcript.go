package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/orbitlearn/ollie/internal/domain"
)

// LoadTranscriptMessages reads the persisted transcript for a user/session
// pair and decodes it for session restore. Best effort: a missing or
// undecodable transcript reads as no history.
func LoadTranscriptMessages(ctx context.Context, repo Repository, userID, sessionID string) []domain.Message {
	t, err := repo.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		slog.Warn("failed to load transcript", "user_id", userID, "session_id", sessionID, "error", err)
		return nil
	}
	if t == nil {
		return nil
	}

	var msgs []domain.Message
	if err := json.Unmarshal([]byte(t.MessagesJSON), &msgs); err != nil {
		slog.Warn("failed to decode transcript", "user_id", userID, "session_id", sessionID, "error", err)
		return nil
	}
	return msgs
}
