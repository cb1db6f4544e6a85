package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/safety"
	"github.com/orbitlearn/ollie/internal/session"
	"github.com/orbitlearn/ollie/internal/summary"
)

var knownTools = map[string]session.Tool{
	"flashcards":  session.ToolFlashcards,
	"summary":     session.ToolSummary,
	"quiz":        session.ToolQuiz,
	"infographic": session.ToolInfographic,
}

type toolResponse struct {
	Tool    string             `json:"tool"`
	Started bool               `json:"started"`
	State   *chatStateResponse `json:"state,omitempty"`
}

// HandleTool handles POST /api/tools/{tool}. The generation runs to
// completion before responding; a busy tool reports started=false
// without queueing a second run.
func (h *Handler) HandleTool(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !h.rateLimiter.Allow(s.UserID()) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	tool, ok := knownTools[chi.URLParam(r, "tool")]
	if !ok {
		Error(w, http.StatusNotFound, "unknown tool")
		return
	}

	if s.ToolLoading(tool) {
		JSON(w, http.StatusConflict, toolResponse{Tool: string(tool), Started: false})
		return
	}

	before := len(s.Messages())
	s.InvokeTool(r.Context(), tool)
	msgs := s.Messages()
	produced := len(msgs) > before

	if produced {
		h.logTurn(s, "assistant", "tool_result", toolLogContent(tool, msgs[len(msgs)-1]))
		h.persistTranscript(r, s)
	}

	flags := s.SafetyFlags()
	state := chatStateResponse{
		Messages:    msgs,
		Typing:      s.Typing(),
		SafetyFlags: flags,
		Safety:      safety.Resolve(flags),
		Quota:       h.quotaFor(r, s),
	}
	JSON(w, http.StatusOK, toolResponse{Tool: string(tool), Started: produced, State: &state})
}

// toolLogContent renders a tool result for the conversation log. Summary
// payloads log their full plain-text rendering; other payloads log the
// tool name.
func toolLogContent(tool session.Tool, result domain.Message) string {
	if body, ok := result.Body.(domain.SummaryBody); ok {
		return summary.Render(body.Summary)
	}
	return string(tool)
}
