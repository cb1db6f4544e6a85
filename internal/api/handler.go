// Package api provides HTTP handlers for the Ollie API.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orbitlearn/ollie/internal/config"
	"github.com/orbitlearn/ollie/internal/convlog"
	"github.com/orbitlearn/ollie/internal/session"
	"github.com/orbitlearn/ollie/internal/store"
)

// defaultMaxRequestBodySize is the maximum allowed request body size (64KB).
// Chat inputs are short; anything larger is not a legitimate message.
const defaultMaxRequestBodySize = 64 << 10

// Handler serves the chat, tool and stream endpoints.
type Handler struct {
	repo        store.Repository
	sessions    *session.Registry
	rateLimiter *RateLimiter
	broadcaster *Broadcaster
	log         *convlog.Logger
	cfg         *config.Config
}

// NewHandler creates a Handler with its collaborators.
func NewHandler(repo store.Repository, sessions *session.Registry, broadcaster *Broadcaster, log *convlog.Logger, cfg *config.Config) *Handler {
	limit := 60
	if cfg != nil && cfg.RateLimit.RequestsPerMinute > 0 {
		limit = cfg.RateLimit.RequestsPerMinute
	}
	return &Handler{
		repo:        repo,
		sessions:    sessions,
		rateLimiter: NewRateLimiter(limit, time.Minute),
		broadcaster: broadcaster,
		log:         log,
		cfg:         cfg,
	}
}

// RegisterRoutes registers the API routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/send", h.HandleSend)
		r.Post("/input", h.HandleInput)
		r.Post("/clear", h.HandleClear)
		r.Post("/retry", h.HandleRetry)
		r.Get("/messages", h.HandleMessages)
		r.Get("/quota", h.HandleQuota)
		r.Get("/stream", h.HandleStream)
		r.Get("/ws", h.HandleWS)
	})
	r.Post("/api/tools/{tool}", h.HandleTool)
	r.Route("/api/quiz/{messageID}", func(r chi.Router) {
		r.Get("/", h.HandleQuizAction)
		r.Post("/{action}", h.HandleQuizAction)
	})
	r.Route("/api/flashcards/{messageID}", func(r chi.Router) {
		r.Get("/", h.HandleFlashcardAction)
		r.Post("/{action}", h.HandleFlashcardAction)
	})
	r.Route("/api/profile", func(r chi.Router) {
		r.Post("/", h.HandleProfileCreate)
		r.Get("/", h.HandleProfileGet)
	})
	r.Get("/api/health", h.HandleHealth)
}

// HandleHealth reports service and database health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"sessions": h.sessions.Len(),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RateLimiter implements a per-user sliding-window rate limiter.
// The key is userID only — not userID:sessionID — so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter and starts the background
// eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// startEviction runs a background goroutine that periodically removes
// expired keys from the requests map, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for range ticker.C {
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}
