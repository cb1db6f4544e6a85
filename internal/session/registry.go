package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry keeps the live Session instances keyed by user and tab. Each
// browser tab gets its own session; sessions idle past the TTL are swept.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	build func(userID, sessionID string) *Session
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry wires a factory used for on-demand session creation.
func NewRegistry(build func(userID, sessionID string) *Session, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		build:    build,
		ttl:      ttl,
		now:      time.Now,
	}
}

func key(userID, sessionID string) string { return userID + ":" + sessionID }

// Get returns the session for the user/tab pair, creating it on first use.
func (r *Registry) Get(userID, sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(userID, sessionID)
	if s, ok := r.sessions[k]; ok {
		return s
	}
	s := r.build(userID, sessionID)
	r.sessions[k] = s
	return s
}

// Peek returns the session if it exists, without creating one.
func (r *Registry) Peek(userID, sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(userID, sessionID)]
	return s, ok
}

// Remove closes and drops one session.
func (r *Registry) Remove(userID, sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[key(userID, sessionID)]
	if ok {
		delete(r.sessions, key(userID, sessionID))
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len reports the live session count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and drops sessions idle longer than the TTL, returning how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Session
	for k, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, k)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// StartSweeper runs Sweep on the interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if r.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					logger.Debug("swept idle sessions", "count", n)
				}
			}
		}
	}()
}

// CloseAll tears down every session, used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
