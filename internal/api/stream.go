package api

import (
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
)

const (
	sseRetryDelay        = 5 * time.Second
	sseKeepaliveInterval = 10 * time.Second
	sseReplayQueueSize   = 100
)

// sseConnection represents a single SSE client connection.
type sseConnection struct {
	id        int64
	userID    string
	sessionID string
	writer    http.ResponseWriter
	flusher   http.Flusher
	done      chan struct{}
	mu        sync.Mutex
}

// queuedEvent is one buffered message awaiting replay.
type queuedEvent struct {
	eventID int64
	payload []byte
}

// Broadcaster fans appended messages out to SSE subscribers, with a
// bounded per-session replay queue so a reconnecting client can recover
// events it missed via Last-Event-ID.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[string]map[int64]*sseConnection // sessionKey -> connID -> conn
	queues      map[string]*list.List               // sessionKey -> *queuedEvent

	counterMu    sync.Mutex
	eventCounter int64
	connectionID int64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[string]map[int64]*sseConnection),
		queues:      make(map[string]*list.List),
	}
}

func streamKey(userID, sessionID string) string { return userID + ":" + sessionID }

// Publish delivers one appended message to every subscriber of the
// user/session pair and records it for replay. Wire this to a session's
// OnAppend hook.
func (b *Broadcaster) Publish(userID, sessionID string, msg domain.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("failed to marshal stream message", "user_id", userID, "error", err)
		return
	}

	b.counterMu.Lock()
	b.eventCounter++
	eventID := b.eventCounter
	b.counterMu.Unlock()

	key := streamKey(userID, sessionID)

	b.mu.Lock()
	q, ok := b.queues[key]
	if !ok {
		q = list.New()
		b.queues[key] = q
	}
	q.PushBack(&queuedEvent{eventID: eventID, payload: payload})
	for q.Len() > sseReplayQueueSize {
		q.Remove(q.Front())
	}

	conns := make([]*sseConnection, 0, len(b.connections[key]))
	for _, c := range b.connections[key] {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		b.send(conn, eventID, payload)
	}
}

func (b *Broadcaster) send(conn *sseConnection, eventID int64, payload []byte) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.done:
		return
	default:
	}

	if _, err := fmt.Fprintf(conn.writer, "id: %d\nevent: message\ndata: %s\n\n", eventID, payload); err != nil {
		slog.Debug("failed to write to SSE connection", "error", err, "conn_id", conn.id)
		return
	}
	conn.flusher.Flush()
}

// missedSince returns buffered events after the given event ID.
func (b *Broadcaster) missedSince(userID, sessionID string, afterEventID int64) []*queuedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.queues[streamKey(userID, sessionID)]
	if !ok {
		return nil
	}
	var missed []*queuedEvent
	for e := q.Front(); e != nil; e = e.Next() {
		ev := e.Value.(*queuedEvent)
		if ev.eventID > afterEventID {
			missed = append(missed, ev)
		}
	}
	return missed
}

// ServeStream runs the SSE loop for one subscriber until the client
// disconnects.
func (b *Broadcaster) ServeStream(w http.ResponseWriter, r *http.Request, userID, sessionID string) {
	// Parse Last-Event-ID header or query param for replay.
	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", sseRetryDelay.Milliseconds())); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	b.counterMu.Lock()
	b.connectionID++
	connID := b.connectionID
	b.counterMu.Unlock()

	conn := &sseConnection{
		id:        connID,
		userID:    userID,
		sessionID: sessionID,
		writer:    w,
		flusher:   flusher,
		done:      make(chan struct{}),
	}

	key := streamKey(userID, sessionID)
	b.mu.Lock()
	if _, exists := b.connections[key]; !exists {
		b.connections[key] = make(map[int64]*sseConnection)
	}
	b.connections[key][connID] = conn
	b.mu.Unlock()

	defer func() {
		close(conn.done)
		b.mu.Lock()
		if conns, exists := b.connections[key]; exists {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(b.connections, key)
				// Last subscriber gone; drop the replay buffer too.
				delete(b.queues, key)
			}
		}
		b.mu.Unlock()
		slog.Info("SSE connection closed", "user_id", userID, "session_id", sessionID, "conn_id", connID)
	}()

	if lastEventID > 0 {
		missed := b.missedSince(userID, sessionID, lastEventID)
		if len(missed) > 0 {
			slog.Info("replaying missed SSE events",
				"user_id", userID, "session_id", sessionID, "count", len(missed))
			for _, ev := range missed {
				b.send(conn, ev.eventID, ev.payload)
			}
		}
	}

	b.counterMu.Lock()
	b.eventCounter++
	eventID := b.eventCounter
	b.counterMu.Unlock()

	connectedData := fmt.Sprintf(`{"status":"connected","user_id":"%s","event_id":%d}`, userID, eventID)
	if _, err := fmt.Fprintf(w, "id: %d\nevent: connected\ndata: %s\n\n", eventID, connectedData); err != nil {
		slog.Warn("failed to write SSE connected event", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			conn.mu.Lock()
			if _, err := fmt.Fprint(w, "event: ping\ndata: {\"status\":\"alive\"}\n\n"); err != nil {
				conn.mu.Unlock()
				slog.Debug("failed to write SSE keepalive", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
			conn.mu.Unlock()
		}
	}
}

// HandleStream handles GET /api/chat/stream.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if h.broadcaster == nil {
		Error(w, http.StatusServiceUnavailable, "streaming unavailable")
		return
	}
	h.broadcaster.ServeStream(w, r, s.UserID(), s.SessionID())
}
