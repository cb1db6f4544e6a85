// Package convlog writes per-session conversation transcripts as NDJSON
// files for offline review of what learners asked and what Ollie said.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Config controls the conversation logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one logged conversation turn. ContentRaw keeps the original
// text; Content is a cleaned copy for human review.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode,omitempty"`
	Role       string    `json:"role"`
	EventType  string    `json:"event_type"`
	Tool       string    `json:"tool,omitempty"`
	ContentRaw string    `json:"content_raw"`
	Content    string    `json:"content"`
}

// Logger appends events to <dir>/<user_id>/<session_id>.ndjson through an
// async queue so logging never blocks the conversation path. A full queue
// drops the event.
type Logger struct {
	cfg    Config
	logger *slog.Logger

	queue chan Event
	done  chan struct{}

	mu    sync.Mutex
	files map[string]*os.File
}

// New creates a conversation logger. A disabled config yields a logger
// whose Log is a no-op.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	l := &Logger{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
		files:  make(map[string]*os.File),
	}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir is required when enabled")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	l.queue = make(chan Event, size)
	go l.run()
	return l, nil
}

// Log enqueues one event. Never blocks; events are dropped when the
// queue is full or the logger is disabled.
func (l *Logger) Log(ev Event) {
	if !l.cfg.Enabled {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Content = cleanForReadability(ev.ContentRaw)

	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"user_id", ev.UserID, "session_id", ev.SessionID)
	}
}

// Close drains the queue and closes all open files.
func (l *Logger) Close() error {
	if !l.cfg.Enabled {
		return nil
	}
	close(l.queue)
	<-l.done

	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for path, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", path, err)
		}
	}
	l.files = make(map[string]*os.File)
	return firstErr
}

func (l *Logger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.logger.Warn("failed to write conversation log event",
				"user_id", ev.UserID, "session_id", ev.SessionID, "error", err)
		}
	}
}

func (l *Logger) write(ev Event) error {
	f, err := l.file(ev.UserID, ev.SessionID)
	if err != nil {
		return err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *Logger) file(userID, sessionID string) (*os.File, error) {
	userDir := filepath.Join(l.cfg.Dir, sanitize(userID))
	path := filepath.Join(userDir, sanitize(sessionID)+".ndjson")

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.files[path]; ok {
		return f, nil
	}

	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("create user log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	l.files[path] = f
	return f, nil
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// cleanForReadability strips ANSI escape sequences and collapses runs of
// whitespace so transcripts read cleanly in a pager.
func cleanForReadability(raw string) string {
	clean := ansiPattern.ReplaceAllString(raw, "")
	clean = strings.ReplaceAll(clean, "\r", "")
	return strings.Join(strings.Fields(clean), " ")
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return unsafePathChars.ReplaceAllString(s, "_")
}
