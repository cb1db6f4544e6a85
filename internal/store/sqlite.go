package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db           *sql.DB
	transcriptMu sync.Mutex // Mutex for transcript operations to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS learners (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_learners_last_seen ON learners(last_seen_at);

	CREATE TABLE IF NOT EXISTS demo_quota (
		user_id TEXT NOT NULL,
		quota_key TEXT NOT NULL,
		count INTEGER NOT NULL,
		window_start INTEGER NOT NULL,
		PRIMARY KEY (user_id, quota_key)
	);
	CREATE INDEX IF NOT EXISTS idx_demo_quota_window ON demo_quota(window_start);

	CREATE TABLE IF NOT EXISTS transcripts (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at);

	CREATE TABLE IF NOT EXISTS child_profiles (
		child_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		birth_year INTEGER,
		is_active INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_child_profiles_user ON child_profiles(user_id, is_active);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetLearner retrieves a learner by user ID.
func (s *SQLiteStore) GetLearner(ctx context.Context, userID string) (*domain.Learner, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM learners WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var learner domain.Learner
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&learner.UserID, &learner.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan learner row: %w", err)
	}

	learner.LastSeenAt = time.Unix(lastSeen, 0)
	learner.CreatedAt = time.Unix(createdAt, 0)
	learner.UpdatedAt = time.Unix(updatedAt, 0)

	return &learner, nil
}

// UpsertLearner creates or updates a learner record.
func (s *SQLiteStore) UpsertLearner(ctx context.Context, learner *domain.Learner) error {
	query := `
	INSERT INTO learners (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		learner.UserID, learner.Username,
		learner.LastSeenAt.Unix(), learner.CreatedAt.Unix(), learner.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert learner: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a learner.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE learners SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetQuota returns the demo usage record for a user. Window stamps are
// stored as epoch milliseconds to keep sub-second window math exact.
func (s *SQLiteStore) GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	query := `SELECT count, window_start FROM demo_quota WHERE user_id = ? AND quota_key = ?`

	row := s.db.QueryRowContext(ctx, query, userID, QuotaKey)

	var rec domain.QuotaRecord
	var windowStart int64

	err := row.Scan(&rec.Count, &windowStart)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan quota row: %w", err)
	}

	rec.WindowStart = time.UnixMilli(windowStart)
	return &rec, nil
}

// PutQuota writes the demo usage record for a user.
func (s *SQLiteStore) PutQuota(ctx context.Context, userID string, rec domain.QuotaRecord) error {
	query := `
	INSERT INTO demo_quota (user_id, quota_key, count, window_start)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id, quota_key) DO UPDATE SET
		count = excluded.count,
		window_start = excluded.window_start`

	_, err := s.db.ExecContext(ctx, query, userID, QuotaKey, rec.Count, rec.WindowStart.UnixMilli())
	if err != nil {
		return fmt.Errorf("put quota: %w", err)
	}
	return nil
}

// DeleteExpiredQuota removes quota rows whose window elapsed.
func (s *SQLiteStore) DeleteExpiredQuota(ctx context.Context, window time.Duration) (int64, error) {
	threshold := time.Now().Add(-window).UnixMilli()
	query := `DELETE FROM demo_quota WHERE window_start < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete expired quota: %w", err)
	}
	return result.RowsAffected()
}

// GetTranscript retrieves a persisted transcript for a user/session pair.
func (s *SQLiteStore) GetTranscript(ctx context.Context, userID, sessionID string) (*domain.Transcript, error) {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	query := `
		SELECT user_id, session_id, messages_json, created_at, updated_at
		FROM transcripts WHERE user_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)

	var t domain.Transcript
	var createdAt, updatedAt int64

	err := row.Scan(&t.UserID, &t.SessionID, &t.MessagesJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// UpsertTranscript creates or updates a transcript.
func (s *SQLiteStore) UpsertTranscript(ctx context.Context, t *domain.Transcript) error {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	query := `
	INSERT INTO transcripts (user_id, session_id, messages_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, session_id) DO UPDATE SET
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		t.UserID, t.SessionID, t.MessagesJSON,
		t.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

// DeleteTranscript removes one transcript. Retries with exponential
// backoff to ride out SQLITE_BUSY under write contention.
func (s *SQLiteStore) DeleteTranscript(ctx context.Context, userID, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteTranscriptOnce(ctx, userID, sessionID)
		if err == nil {
			return nil
		}

		if isSQLiteConflict(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("DeleteTranscript hit SQLITE_BUSY, retrying",
				"user_id", userID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("delete transcript for %s/%s after %d attempts: %w", userID, sessionID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) deleteTranscriptOnce(ctx context.Context, userID, sessionID string) error {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()

	query := `DELETE FROM transcripts WHERE user_id = ? AND session_id = ?`
	_, err := s.db.ExecContext(ctx, query, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// CleanupIdleTranscripts removes transcripts untouched for longer than TTL.
func (s *SQLiteStore) CleanupIdleTranscripts(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM transcripts WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup idle transcripts: %w", err)
	}
	return result.RowsAffected()
}

// GetActiveProfile returns the user's active child profile, or nil.
func (s *SQLiteStore) GetActiveProfile(ctx context.Context, userID string) (*domain.ChildProfile, error) {
	query := `
		SELECT child_id, user_id, name, birth_year, is_active, created_at, updated_at
		FROM child_profiles
		WHERE user_id = ? AND is_active = 1
		ORDER BY updated_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID)

	var p domain.ChildProfile
	var birthYear sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&p.ChildID, &p.UserID, &p.Name, &birthYear, &p.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan child profile: %w", err)
	}

	p.BirthYear = int(birthYear.Int64)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// UpsertProfile creates or updates a child profile. Activating a profile
// deactivates the user's others so at most one is active.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *domain.ChildProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back profile tx", "error", rbErr)
		}
	}()

	if p.IsActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE child_profiles SET is_active = 0, updated_at = ? WHERE user_id = ? AND child_id != ?`,
			time.Now().Unix(), p.UserID, p.ChildID,
		); err != nil {
			return fmt.Errorf("deactivate sibling profiles: %w", err)
		}
	}

	var birthYear interface{}
	if p.BirthYear > 0 {
		birthYear = p.BirthYear
	}

	query := `
	INSERT INTO child_profiles (child_id, user_id, name, birth_year, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(child_id) DO UPDATE SET
		name = excluded.name,
		birth_year = excluded.birth_year,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`

	if _, err := tx.ExecContext(ctx, query,
		p.ChildID, p.UserID, p.Name, birthYear, p.IsActive,
		p.CreatedAt.Unix(), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert child profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isSQLiteConflict reports SQLITE_BUSY / "database is locked" errors,
// which warrant a retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
