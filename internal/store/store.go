// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
)

// QuotaKey is the logical key under which demo usage counters are stored.
const QuotaKey = "orbit_demo_chat_count"

// Repository defines the interface for persisting learner, quota and
// transcript data.
type Repository interface {
	// GetLearner retrieves a learner by user ID, or nil when unknown.
	GetLearner(ctx context.Context, userID string) (*domain.Learner, error)

	// UpsertLearner creates or updates a learner record.
	UpsertLearner(ctx context.Context, learner *domain.Learner) error

	// UpdateLastSeen updates the last_seen_at timestamp for a learner.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetQuota returns the demo usage record for a user, or nil when none
	// exists.
	GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error)

	// PutQuota writes the demo usage record for a user.
	PutQuota(ctx context.Context, userID string, rec domain.QuotaRecord) error

	// DeleteExpiredQuota removes quota rows whose window elapsed before
	// the threshold, returning how many were removed.
	DeleteExpiredQuota(ctx context.Context, window time.Duration) (int64, error)

	// GetTranscript retrieves a persisted transcript, or nil when none
	// exists for the user/session pair.
	GetTranscript(ctx context.Context, userID, sessionID string) (*domain.Transcript, error)

	// UpsertTranscript creates or updates a transcript.
	UpsertTranscript(ctx context.Context, t *domain.Transcript) error

	// DeleteTranscript removes one transcript.
	DeleteTranscript(ctx context.Context, userID, sessionID string) error

	// CleanupIdleTranscripts removes transcripts untouched for longer
	// than the TTL.
	CleanupIdleTranscripts(ctx context.Context, ttl time.Duration) (int64, error)

	// GetActiveProfile returns the user's active child profile, or nil.
	GetActiveProfile(ctx context.Context, userID string) (*domain.ChildProfile, error)

	// UpsertProfile creates or updates a child profile.
	UpsertProfile(ctx context.Context, p *domain.ChildProfile) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
