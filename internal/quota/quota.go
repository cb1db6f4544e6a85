// Package quota enforces the rolling demo message allowance.
package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
)

// DefaultWindow is the rolling window after which a demo counter resets.
const DefaultWindow = 24 * time.Hour

// Repository persists per-user quota records. The SQLite store satisfies
// this interface.
type Repository interface {
	// GetQuota returns the persisted record for a user, or nil when none exists.
	GetQuota(ctx context.Context, userID string) (*domain.QuotaRecord, error)

	// PutQuota writes the record for a user, replacing any existing one.
	PutQuota(ctx context.Context, userID string, rec domain.QuotaRecord) error
}

// Keeper tracks demo message counts against a rolling window. Persistence
// is best effort: storage failures degrade to the in-memory mirror so a
// session keeps functioning, failing open toward allowing messages.
type Keeper struct {
	repo   Repository
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	memory map[string]domain.QuotaRecord
}

// NewKeeper creates a Keeper over the given repository. A nil repository
// is allowed and leaves only in-memory enforcement.
func NewKeeper(repo Repository, window time.Duration) *Keeper {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Keeper{
		repo:   repo,
		window: window,
		now:    time.Now,
		memory: make(map[string]domain.QuotaRecord),
	}
}

// Count returns the user's message count in the current window. Expired
// records read as zero; the store is not rewritten until the next
// increment. Storage errors fall back to the session-local mirror.
func (k *Keeper) Count(ctx context.Context, userID string) int {
	now := k.now()

	if k.repo != nil {
		rec, err := k.repo.GetQuota(ctx, userID)
		switch {
		case err != nil:
			slog.Debug("quota read failed, using in-memory state", "user_id", userID, "error", err)
		case rec == nil:
			return k.memoryCount(userID, now)
		case rec.Expired(now, k.window):
			return 0
		default:
			return rec.Count
		}
	}

	return k.memoryCount(userID, now)
}

func (k *Keeper) memoryCount(userID string, now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	rec, ok := k.memory[userID]
	if !ok || rec.Expired(now, k.window) {
		return 0
	}
	return rec.Count
}

// Increment bumps the user's counter, refreshing the window start, and
// returns the new count. The write is mirrored in memory first so a
// failing store still enforces the limit for this process.
func (k *Keeper) Increment(ctx context.Context, userID string) int {
	now := k.now()
	count := k.Count(ctx, userID) + 1
	rec := domain.QuotaRecord{Count: count, WindowStart: now}

	k.mu.Lock()
	k.memory[userID] = rec
	k.mu.Unlock()

	if k.repo != nil {
		if err := k.repo.PutQuota(ctx, userID, rec); err != nil {
			slog.Debug("quota write failed, keeping in-memory state", "user_id", userID, "error", err)
		}
	}

	return count
}

// Remaining returns how many messages the user may still send against the
// given limit, never negative.
func (k *Keeper) Remaining(ctx context.Context, userID string, limit int) int {
	left := limit - k.Count(ctx, userID)
	if left < 0 {
		return 0
	}
	return left
}

// setNow overrides the clock in tests.
func (k *Keeper) setNow(now func() time.Time) {
	k.now = now
}
