package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestQuotaRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	rec, err := repo.GetQuota(ctx, "anon_user")
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for unknown user, got %+v", rec)
	}

	start := time.Now().Truncate(time.Millisecond)
	if err := repo.PutQuota(ctx, "anon_user", domain.QuotaRecord{Count: 2, WindowStart: start}); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}

	rec, err = repo.GetQuota(ctx, "anon_user")
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if rec == nil || rec.Count != 2 {
		t.Fatalf("got %+v, want count 2", rec)
	}
	if !rec.WindowStart.Equal(start) {
		t.Errorf("window start = %v, want %v", rec.WindowStart, start)
	}

	// Overwrite on conflict.
	if err := repo.PutQuota(ctx, "anon_user", domain.QuotaRecord{Count: 3, WindowStart: start}); err != nil {
		t.Fatalf("PutQuota update: %v", err)
	}
	rec, _ = repo.GetQuota(ctx, "anon_user")
	if rec.Count != 3 {
		t.Errorf("count after update = %d, want 3", rec.Count)
	}
}

func TestDeleteExpiredQuota(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := repo.PutQuota(ctx, "stale_user", domain.QuotaRecord{Count: 3, WindowStart: old}); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}
	if err := repo.PutQuota(ctx, "fresh_user", domain.QuotaRecord{Count: 1, WindowStart: time.Now()}); err != nil {
		t.Fatalf("PutQuota: %v", err)
	}

	deleted, err := repo.DeleteExpiredQuota(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpiredQuota: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if rec, _ := repo.GetQuota(ctx, "stale_user"); rec != nil {
		t.Errorf("stale record survived: %+v", rec)
	}
	if rec, _ := repo.GetQuota(ctx, "fresh_user"); rec == nil {
		t.Error("fresh record was deleted")
	}
}

func TestTranscriptLifecycle(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	tr := &domain.Transcript{
		UserID:       "anon_user",
		SessionID:    "tab-1",
		MessagesJSON: `[{"role":"user"}]`,
		CreatedAt:    time.Now(),
	}
	if err := repo.UpsertTranscript(ctx, tr); err != nil {
		t.Fatalf("UpsertTranscript: %v", err)
	}

	got, err := repo.GetTranscript(ctx, "anon_user", "tab-1")
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if got == nil || got.MessagesJSON != tr.MessagesJSON {
		t.Fatalf("got %+v", got)
	}

	tr.MessagesJSON = `[{"role":"user"},{"role":"assistant"}]`
	if err := repo.UpsertTranscript(ctx, tr); err != nil {
		t.Fatalf("UpsertTranscript update: %v", err)
	}
	got, _ = repo.GetTranscript(ctx, "anon_user", "tab-1")
	if got.MessagesJSON != tr.MessagesJSON {
		t.Errorf("update did not stick: %s", got.MessagesJSON)
	}

	if err := repo.DeleteTranscript(ctx, "anon_user", "tab-1"); err != nil {
		t.Fatalf("DeleteTranscript: %v", err)
	}
	if got, _ := repo.GetTranscript(ctx, "anon_user", "tab-1"); got != nil {
		t.Errorf("transcript survived delete: %+v", got)
	}
}

func TestProfileActivationIsExclusive(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := &domain.ChildProfile{
		ChildID: "child-1", UserID: "anon_user", Name: "Sam",
		BirthYear: 2017, IsActive: true, CreatedAt: now,
	}
	if err := repo.UpsertProfile(ctx, first); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	second := &domain.ChildProfile{
		ChildID: "child-2", UserID: "anon_user", Name: "Riley",
		BirthYear: 2013, IsActive: true, CreatedAt: now,
	}
	if err := repo.UpsertProfile(ctx, second); err != nil {
		t.Fatalf("UpsertProfile second: %v", err)
	}

	active, err := repo.GetActiveProfile(ctx, "anon_user")
	if err != nil {
		t.Fatalf("GetActiveProfile: %v", err)
	}
	if active == nil || active.ChildID != "child-2" {
		t.Fatalf("active = %+v, want child-2", active)
	}
}

func TestLearnerUpsertAndGet(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	if got, err := repo.GetLearner(ctx, "nobody"); err != nil || got != nil {
		t.Fatalf("unknown learner: got %+v, err %v", got, err)
	}

	now := time.Now()
	l := &domain.Learner{
		UserID: "anon_abc", Username: "explorer-12345678",
		LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.UpsertLearner(ctx, l); err != nil {
		t.Fatalf("UpsertLearner: %v", err)
	}

	got, err := repo.GetLearner(ctx, "anon_abc")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got == nil || got.Username != "explorer-12345678" {
		t.Fatalf("got %+v", got)
	}
}
