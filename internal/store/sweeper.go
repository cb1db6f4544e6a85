package store

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = 15 * time.Minute

// StartSweeper runs a background goroutine that periodically removes
// expired quota rows and idle transcripts. Quota expiry in storage is
// purely hygiene: expired rows already read as zero.
func StartSweeper(ctx context.Context, repo Repository, quotaWindow, transcriptTTL time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("store sweeper started", "interval", sweepInterval,
			"quota_window", quotaWindow, "transcript_ttl", transcriptTTL)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, repo, quotaWindow, transcriptTTL)
			case <-ctx.Done():
				slog.Info("store sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, repo Repository, quotaWindow, transcriptTTL time.Duration) {
	if n, err := repo.DeleteExpiredQuota(ctx, quotaWindow); err != nil {
		slog.Error("sweeper failed to delete expired quota rows", "error", err)
	} else if n > 0 {
		slog.Info("sweeper removed expired quota rows", "count", n)
	}

	if n, err := repo.CleanupIdleTranscripts(ctx, transcriptTTL); err != nil {
		slog.Error("sweeper failed to cleanup idle transcripts", "error", err)
	} else if n > 0 {
		slog.Info("sweeper removed idle transcripts", "count", n)
	}
}
