// Package profile resolves the child-profile generation context.
package profile

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/store"
)

// Resolver derives the tool-generation context from the user's active
// child profile. Resolution never fails: storage errors and missing
// profiles both yield the default reference, so generation proceeds with
// age-neutral content rather than blocking on profile state.
type Resolver struct {
	repo store.Repository
	now  func() time.Time
}

// NewResolver wires a resolver over the repository. A nil repository is
// allowed and always resolves the default.
func NewResolver(repo store.Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolve returns the generation context for one user.
func (r *Resolver) Resolve(ctx context.Context, userID string) domain.ProfileRef {
	if r.repo == nil || userID == "" {
		return domain.DefaultProfileRef()
	}

	p, err := r.repo.GetActiveProfile(ctx, userID)
	if err != nil {
		slog.Warn("profile resolution failed, using default", "user_id", userID, "error", err)
		return domain.DefaultProfileRef()
	}
	if p == nil {
		return domain.DefaultProfileRef()
	}

	return domain.ProfileRef{
		ChildID:  p.ChildID,
		AgeGroup: p.AgeGroupAt(r.now()),
	}
}
