package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/store"
)

type fakeProfileRepo struct {
	store.Repository // unimplemented methods panic if reached

	profile *domain.ChildProfile
	err     error
}

func (f *fakeProfileRepo) GetActiveProfile(context.Context, string) (*domain.ChildProfile, error) {
	return f.profile, f.err
}

func TestResolveActiveProfile(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(&fakeProfileRepo{profile: &domain.ChildProfile{
		ChildID:   "child-1",
		UserID:    "u1",
		Name:      "Mia",
		BirthYear: 2019, // age 7
		IsActive:  true,
	}})
	r.now = func() time.Time { return now }

	ref := r.Resolve(context.Background(), "u1")
	if ref.ChildID != "child-1" {
		t.Errorf("ChildID = %q", ref.ChildID)
	}
	if ref.AgeGroup != domain.AgeGroupYoung {
		t.Errorf("AgeGroup = %q, want YOUNG", ref.AgeGroup)
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    *Resolver
	}{
		{"nil repository", NewResolver(nil)},
		{"no profile", NewResolver(&fakeProfileRepo{})},
		{"storage error", NewResolver(&fakeProfileRepo{err: errors.New("disk gone")})},
		{"unknown birth year", NewResolver(&fakeProfileRepo{profile: &domain.ChildProfile{ChildID: "c2"}})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref := tc.r.Resolve(context.Background(), "u1")
			if ref.AgeGroup != domain.AgeGroupOlder {
				t.Errorf("AgeGroup = %q, want OLDER", ref.AgeGroup)
			}
		})
	}
}
