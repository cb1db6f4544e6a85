package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orbitlearn/ollie/internal/domain"
	"github.com/orbitlearn/ollie/internal/identity"
)

type profileRequest struct {
	Name      string `json:"name"`
	BirthYear int    `json:"birth_year,omitempty"`
}

type profileResponse struct {
	ChildID   string          `json:"child_id"`
	Name      string          `json:"name"`
	BirthYear int             `json:"birth_year,omitempty"`
	AgeGroup  domain.AgeGroup `json:"age_group"`
	IsActive  bool            `json:"is_active"`
}

// HandleProfileCreate handles POST /api/profile: creates a child profile
// and activates it, deactivating any previous active profile. The age
// group in the response drives content difficulty for tool generation.
func (h *Handler) HandleProfileCreate(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	now := time.Now()
	if req.BirthYear != 0 && (req.BirthYear < 1900 || req.BirthYear > now.Year()) {
		Error(w, http.StatusBadRequest, "birth_year is out of range")
		return
	}

	p := &domain.ChildProfile{
		ChildID:   uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		BirthYear: req.BirthYear,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := h.repo.UpsertProfile(r.Context(), p); err != nil {
		slog.Error("failed to save child profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	JSON(w, http.StatusCreated, profileResponse{
		ChildID:   p.ChildID,
		Name:      p.Name,
		BirthYear: p.BirthYear,
		AgeGroup:  p.AgeGroupAt(now),
		IsActive:  true,
	})
}

// HandleProfileGet handles GET /api/profile: returns the active child
// profile, or 404 when none has been created.
func (h *Handler) HandleProfileGet(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.repo.GetActiveProfile(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load child profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "no active profile")
		return
	}

	JSON(w, http.StatusOK, profileResponse{
		ChildID:   p.ChildID,
		Name:      p.Name,
		BirthYear: p.BirthYear,
		AgeGroup:  p.AgeGroupAt(time.Now()),
		IsActive:  p.IsActive,
	})
}
