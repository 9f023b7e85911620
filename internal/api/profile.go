package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ProfileHandler handles the caller's own profile and public user profiles.
type ProfileHandler struct {
	DB *sql.DB
}

// publicProfile is what other users see. It leaves out the email address.
type publicProfile struct {
	ID            int64        `json:"id"`
	Username      string       `json:"username"`
	Phone         string       `json:"phone,omitempty"`
	Address       string       `json:"address,omitempty"`
	AverageRating float64      `json:"average_rating"`
	TotalRatings  int          `json:"total_ratings"`
	Items         []model.Item `json:"items"`
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var patch model.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Username != nil {
		v := strings.TrimSpace(*patch.Username)
		if v == "" {
			jsonError(w, http.StatusBadRequest, "username cannot be empty")
			return
		}
		patch.Username = &v
	}
	if patch.Email != nil {
		v := strings.TrimSpace(*patch.Email)
		if err := model.ValidateEmail(v); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Email = &v
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	patch.Apply(user)
	taken, err := store.UserTakenByOther(r.Context(), h.DB, user.ID, user.Username, user.Email)
	if err != nil {
		slog.Error("failed to check existing user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if taken {
		jsonError(w, http.StatusBadRequest, "username or email already exists")
		return
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, user); err != nil {
		slog.Error("failed to update profile", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	slog.Info("profile updated", "user", user.Username)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "profile updated",
		"user":    user,
	})
}

// Public handles GET /api/users/{id}. It needs no session.
func (h *ProfileHandler) Public(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	avg, count, err := store.AverageRating(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to average ratings", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items, err := store.ListActiveItems(r.Context(), h.DB, store.ItemFilter{OwnerID: id})
	if err != nil {
		slog.Error("failed to list user items", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	jsonResponse(w, http.StatusOK, publicProfile{
		ID:            user.ID,
		Username:      user.Username,
		Phone:         user.Phone,
		Address:       user.Address,
		AverageRating: avg,
		TotalRatings:  count,
		Items:         items,
	})
}
