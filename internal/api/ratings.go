package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// RatingsHandler handles user rating endpoints.
type RatingsHandler struct {
	DB *sql.DB
}

type createRatingRequest struct {
	RatedUserID int64  `json:"rated_user_id"`
	ItemID      int64  `json:"item_id"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
}

// Create handles POST /api/ratings.
func (h *RatingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createRatingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RatedUserID <= 0 || req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "rated_user_id and item_id required")
		return
	}
	if req.Rating < model.MinRating || req.Rating > model.MaxRating {
		jsonError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	can, reason, err := canRate(r, h.DB, claims.UserID, req.RatedUserID, req.ItemID)
	if err != nil {
		slog.Error("failed to check rating eligibility", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !can {
		jsonError(w, http.StatusBadRequest, reason)
		return
	}

	rating, err := store.CreateRating(r.Context(), h.DB, &model.Rating{
		RaterID:     claims.UserID,
		RatedUserID: req.RatedUserID,
		ItemID:      req.ItemID,
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	if err != nil {
		slog.Error("failed to create rating", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create rating")
		return
	}

	slog.Info("rating created", "rater", claims.Username, "rated", req.RatedUserID, "item", req.ItemID)
	jsonResponse(w, http.StatusCreated, rating)
}

// ListForUser handles GET /api/users/{id}/ratings.
func (h *RatingsHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
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

	ratings, err := store.ListRatingsForUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list ratings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list ratings")
		return
	}
	avg, count, err := store.AverageRating(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to average ratings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list ratings")
		return
	}

	if ratings == nil {
		ratings = []model.Rating{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"user_id":        id,
		"username":       user.Username,
		"average_rating": avg,
		"total_ratings":  count,
		"ratings":        ratings,
	})
}

// canRate reports whether rater may rate rated for the item, and if not, why.
func canRate(r *http.Request, db *sql.DB, raterID, ratedID, itemID int64) (bool, string, error) {
	if raterID == ratedID {
		return false, "cannot rate yourself", nil
	}

	done, err := store.HasAcceptedRequest(r.Context(), db, raterID, ratedID, itemID)
	if err != nil {
		return false, "", err
	}
	if !done {
		return false, "no completed transaction with this user for this item", nil
	}

	rated, err := store.HasRated(r.Context(), db, raterID, ratedID, itemID)
	if err != nil {
		return false, "", err
	}
	if rated {
		return false, "already rated", nil
	}
	return true, "", nil
}
