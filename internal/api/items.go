package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/ledger"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ItemsHandler handles item listing and item-scoped ledger endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type createItemRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	TransactionType string   `json:"transaction_type"`
	PricePerHour    *float64 `json:"price_per_hour"`
	Quantity        *int     `json:"quantity"`
}

type repostRequest struct {
	Quantity *int `json:"quantity"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Category:        q.Get("category"),
		TransactionType: q.Get("transaction_type"),
	}
	if f.Category != "" && !model.ValidCategory(f.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if f.TransactionType != "" && !model.ValidTransactionType(f.TransactionType) {
		jsonError(w, http.StatusBadRequest, "invalid transaction type")
		return
	}

	items, err := store.ListActiveItems(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Mine handles GET /api/my-items.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	items, err := store.ListItemsByOwner(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list own items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "category must be car or motorbike")
		return
	}
	if !model.ValidTransactionType(req.TransactionType) {
		jsonError(w, http.StatusBadRequest, "transaction_type must be lend, give_away or exchange")
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty < 1 {
		jsonError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	// Only lend items carry countable stock.
	if req.TransactionType != model.TransactionLend {
		qty = 1
	}
	if req.PricePerHour != nil && *req.PricePerHour < 0 {
		jsonError(w, http.StatusBadRequest, "price_per_hour cannot be negative")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, &model.Item{
		OwnerID:         claims.UserID,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		TransactionType: req.TransactionType,
		PricePerHour:    req.PricePerHour,
		Quantity:        qty,
	})
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item created", "item", item.ID, "owner", claims.Username, "type", item.TransactionType)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Request handles POST /api/items/{id}/request.
func (h *ItemsHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var payload model.RequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Ledger.SubmitRequest(r.Context(), id, claims.UserID, payload)
	if err != nil {
		ledgerError(w, "submit_request", err)
		return
	}

	slog.Info("request submitted", "request", req.ID, "item", id, "requester", claims.Username)
	jsonResponse(w, http.StatusCreated, map[string]any{
		"id":      req.ID,
		"message": "request sent",
	})
}

// Repost handles POST /api/items/{id}/repost.
func (h *ItemsHandler) Repost(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req repostRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	item, err := h.Ledger.Repost(r.Context(), id, claims.UserID, req.Quantity)
	if err != nil {
		ledgerError(w, "repost", err)
		return
	}

	slog.Info("item reposted", "item", id, "quantity", item.Quantity)
	jsonResponse(w, http.StatusOK, item)
}

// CanRate handles GET /api/items/{id}/can-rate?user_id=N. Rating needs an
// accepted request between the two users over the item and no earlier
// rating.
func (h *ItemsHandler) CanRate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// Requesters rate the owner unless another user is named.
	ratedID := item.OwnerID
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, ok := parseID(v)
		if !ok {
			jsonError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		ratedID = id
	}

	can, reason, err := canRate(r, h.DB, claims.UserID, ratedID, itemID)
	if err != nil {
		slog.Error("failed to check rating eligibility", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"can_rate":      can,
		"reason":        reason,
		"rated_user_id": ratedID,
	})
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}

	item, err := h.Ledger.EditItem(r.Context(), id, claims.UserID, patch)
	if err != nil {
		ledgerError(w, "edit_item", err)
		return
	}

	slog.Info("item updated", "item", id, "owner", claims.Username)
	jsonResponse(w, http.StatusOK, item)
}
