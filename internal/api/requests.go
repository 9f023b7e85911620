package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/ledger"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// RequestsHandler handles transaction request endpoints.
type RequestsHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type respondRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	received, err := store.ListReceivedRequests(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list received requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	sent, err := store.ListSentRequests(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list sent requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}

	if received == nil {
		received = []model.TransactionRequest{}
	}
	if sent == nil {
		sent = []model.TransactionRequest{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"received": received,
		"sent":     sent,
	})
}

// Count handles GET /api/requests/count.
func (h *RequestsHandler) Count(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := store.CountPendingReceived(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to count requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to count requests")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"pending_received": n})
}

// Respond handles POST /api/requests/{id}/respond.
func (h *RequestsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Ledger.Respond(r.Context(), id, claims.UserID, req.Status)
	if err != nil {
		ledgerError(w, "respond", err)
		return
	}

	slog.Info("request decided", "request", id, "status", updated.Status, "owner", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "request " + updated.Status,
		"request": updated,
	})
}

// Update handles PUT /api/requests/{id}.
func (h *RequestsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var patch model.RequestPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Ledger.EditRequest(r.Context(), id, claims.UserID, patch)
	if err != nil {
		ledgerError(w, "edit_request", err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "request updated",
		"request": updated,
	})
}

// Cancel handles DELETE /api/requests/{id}.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	if err := h.Ledger.CancelRequest(r.Context(), id, claims.UserID); err != nil {
		ledgerError(w, "cancel_request", err)
		return
	}

	slog.Info("request cancelled", "request", id, "requester", claims.Username)
	jsonMessage(w, http.StatusOK, "request cancelled")
}
