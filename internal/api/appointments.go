package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/notify"
	"github.com/erazemk/izposoja/internal/store"
)

// How far ahead confirmed appointments are reminded of.
const reminderWindow = 30 * time.Minute

// appointmentTimeLayout formats times in conversation messages.
const appointmentTimeLayout = "January 2, 2006 at 3:04 PM"

// AppointmentsHandler handles scheduling meetings between requesters and
// owners. Changes are announced in the pair's conversation.
type AppointmentsHandler struct {
	DB       *sql.DB
	Messages *notify.Conversations
}

type createAppointmentRequest struct {
	ItemID      int64     `json:"item_id"`
	Time        time.Time `json:"appointment_time"`
	Location    string    `json:"location"`
	LocationLat *float64  `json:"location_lat"`
	LocationLng *float64  `json:"location_lng"`
	Notes       string    `json:"notes"`
}

type appointmentStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/appointments.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	appts, err := store.ListAppointmentsForUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list appointments", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	jsonResponse(w, http.StatusOK, appts)
}

// Create handles POST /api/appointments. The caller requests a meeting with
// the item's owner.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, req.ItemID)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.OwnerID == claims.UserID {
		jsonError(w, http.StatusBadRequest, "cannot schedule an appointment with yourself")
		return
	}

	h.create(w, r, claims, item, claims.UserID, req)
}

// ListForConversation handles GET /api/conversations/{id}/appointments.
func (h *AppointmentsHandler) ListForConversation(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	conv, ok := participantConversation(w, r, h.DB, claims.UserID)
	if !ok {
		return
	}

	appts, err := store.ListAppointmentsBetween(r.Context(), h.DB, conv.User1ID, conv.User2ID)
	if err != nil {
		slog.Error("failed to list appointments", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	jsonResponse(w, http.StatusOK, appts)
}

// CreateForConversation handles POST /api/conversations/{id}/appointments.
// The appointment is about the conversation's item; whichever participant
// does not own it is the requester.
func (h *AppointmentsHandler) CreateForConversation(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	conv, ok := participantConversation(w, r, h.DB, claims.UserID)
	if !ok {
		return
	}
	if conv.ItemID == nil {
		jsonError(w, http.StatusBadRequest, "conversation is not about an item")
		return
	}

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, *conv.ItemID)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if !conv.HasParticipant(item.OwnerID) {
		jsonError(w, http.StatusBadRequest, "item owner is not in this conversation")
		return
	}

	h.create(w, r, claims, item, conv.OtherParticipant(item.OwnerID), req)
}

func (h *AppointmentsHandler) create(w http.ResponseWriter, r *http.Request, claims *auth.Claims, item *model.Item, requesterID int64, req createAppointmentRequest) {
	req.Location = strings.TrimSpace(req.Location)
	if req.Time.IsZero() || req.Location == "" {
		jsonError(w, http.StatusBadRequest, "appointment_time and location required")
		return
	}
	if !req.Time.After(time.Now()) {
		jsonError(w, http.StatusBadRequest, "appointment_time must be in the future")
		return
	}

	appt, err := store.CreateAppointment(r.Context(), h.DB, &model.Appointment{
		ItemID:      item.ID,
		RequesterID: requesterID,
		OwnerID:     item.OwnerID,
		Time:        req.Time.UTC().Truncate(time.Second),
		Location:    req.Location,
		LocationLat: req.LocationLat,
		LocationLng: req.LocationLng,
		Notes:       req.Notes,
	})
	if err != nil {
		slog.Error("failed to create appointment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	h.announce(r.Context(), appt, claims.UserID,
		fmt.Sprintf("%s scheduled an appointment for %s at %s", claims.Username, formatAppointmentTime(appt.Time), appt.Location))
	slog.Info("appointment scheduled", "appointment", appt.ID, "item", item.ID, "user", claims.Username)
	jsonResponse(w, http.StatusCreated, appt)
}

// SetStatus handles PUT /api/appointments/{id}/status. Only the owner
// decides.
func (h *AppointmentsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	appt, ok := h.participantAppointment(w, r, claims.UserID)
	if !ok {
		return
	}
	if appt.OwnerID != claims.UserID {
		jsonError(w, http.StatusForbidden, "only the owner can change the appointment status")
		return
	}

	var req appointmentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidAppointmentStatus(req.Status) {
		jsonError(w, http.StatusBadRequest, "status must be confirmed, cancelled or completed")
		return
	}

	if err := store.SetAppointmentStatus(r.Context(), h.DB, appt.ID, req.Status); err != nil {
		slog.Error("failed to set appointment status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	appt.Status = req.Status

	h.announce(r.Context(), appt, claims.UserID,
		fmt.Sprintf("%s %s the appointment on %s", claims.Username, req.Status, formatAppointmentTime(appt.Time)))
	jsonResponse(w, http.StatusOK, appt)
}

// Update handles PUT /api/appointments/{id}.
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	appt, ok := h.participantAppointment(w, r, claims.UserID)
	if !ok {
		return
	}

	var patch model.AppointmentPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Time != nil {
		if !patch.Time.After(time.Now()) {
			jsonError(w, http.StatusBadRequest, "appointment_time must be in the future")
			return
		}
		t := patch.Time.Truncate(time.Second)
		patch.Time = &t
	}
	if patch.Location != nil {
		loc := strings.TrimSpace(*patch.Location)
		if loc == "" {
			jsonError(w, http.StatusBadRequest, "location cannot be empty")
			return
		}
		patch.Location = &loc
	}

	patch.Apply(appt)
	if err := store.UpdateAppointment(r.Context(), h.DB, appt); err != nil {
		slog.Error("failed to update appointment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	updated, err := store.GetAppointment(r.Context(), h.DB, appt.ID)
	if err != nil || updated == nil {
		slog.Error("failed to reload appointment", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.announce(r.Context(), updated, claims.UserID,
		fmt.Sprintf("%s updated the appointment to %s at %s", claims.Username, formatAppointmentTime(updated.Time), updated.Location))
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/appointments/{id}.
func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	appt, ok := h.participantAppointment(w, r, claims.UserID)
	if !ok {
		return
	}

	if err := store.DeleteAppointment(r.Context(), h.DB, appt.ID); err != nil {
		slog.Error("failed to delete appointment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}

	h.announce(r.Context(), appt, claims.UserID,
		fmt.Sprintf("%s cancelled the appointment on %s", claims.Username, formatAppointmentTime(appt.Time)))
	jsonMessage(w, http.StatusOK, "appointment cancelled")
}

// Reminders handles GET /api/appointments/reminders. Each due reminder is
// returned once.
func (h *AppointmentsHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	due, err := store.ClaimDueReminders(r.Context(), h.DB, claims.UserID, time.Now(), reminderWindow)
	if err != nil {
		slog.Error("failed to claim reminders", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load reminders")
		return
	}
	if due == nil {
		due = []model.Appointment{}
	}
	jsonResponse(w, http.StatusOK, due)
}

// participantAppointment loads the {id} appointment and checks that userID
// takes part in it.
func (h *AppointmentsHandler) participantAppointment(w http.ResponseWriter, r *http.Request, userID int64) (*model.Appointment, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid appointment id")
		return nil, false
	}

	appt, err := store.GetAppointment(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get appointment", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if appt == nil {
		jsonError(w, http.StatusNotFound, "appointment not found")
		return nil, false
	}
	if !appt.HasParticipant(userID) {
		jsonError(w, http.StatusForbidden, "not a participant in this appointment")
		return nil, false
	}
	return appt, true
}

// announce posts a system message about the appointment. The change stands
// even if the message cannot be written.
func (h *AppointmentsHandler) announce(ctx context.Context, appt *model.Appointment, actorID int64, content string) {
	itemID := appt.ItemID
	if err := h.Messages.Post(ctx, appt.OwnerID, appt.RequesterID, &itemID, actorID, content); err != nil {
		slog.Error("failed to post appointment message", "appointment", appt.ID, "error", err)
	}
}

func formatAppointmentTime(t time.Time) string {
	return t.UTC().Format(appointmentTimeLayout)
}
