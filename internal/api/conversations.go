package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ConversationsHandler handles messaging endpoints.
type ConversationsHandler struct {
	DB *sql.DB
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type startConversationRequest struct {
	UserID  int64  `json:"user_id"`
	ItemID  *int64 `json:"item_id"`
	Content string `json:"content"`
}

// List handles GET /api/conversations.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	convs, err := store.ListConversations(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	jsonResponse(w, http.StatusOK, convs)
}

// Start handles POST /api/conversations, opening (or reusing) a conversation
// with another user and posting the first message.
func (h *ConversationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req startConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.UserID <= 0 || req.Content == "" {
		jsonError(w, http.StatusBadRequest, "user_id and content required")
		return
	}
	if req.UserID == claims.UserID {
		jsonError(w, http.StatusBadRequest, "cannot message yourself")
		return
	}

	other, err := store.GetUser(r.Context(), h.DB, req.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if other == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	conv, err := store.FindOrCreateConversation(r.Context(), h.DB, claims.UserID, req.UserID, req.ItemID)
	if err != nil {
		slog.Error("failed to open conversation", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}
	msg, err := store.CreateMessage(r.Context(), h.DB, conv.ID, claims.UserID, model.MessageText, req.Content)
	if err != nil {
		slog.Error("failed to send message", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"conversation": conv,
		"message":      msg,
	})
}

// Messages handles GET /api/conversations/{id}/messages. Reading marks the
// other participant's messages as read.
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	conv, ok := participantConversation(w, r, h.DB, claims.UserID)
	if !ok {
		return
	}

	msgs, err := store.ListMessages(r.Context(), h.DB, conv.ID)
	if err != nil {
		slog.Error("failed to list messages", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if err := store.MarkMessagesRead(r.Context(), h.DB, conv.ID, claims.UserID); err != nil {
		slog.Error("failed to mark messages read", "error", err)
	}

	if msgs == nil {
		msgs = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, msgs)
}

// Send handles POST /api/conversations/{id}/messages.
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	conv, ok := participantConversation(w, r, h.DB, claims.UserID)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonError(w, http.StatusBadRequest, "content required")
		return
	}

	msg, err := store.CreateMessage(r.Context(), h.DB, conv.ID, claims.UserID, model.MessageText, req.Content)
	if err != nil {
		slog.Error("failed to send message", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	jsonResponse(w, http.StatusCreated, msg)
}

// participantConversation loads the {id} conversation and checks that userID
// takes part in it, writing the error response when not.
func participantConversation(w http.ResponseWriter, r *http.Request, db *sql.DB, userID int64) (*model.Conversation, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid conversation id")
		return nil, false
	}

	conv, err := store.GetConversation(r.Context(), db, id)
	if err != nil {
		slog.Error("failed to get conversation", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if conv == nil {
		jsonError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if !conv.HasParticipant(userID) {
		jsonError(w, http.StatusForbidden, "not a participant in this conversation")
		return nil, false
	}
	return conv, true
}

// MarkRead handles POST /api/conversations/{id}/mark-read.
func (h *ConversationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	conv, ok := participantConversation(w, r, h.DB, claims.UserID)
	if !ok {
		return
	}

	if err := store.MarkMessagesRead(r.Context(), h.DB, conv.ID, claims.UserID); err != nil {
		slog.Error("failed to mark messages read", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}
	jsonMessage(w, http.StatusOK, "messages marked as read")
}

// UnreadCount handles GET /api/messages/count.
func (h *ConversationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := store.CountUnreadMessages(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to count unread messages", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to count messages")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"unread_count": n})
}

// EditMessage handles PUT /api/messages/{id}. Only the sender may edit, and
// system or deleted messages stay as they are.
func (h *ConversationsHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	msg, ok := h.ownMessage(w, r, claims.UserID)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonError(w, http.StatusBadRequest, "content required")
		return
	}
	if msg.Type == model.MessageSystem || msg.IsDeleted {
		jsonError(w, http.StatusBadRequest, "message cannot be edited")
		return
	}

	if err := store.EditMessage(r.Context(), h.DB, msg.ID, req.Content); err != nil {
		slog.Error("failed to edit message", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to edit message")
		return
	}
	updated, err := store.GetMessage(r.Context(), h.DB, msg.ID)
	if err != nil || updated == nil {
		slog.Error("failed to reload message", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// DeleteMessage handles DELETE /api/messages/{id}.
func (h *ConversationsHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	msg, ok := h.ownMessage(w, r, claims.UserID)
	if !ok {
		return
	}

	if err := store.DeleteMessage(r.Context(), h.DB, msg.ID); err != nil {
		slog.Error("failed to delete message", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	jsonMessage(w, http.StatusOK, "message deleted")
}

// ownMessage loads the {id} message and checks that userID sent it.
func (h *ConversationsHandler) ownMessage(w http.ResponseWriter, r *http.Request, userID int64) (*model.Message, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid message id")
		return nil, false
	}

	msg, err := store.GetMessage(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get message", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if msg == nil {
		jsonError(w, http.StatusNotFound, "message not found")
		return nil, false
	}
	if msg.SenderID != userID {
		jsonError(w, http.StatusForbidden, "you can only change your own messages")
		return nil, false
	}
	return msg, true
}
