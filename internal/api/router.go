// Package api serves the marketplace JSON API.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/ledger"
	"github.com/erazemk/izposoja/internal/notify"
)

// Login attempts allowed per client address, refilling one per minute.
const loginBurst = 5

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, l *ledger.Ledger, messages *notify.Conversations, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{DB: db, Ledger: l}
	requestsHandler := &RequestsHandler{DB: db, Ledger: l}
	conversationsHandler := &ConversationsHandler{DB: db}
	ratingsHandler := &RatingsHandler{DB: db}
	profileHandler := &ProfileHandler{DB: db}
	appointmentsHandler := &AppointmentsHandler{DB: db, Messages: messages}

	authMW := AuthMiddleware(jwtSecret, db)
	loginLimiter := newClientLimiter(time.Minute, loginBurst)

	// Public.
	mux.HandleFunc("GET /api/health", health(db))
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.Handle("POST /api/auth/login", loginLimiter.middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("GET /api/users/{id}", profileHandler.Public)

	// Account.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/profile", authMW(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PUT /api/profile", authMW(http.HandlerFunc(profileHandler.Update)))

	// Items.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("GET /api/my-items", authMW(http.HandlerFunc(itemsHandler.Mine)))
	mux.Handle("POST /api/items/{id}/request", authMW(http.HandlerFunc(itemsHandler.Request)))
	mux.Handle("POST /api/items/{id}/repost", authMW(http.HandlerFunc(itemsHandler.Repost)))
	mux.Handle("GET /api/items/{id}/can-rate", authMW(http.HandlerFunc(itemsHandler.CanRate)))

	// Requests.
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("GET /api/requests/count", authMW(http.HandlerFunc(requestsHandler.Count)))
	mux.Handle("POST /api/requests/{id}/respond", authMW(http.HandlerFunc(requestsHandler.Respond)))
	mux.Handle("PUT /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Update)))
	mux.Handle("DELETE /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Cancel)))

	// Conversations.
	mux.Handle("GET /api/conversations", authMW(http.HandlerFunc(conversationsHandler.List)))
	mux.Handle("POST /api/conversations", authMW(http.HandlerFunc(conversationsHandler.Start)))
	mux.Handle("GET /api/conversations/{id}/messages", authMW(http.HandlerFunc(conversationsHandler.Messages)))
	mux.Handle("POST /api/conversations/{id}/messages", authMW(http.HandlerFunc(conversationsHandler.Send)))
	mux.Handle("POST /api/conversations/{id}/mark-read", authMW(http.HandlerFunc(conversationsHandler.MarkRead)))
	mux.Handle("GET /api/messages/count", authMW(http.HandlerFunc(conversationsHandler.UnreadCount)))
	mux.Handle("PUT /api/messages/{id}", authMW(http.HandlerFunc(conversationsHandler.EditMessage)))
	mux.Handle("DELETE /api/messages/{id}", authMW(http.HandlerFunc(conversationsHandler.DeleteMessage)))

	// Appointments.
	mux.Handle("GET /api/appointments", authMW(http.HandlerFunc(appointmentsHandler.List)))
	mux.Handle("POST /api/appointments", authMW(http.HandlerFunc(appointmentsHandler.Create)))
	mux.Handle("GET /api/appointments/reminders", authMW(http.HandlerFunc(appointmentsHandler.Reminders)))
	mux.Handle("PUT /api/appointments/{id}", authMW(http.HandlerFunc(appointmentsHandler.Update)))
	mux.Handle("DELETE /api/appointments/{id}", authMW(http.HandlerFunc(appointmentsHandler.Delete)))
	mux.Handle("PUT /api/appointments/{id}/status", authMW(http.HandlerFunc(appointmentsHandler.SetStatus)))
	mux.Handle("GET /api/conversations/{id}/appointments", authMW(http.HandlerFunc(appointmentsHandler.ListForConversation)))
	mux.Handle("POST /api/conversations/{id}/appointments", authMW(http.HandlerFunc(appointmentsHandler.CreateForConversation)))

	// Ratings.
	mux.Handle("POST /api/ratings", authMW(http.HandlerFunc(ratingsHandler.Create)))
	mux.Handle("GET /api/users/{id}/ratings", authMW(http.HandlerFunc(ratingsHandler.ListForUser)))

	return mux
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
