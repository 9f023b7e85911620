package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/izposoja/internal/ledger"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"message": message})
}

// jsonMessage writes a JSON success message.
func jsonMessage(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"message": message})
}

// ledgerError maps a ledger failure to a response. Errors without a ledger
// kind are logged and reported as a generic internal error.
func ledgerError(w http.ResponseWriter, op string, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		slog.Error("ledger operation failed", "op", op, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch le.Kind {
	case ledger.KindNotFound:
		jsonError(w, http.StatusNotFound, le.Error())
	case ledger.KindAuthorization:
		jsonError(w, http.StatusForbidden, le.Error())
	default:
		jsonError(w, http.StatusBadRequest, le.Error())
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {name} path value as an ID.
func pathID(r *http.Request, name string) (int64, bool) {
	return parseID(r.PathValue(name))
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
