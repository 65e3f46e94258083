package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/domain/user"
	"ledgersync/internal/shared/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, item.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, item.ErrItemNotFound),
		errors.Is(err, transaction.ErrTransactionNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, transaction.ErrInvalidFilter),
		errors.Is(err, user.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, item.ErrItemInactive),
		errors.Is(err, user.ErrUsernameTaken):
		return http.StatusConflict
	case ledgersync.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Server-side and upstream
// errors are logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		log.Printf("Upstream unavailable handling %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Upstream unavailable, try again later", status)
	case http.StatusInternalServerError:
		log.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, internalMsg, status)
	default:
		http.Error(w, err.Error(), status)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}
