package plaid

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCodeMutationDuringPagination is returned when the feed changed while a
// pass was paging. The pass must restart from its starting cursor.
const ErrorCodeMutationDuringPagination = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorType  string `json:"error_type"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"error_message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("plaid API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("plaid API error (status %d): %s %s - %s", e.StatusCode, e.ErrorType, e.ErrorCode, e.Message)
}

// Transient reports whether retrying the same pass later may succeed.
func (e *APIError) Transient() bool {
	if e.ErrorCode == ErrorCodeMutationDuringPagination {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NetworkError wraps a failure to reach the upstream API at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "plaid request failed: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Transient() bool { return true }

// IsTransient reports whether err (or anything it wraps) is a transient
// upstream failure.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}
