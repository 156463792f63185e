package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the envelope every API error uses: a stable
// machine-readable code in error, prose in message, and optional
// details for validation feedback.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// writeBody serializes payload under the given status code. Encode errors
// are swallowed: the status line is already on the wire by then, so there
// is nothing better to send.
func writeBody(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteJSON writes a JSON success response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	writeBody(w, statusCode, payload)
}

// WriteError emits the standard error envelope.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes an error response carrying extra context,
// typically which field failed validation
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	writeBody(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// Shorthands for the common rejections.

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// LockedResponse is the 423 body: the standard error shape plus a
// machine-readable wait so clients need not parse the message text.
type LockedResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingMinutes int    `json:"remaining_minutes"`
}

// WriteLocked writes a 423 response for temporarily locked accounts.
// retryAfterMinutes is surfaced in the body and, in seconds, in the
// Retry-After header.
func WriteLocked(w http.ResponseWriter, message string, retryAfterMinutes int) {
	if retryAfterMinutes > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterMinutes*60))
	}
	writeBody(w, http.StatusLocked, LockedResponse{
		Error:            "account_locked",
		Message:          message,
		RemainingMinutes: retryAfterMinutes,
	})
}
