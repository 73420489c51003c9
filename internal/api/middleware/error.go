// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
)

// Error codes carried in the "error" field of every error response.
const (
	ErrNotFound         = "not_found"
	ErrBadRequest       = "bad_request"
	ErrConflict         = "conflict"
	ErrInternalError    = "internal_error"
	ErrValidation       = "validation_error"
	ErrPayloadTooLarge  = "payload_too_large"
	ErrUpstream         = "upstream_error"
	ErrMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes a JSON error response with additional details,
// such as the upstream failure of a subscription sync.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
		Details: details,
	})
	if err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// NotFound answers requests that match no route with the JSON envelope.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "No such endpoint: "+r.URL.Path)
	})
}

// MethodNotAllowed answers a known path requested with the wrong method.
func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed, r.Method+" is not supported on "+r.URL.Path)
	})
}

// ErrorRecovery turns a panicking handler into a 500 response.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered in %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
