package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// userID returns the {userId} path variable, or writes a 400 and returns false.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["userId"])
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "User ID is required")
		return "", false
	}
	return id, true
}

// writeCalendarError maps calendar errors to HTTP responses.
func writeCalendarError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, calendar.ErrInvalidUserID):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "User ID is required")
	case errors.Is(err, calendar.ErrEmptyImport):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "The calendar contains no importable events")
	case errors.Is(err, calendar.ErrForeignRecord):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "The import contains records of another user")
	case errors.Is(err, calendar.ErrNothingToExport):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "The calendar has no events")
	default:
		log.Printf("%s: %v", fallback, err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, fallback)
	}
}
