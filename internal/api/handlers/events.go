package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/storage"
	"github.com/campuslink/backend/internal/storage/models"
)

// Personal event request/response types

type EventRequest struct {
	Title     string     `json:"title"`
	Start     *time.Time `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Location  *string    `json:"location,omitempty"`
	ColorHint *string    `json:"color_hint,omitempty"`
}

type EventResponse struct {
	Item      calendar.CalendarItem `json:"item"`
	Conflicts []calendar.Conflict   `json:"conflicts"`
}

func (req *EventRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return "title is required"
	case req.Start == nil:
		return "start is required"
	case req.End != nil && req.End.Before(*req.Start):
		return "end must not be before start"
	}
	return ""
}

func (req *EventRequest) apply(rec *models.PersonalCalendarRecord) {
	rec.Title = req.Title
	rec.Start = req.Start.Truncate(time.Second)
	rec.End = nil
	if req.End != nil {
		end := req.End.Truncate(time.Second)
		rec.End = &end
	}
	rec.Location = req.Location
	rec.ColorHint = req.ColorHint
}

// CreateEvent adds a manual personal event and reports what it clashes with.
func CreateEvent(repo *storage.PersonalEventRepository, svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		rec := &models.PersonalCalendarRecord{
			UserID:    uid,
			SourceTag: models.SourceTagManual,
		}
		req.apply(rec)

		if err := repo.Create(r.Context(), rec); err != nil {
			log.Printf("Failed to create personal event: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create event")
			return
		}

		writeJSON(w, http.StatusCreated, eventResponse(r, svc, *rec))
	}
}

// UpdateEvent rewrites a manual personal event. Imported events change only
// by re-importing their calendar.
func UpdateEvent(repo *storage.PersonalEventRepository, svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		rec, err := repo.GetByID(ctx, id, uid)
		if err != nil {
			log.Printf("Failed to load personal event %s: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load event")
			return
		}
		if rec == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}
		if rec.IsImported() {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Imported events are changed by re-importing their calendar")
			return
		}

		req.apply(rec)
		if err := repo.Update(ctx, rec); err != nil {
			log.Printf("Failed to update personal event %s: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update event")
			return
		}

		writeJSON(w, http.StatusOK, eventResponse(r, svc, *rec))
	}
}

// DeleteEvent removes a personal event, manual or imported.
func DeleteEvent(repo *storage.PersonalEventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		id := mux.Vars(r)["id"]

		if err := repo.Delete(r.Context(), id, uid); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
				return
			}
			log.Printf("Failed to delete personal event %s: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete event")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// eventResponse reloads the calendar and lists the other items overlapping rec.
// A failed reload still returns the saved item.
func eventResponse(r *http.Request, svc *calendar.Service, rec models.PersonalCalendarRecord) EventResponse {
	item := calendar.FromPersonal(rec)
	response := EventResponse{Item: item, Conflicts: []calendar.Conflict{}}

	snap, err := svc.Load(r.Context(), rec.UserID)
	if err != nil {
		log.Printf("Warning: failed to reload calendar for conflict check: %v", err)
		return response
	}

	others := make([]calendar.CalendarItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		if it.Key() != item.Key() {
			others = append(others, it)
		}
	}
	if conflicts := calendar.FindConflicts(others, item.Start, item.End); conflicts != nil {
		response.Conflicts = conflicts
	}

	return response
}
