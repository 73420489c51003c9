package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/storage/models"
)

// Calendar request/response types

type CalendarResponse struct {
	UserID   string                  `json:"user_id"`
	Date     *calendar.DateKey       `json:"date,omitempty"`
	Items    []calendar.CalendarItem `json:"items"`
	Dates    []calendar.DateKey      `json:"dates,omitempty"`
	LoadedAt time.Time               `json:"loaded_at"`
}

type DatesResponse struct {
	UserID   string             `json:"user_id"`
	Timezone string             `json:"timezone"`
	Dates    []calendar.DateKey `json:"dates"`
}

type ImportResponse struct {
	Result     *models.ImportResult `json:"result"`
	TotalItems int                  `json:"total_items"`
}

type ConflictCheckRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

type ConflictCheckResponse struct {
	HasConflict bool                `json:"has_conflict"`
	Conflicts   []calendar.Conflict `json:"conflicts"`
}

// GetCalendar returns the merged calendar of a user, or the items on one
// date when ?date=YYYY-MM-DD is given.
func GetCalendar(svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var date *calendar.DateKey
		if raw := r.URL.Query().Get("date"); raw != "" {
			key, err := calendar.ParseDateKey(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "date must be YYYY-MM-DD")
				return
			}
			date = &key
		}

		snap, err := svc.Load(r.Context(), uid)
		if err != nil {
			writeCalendarError(w, err, "Failed to load calendar")
			return
		}

		response := CalendarResponse{
			UserID:   uid,
			Date:     date,
			LoadedAt: snap.LoadedAt,
		}
		if date != nil {
			response.Items = snap.Index.ItemsOnDate(*date)
		} else {
			response.Items = snap.Items
			response.Dates = snap.Index.DatesWithItems()
		}
		if response.Items == nil {
			response.Items = []calendar.CalendarItem{}
		}

		writeJSON(w, http.StatusOK, response)
	}
}

// ListCalendarDates returns the dates on which a user has at least one item.
func ListCalendarDates(svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		snap, err := svc.Load(r.Context(), uid)
		if err != nil {
			writeCalendarError(w, err, "Failed to load calendar")
			return
		}

		dates := snap.Index.DatesWithItems()
		if dates == nil {
			dates = []calendar.DateKey{}
		}

		writeJSON(w, http.StatusOK, DatesResponse{
			UserID:   uid,
			Timezone: svc.Location().String(),
			Dates:    dates,
		})
	}
}

// ExportCalendar writes the merged calendar as text/calendar.
func ExportCalendar(svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		snap, err := svc.Load(r.Context(), uid)
		if err != nil {
			writeCalendarError(w, err, "Failed to load calendar")
			return
		}

		var buf bytes.Buffer
		if err := calendar.EncodeICS(&buf, snap.Items, snap.LoadedAt); err != nil {
			writeCalendarError(w, err, "Failed to export calendar")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
		w.Write(buf.Bytes())
	}
}

// ImportCalendar reconciles an uploaded .ics body into the user's calendar.
// Re-importing the same file replaces the earlier copies of its events.
func ImportCalendar(svc *calendar.Service, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		body := r.Body
		if maxBytes > 0 {
			body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				middleware.WriteError(w, http.StatusRequestEntityTooLarge, middleware.ErrPayloadTooLarge, "Calendar file is too large")
				return
			}
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Failed to read request body")
			return
		}

		sourceTag := r.URL.Query().Get("source_tag")
		result, snap, err := svc.Import(r.Context(), uid, raw, sourceTag)
		if err != nil {
			writeCalendarError(w, err, "Failed to import calendar")
			return
		}

		writeJSON(w, http.StatusOK, ImportResponse{
			Result:     result,
			TotalItems: len(snap.Items),
		})
	}
}

// CheckConflicts returns the items overlapping a proposed time range.
func CheckConflicts(svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req ConflictCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.Start == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start is required")
			return
		}

		conflicts, err := svc.Conflicts(r.Context(), uid, *req.Start, req.End)
		if err != nil {
			writeCalendarError(w, err, "Failed to check conflicts")
			return
		}
		if conflicts == nil {
			conflicts = []calendar.Conflict{}
		}

		writeJSON(w, http.StatusOK, ConflictCheckResponse{
			HasConflict: len(conflicts) > 0,
			Conflicts:   conflicts,
		})
	}
}

// ListConflictPairs returns every pair of overlapping items in the user's calendar.
func ListConflictPairs(svc *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		snap, err := svc.Load(r.Context(), uid)
		if err != nil {
			writeCalendarError(w, err, "Failed to load calendar")
			return
		}

		pairs := calendar.ConflictPairs(snap.Items)
		if pairs == nil {
			pairs = []calendar.ConflictPair{}
		}

		writeJSON(w, http.StatusOK, pairs)
	}
}
