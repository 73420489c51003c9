package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/storage"
	"github.com/campuslink/backend/internal/storage/models"
)

// Subscription request/response types

type CreateSubscriptionRequest struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	SyncIntervalMin int    `json:"sync_interval_min"`
	Enabled         *bool  `json:"enabled,omitempty"`
}

// minSyncIntervalMin keeps feeds from being polled more often than every 5 minutes.
const minSyncIntervalMin = 5

// ListSubscriptions returns the calendar feeds a user subscribes to.
func ListSubscriptions(repo *storage.SubscriptionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		subs, err := repo.ListByUser(r.Context(), uid)
		if err != nil {
			log.Printf("Failed to list subscriptions: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query subscriptions")
			return
		}
		if subs == nil {
			subs = []models.CalendarSubscription{}
		}

		writeJSON(w, http.StatusOK, subs)
	}
}

// CreateSubscription adds a calendar feed and schedules it when enabled.
// scheduler may be nil.
func CreateSubscription(repo *storage.SubscriptionRepository, scheduler *calendar.Scheduler, defaultIntervalMin int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req CreateSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.URL == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name and URL are required")
			return
		}
		if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "URL must be an http or https address")
			return
		}

		if req.SyncIntervalMin <= 0 {
			req.SyncIntervalMin = defaultIntervalMin
		}
		if req.SyncIntervalMin < minSyncIntervalMin {
			req.SyncIntervalMin = minSyncIntervalMin
		}

		sub := &models.CalendarSubscription{
			UserID:          uid,
			Name:            req.Name,
			URL:             req.URL,
			SyncIntervalMin: req.SyncIntervalMin,
			Enabled:         req.Enabled == nil || *req.Enabled,
		}
		if err := repo.Create(r.Context(), sub); err != nil {
			log.Printf("Failed to create subscription: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create subscription")
			return
		}

		if scheduler != nil && sub.Enabled {
			scheduler.Schedule(*sub)
		}

		writeJSON(w, http.StatusCreated, sub)
	}
}

// DeleteSubscription removes a feed. Events it already imported stay in the calendar.
func DeleteSubscription(repo *storage.SubscriptionRepository, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		id := mux.Vars(r)["id"]

		if err := repo.Delete(r.Context(), id, uid); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Subscription not found")
				return
			}
			log.Printf("Failed to delete subscription %s: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete subscription")
			return
		}

		if scheduler != nil {
			scheduler.Unschedule(id)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SyncSubscription fetches and imports a feed immediately.
func SyncSubscription(repo *storage.SubscriptionRepository, syncService *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		sub, err := repo.GetByID(ctx, id)
		if err != nil {
			log.Printf("Failed to load subscription %s: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load subscription")
			return
		}
		if sub == nil || sub.UserID != uid {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Subscription not found")
			return
		}

		result, err := syncService.SyncSubscription(ctx, id)
		if err != nil {
			if errors.Is(err, calendar.ErrEmptyImport) {
				writeCalendarError(w, err, "")
				return
			}
			middleware.WriteErrorWithDetails(w, http.StatusBadGateway, middleware.ErrUpstream, "Failed to sync subscription", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
