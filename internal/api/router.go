// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"github.com/gorilla/mux"

	"github.com/campuslink/backend/internal/api/handlers"
	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/storage"
)

// Options carries the services the router hands to its handlers.
// Scheduler may be nil, in which case subscriptions are not scheduled.
type Options struct {
	Calendar               *calendar.Service
	SyncService            *calendar.SyncService
	Scheduler              *calendar.Scheduler
	MaxImportBytes         int64
	DefaultSyncIntervalMin int
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(db *storage.DB, opts Options) *mux.Router {
	personal := storage.NewPersonalEventRepository(db)
	subscriptions := storage.NewSubscriptionRepository(db)

	r := mux.NewRouter()
	r.NotFoundHandler = middleware.NotFound()
	r.MethodNotAllowedHandler = middleware.MethodNotAllowed()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	var feedScheduler handlers.FeedScheduler
	if opts.Scheduler != nil {
		feedScheduler = opts.Scheduler
	}
	api.HandleFunc("/health", handlers.HealthCheck(db, feedScheduler)).Methods("GET")

	user := api.PathPrefix("/users/{userId}").Subrouter()

	// Merged calendar
	user.HandleFunc("/calendar", handlers.GetCalendar(opts.Calendar)).Methods("GET")
	user.HandleFunc("/calendar/dates", handlers.ListCalendarDates(opts.Calendar)).Methods("GET")
	user.HandleFunc("/calendar.ics", handlers.ExportCalendar(opts.Calendar)).Methods("GET")
	user.HandleFunc("/calendar/import", handlers.ImportCalendar(opts.Calendar, opts.MaxImportBytes)).Methods("POST")
	user.HandleFunc("/calendar/conflicts", handlers.CheckConflicts(opts.Calendar)).Methods("POST")
	user.HandleFunc("/calendar/conflicts", handlers.ListConflictPairs(opts.Calendar)).Methods("GET")

	// Personal events
	user.HandleFunc("/events", handlers.CreateEvent(personal, opts.Calendar)).Methods("POST")
	user.HandleFunc("/events/{id}", handlers.UpdateEvent(personal, opts.Calendar)).Methods("PUT")
	user.HandleFunc("/events/{id}", handlers.DeleteEvent(personal)).Methods("DELETE")

	// Subscriptions
	user.HandleFunc("/subscriptions", handlers.ListSubscriptions(subscriptions)).Methods("GET")
	user.HandleFunc("/subscriptions", handlers.CreateSubscription(subscriptions, opts.Scheduler, opts.DefaultSyncIntervalMin)).Methods("POST")
	user.HandleFunc("/subscriptions/{id}", handlers.DeleteSubscription(subscriptions, opts.Scheduler)).Methods("DELETE")
	user.HandleFunc("/subscriptions/{id}/sync", handlers.SyncSubscription(subscriptions, opts.SyncService)).Methods("POST")

	return r
}
