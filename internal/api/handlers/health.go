// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"log"
	"net/http"

	"github.com/campuslink/backend/internal/storage"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status              string `json:"status"`
	DBConnected         bool   `json:"db_connected"`
	SchemaVersion       string `json:"schema_version,omitempty"`
	ScheduledFeedsCount int    `json:"scheduled_feeds_count"`
}

// FeedScheduler reports which subscriptions have a sync job.
type FeedScheduler interface {
	Scheduled() []string
}

// HealthCheck returns a handler that performs a health check. scheduler may be nil.
func HealthCheck(db *storage.DB, scheduler FeedScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}
		if dbConnected {
			version, err := db.SchemaVersion(r.Context())
			if err != nil {
				log.Printf("Warning: health check could not read schema version: %v", err)
			}
			response.SchemaVersion = version
		}
		if scheduler != nil {
			response.ScheduledFeedsCount = len(scheduler.Scheduled())
		}

		writeJSON(w, code, response)
	}
}
