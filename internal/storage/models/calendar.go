// Package models contains the domain models for the application.
package models

import (
	"time"
)

// CalendarSubscription represents an external iCal feed a user re-imports on a schedule.
type CalendarSubscription struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	SyncIntervalMin int        `json:"sync_interval_min"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	SyncStatus      string     `json:"sync_status"`
	SyncError       *string    `json:"sync_error,omitempty"`
	Enabled         bool       `json:"enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SyncStatus constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// ImportResult contains the results of reconciling one import batch.
type ImportResult struct {
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	SourceTag      string    `json:"source_tag"`
	EventsFound    int       `json:"events_found"`
	Replaced       int       `json:"replaced"`
	Inserted       int       `json:"inserted"`
	FailedDeletes  int       `json:"failed_deletes"`
	Error          error     `json:"-"`
	ImportedAt     time.Time `json:"imported_at"`
}
