package models

import (
	"time"
)

// PersonalCalendarRecord is a user-owned calendar entry, either typed in by
// the user or produced by an import.
type PersonalCalendarRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	Location   *string    `json:"location,omitempty"`
	ColorHint  *string    `json:"color_hint,omitempty"`
	SourceTag  string     `json:"source_tag"`
	ExternalID *string    `json:"external_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Source tag constants
const (
	SourceTagManual   = "manual"
	SourceTagImported = "imported"
)

// IsImported returns true if the record carries an external identifier.
func (r *PersonalCalendarRecord) IsImported() bool {
	return r.ExternalID != nil && *r.ExternalID != ""
}

// ExternalKey returns the external identifier or an empty string.
func (r *PersonalCalendarRecord) ExternalKey() string {
	if r.ExternalID == nil {
		return ""
	}
	return *r.ExternalID
}

// AppEventRecord is an application event. It is owned and mutated by the
// events feature; the calendar only reads it.
type AppEventRecord struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Start        time.Time  `json:"start"`
	End          *time.Time `json:"end,omitempty"`
	LocationName *string    `json:"location_name,omitempty"`
	OwnerID      string     `json:"owner_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
