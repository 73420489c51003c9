// Package calendar merges a user's personal, imported and application events
// into one chronological view and answers date and overlap queries against it.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuslink/backend/internal/storage/models"
)

// DefaultDuration is assumed for any item or query without an end.
const DefaultDuration = time.Hour

// Display colors used when a record has no explicit hint.
const (
	ColorPersonal    = "#2196F3"
	ColorImported    = "#9C27B0"
	ColorOwner       = "#FF9800"
	ColorParticipant = "#4CAF50"
)

// ItemKind identifies which source a CalendarItem came from.
type ItemKind int

const (
	KindPersonal ItemKind = iota
	KindImported
	KindAppEvent
)

func (k ItemKind) String() string {
	switch k {
	case KindPersonal:
		return "personal"
	case KindImported:
		return "imported"
	case KindAppEvent:
		return "app_event"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}

// MarshalText encodes the kind as its lowercase name.
func (k ItemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *ItemKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "personal":
		*k = KindPersonal
	case "imported":
		*k = KindImported
	case "app_event":
		*k = KindAppEvent
	default:
		return fmt.Errorf("unknown item kind %q", text)
	}
	return nil
}

// CalendarItem is the unified, read-only view of an event regardless of source.
// IDs are unique only within their source, so (Kind, ID) identifies an item.
type CalendarItem struct {
	Kind      ItemKind   `json:"kind"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Location  *string    `json:"location,omitempty"`
	ColorHint string     `json:"color_hint,omitempty"`

	// ExternalID is set for KindImported only.
	ExternalID string `json:"external_id,omitempty"`
	// IsOwner is meaningful for KindAppEvent only.
	IsOwner bool `json:"is_owner,omitempty"`
}

// EffectiveEnd returns the end used for overlap checks: End when present,
// otherwise Start plus DefaultDuration. An End before Start is clamped to Start.
func (it CalendarItem) EffectiveEnd() time.Time {
	return effectiveEnd(it.Start, it.End)
}

// Key returns an identifier unique across sources.
func (it CalendarItem) Key() string {
	return it.Kind.String() + ":" + it.ID
}

// MarshalJSON adds the computed effective end so clients need not repeat the default rule.
func (it CalendarItem) MarshalJSON() ([]byte, error) {
	type plain CalendarItem
	return json.Marshal(struct {
		plain
		EffectiveEnd time.Time `json:"effective_end"`
	}{plain(it), it.EffectiveEnd()})
}

func effectiveEnd(start time.Time, end *time.Time) time.Time {
	if end == nil {
		return start.Add(DefaultDuration)
	}
	if end.Before(start) {
		return start
	}
	return *end
}

// FromPersonal converts a personal record. Records carrying an external
// identifier become KindImported.
func FromPersonal(rec models.PersonalCalendarRecord) CalendarItem {
	item := CalendarItem{
		Kind:     KindPersonal,
		ID:       rec.ID,
		Title:    rec.Title,
		Start:    rec.Start,
		End:      rec.End,
		Location: rec.Location,
	}

	defaultColor := ColorPersonal
	if rec.IsImported() {
		item.Kind = KindImported
		item.ExternalID = *rec.ExternalID
		defaultColor = ColorImported
	}

	if rec.ColorHint != nil && *rec.ColorHint != "" {
		item.ColorHint = *rec.ColorHint
	} else {
		item.ColorHint = defaultColor
	}

	return item
}

// FromAppEvent converts an application event as seen by currentUserID.
func FromAppEvent(rec models.AppEventRecord, currentUserID string) CalendarItem {
	isOwner := rec.OwnerID == currentUserID

	color := ColorParticipant
	if isOwner {
		color = ColorOwner
	}

	return CalendarItem{
		Kind:      KindAppEvent,
		ID:        rec.ID,
		Title:     rec.Title,
		Start:     rec.Start,
		End:       rec.End,
		Location:  rec.LocationName,
		ColorHint: color,
		IsOwner:   isOwner,
	}
}
