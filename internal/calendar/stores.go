package calendar

import (
	"context"
	"errors"

	"github.com/campuslink/backend/internal/storage/models"
)

var (
	// ErrInvalidUserID is returned when a call is made with a blank user ID.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrForeignRecord is returned when an import batch holds another user's record.
	ErrForeignRecord = errors.New("record belongs to another user")
	// ErrEmptyImport is returned when an import payload yields no events.
	ErrEmptyImport = errors.New("import contains no events")
	// ErrNothingToExport is returned when exporting an empty calendar.
	ErrNothingToExport = errors.New("calendar has no items to export")
)

// PersonalEventStore persists a user's personal calendar records.
type PersonalEventStore interface {
	GetForUser(ctx context.Context, userID string) ([]models.PersonalCalendarRecord, error)
	Save(ctx context.Context, records []models.PersonalCalendarRecord) error
	Delete(ctx context.Context, id, userID string) error
}

// AppEventStore reads application events. GetByID returns nil, nil when the
// event does not exist.
type AppEventStore interface {
	GetJoinedIDs(ctx context.Context, userID string) ([]string, error)
	GetAllVisible(ctx context.Context) ([]models.AppEventRecord, error)
	GetByID(ctx context.Context, id string) (*models.AppEventRecord, error)
}

// ImportParser turns an external calendar payload into personal records, each
// carrying the source format's stable per-event identifier as ExternalID.
type ImportParser interface {
	Parse(raw []byte, userID, sourceTag string) ([]models.PersonalCalendarRecord, error)
}
