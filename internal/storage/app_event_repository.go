package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuslink/backend/internal/storage/models"
)

// AppEventRepository provides read access to application events and their
// participants. Events are written by the events feature, not the calendar.
type AppEventRepository struct {
	BaseRepository
}

// NewAppEventRepository creates a new app event repository.
func NewAppEventRepository(db *DB) *AppEventRepository {
	return &AppEventRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// GetJoinedIDs returns the IDs of the events userID has joined.
func (r *AppEventRepository) GetJoinedIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT event_id FROM app_event_participants
		WHERE user_id = ?
		ORDER BY joined_at, event_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying joined events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning event ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetAllVisible returns every application event that is visible in listings.
func (r *AppEventRepository) GetAllVisible(ctx context.Context) ([]models.AppEventRecord, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, title, start_at, end_at, location_name, owner_id, created_at, updated_at
		FROM app_events
		WHERE visible = 1
		ORDER BY start_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying visible events: %w", err)
	}
	defer rows.Close()

	var events []models.AppEventRecord
	for rows.Next() {
		var ev models.AppEventRecord
		if err := rows.Scan(
			&ev.ID, &ev.Title, &ev.Start, &ev.End, &ev.LocationName,
			&ev.OwnerID, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning app event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetByID retrieves an application event by ID, visible or not.
// Returns nil, nil when no such event exists.
func (r *AppEventRepository) GetByID(ctx context.Context, id string) (*models.AppEventRecord, error) {
	ev := &models.AppEventRecord{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, title, start_at, end_at, location_name, owner_id, created_at, updated_at
		FROM app_events WHERE id = ?
	`, id).Scan(
		&ev.ID, &ev.Title, &ev.Start, &ev.End, &ev.LocationName,
		&ev.OwnerID, &ev.CreatedAt, &ev.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying app event: %w", err)
	}

	return ev, nil
}
