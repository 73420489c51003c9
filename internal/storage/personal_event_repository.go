package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuslink/backend/internal/storage/models"
)

const personalEventColumns = `id, user_id, title, start_at, end_at, location, color_hint,
		       source_tag, external_id, created_at, updated_at`

// PersonalEventRepository provides data access for personal calendar records.
type PersonalEventRepository struct {
	BaseRepository
}

// NewPersonalEventRepository creates a new personal event repository.
func NewPersonalEventRepository(db *DB) *PersonalEventRepository {
	return &PersonalEventRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a single personal record, assigning its ID and timestamps.
func (r *PersonalEventRepository) Create(ctx context.Context, rec *models.PersonalCalendarRecord) error {
	rec.ID = GenerateID()
	rec.CreatedAt = r.Now()
	rec.UpdatedAt = rec.CreatedAt

	if err := insertPersonalEvent(ctx, r.DB(), rec); err != nil {
		return fmt.Errorf("inserting personal event: %w", err)
	}

	return nil
}

// Save inserts a batch of personal records in a single transaction.
// Records without an ID are given one; the caller's slice is not modified.
func (r *PersonalEventRepository) Save(ctx context.Context, records []models.PersonalCalendarRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := r.Now()
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			if rec.ID == "" {
				rec.ID = GenerateID()
			}
			rec.CreatedAt = now
			rec.UpdatedAt = now

			if err := insertPersonalEvent(ctx, tx, &rec); err != nil {
				return fmt.Errorf("inserting personal event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func insertPersonalEvent(ctx context.Context, q Queryable, rec *models.PersonalCalendarRecord) error {
	sourceTag := rec.SourceTag
	if sourceTag == "" {
		sourceTag = models.SourceTagManual
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO personal_events (
			id, user_id, title, start_at, end_at, location, color_hint,
			source_tag, external_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.UserID, rec.Title, rec.Start.UTC(), utcPtr(rec.End),
		rec.Location, rec.ColorHint, sourceTag, rec.ExternalID,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// GetByID retrieves a personal record by ID, scoped to its owner.
func (r *PersonalEventRepository) GetByID(ctx context.Context, id, userID string) (*models.PersonalCalendarRecord, error) {
	rec := &models.PersonalCalendarRecord{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT `+personalEventColumns+`
		FROM personal_events WHERE id = ? AND user_id = ?
	`, id, userID).Scan(
		&rec.ID, &rec.UserID, &rec.Title, &rec.Start, &rec.End, &rec.Location,
		&rec.ColorHint, &rec.SourceTag, &rec.ExternalID, &rec.CreatedAt, &rec.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying personal event: %w", err)
	}

	return rec, nil
}

// GetForUser retrieves all personal records owned by a user, earliest first.
func (r *PersonalEventRepository) GetForUser(ctx context.Context, userID string) ([]models.PersonalCalendarRecord, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+personalEventColumns+`
		FROM personal_events
		WHERE user_id = ?
		ORDER BY start_at, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying personal events: %w", err)
	}
	defer rows.Close()

	var records []models.PersonalCalendarRecord
	for rows.Next() {
		var rec models.PersonalCalendarRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Title, &rec.Start, &rec.End, &rec.Location,
			&rec.ColorHint, &rec.SourceTag, &rec.ExternalID, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning personal event: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Update rewrites the editable fields of a personal record.
func (r *PersonalEventRepository) Update(ctx context.Context, rec *models.PersonalCalendarRecord) error {
	rec.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE personal_events SET
			title = ?, start_at = ?, end_at = ?, location = ?, color_hint = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		rec.Title, rec.Start.UTC(), utcPtr(rec.End), rec.Location, rec.ColorHint,
		rec.UpdatedAt, rec.ID, rec.UserID,
	)

	if err != nil {
		return fmt.Errorf("updating personal event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: personal event %s", ErrNotFound, rec.ID)
	}

	return nil
}

// Delete removes a personal record owned by userID.
func (r *PersonalEventRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM personal_events WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting personal event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: personal event %s", ErrNotFound, id)
	}

	return nil
}

// CountForUser returns how many personal records a user owns.
func (r *PersonalEventRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM personal_events WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting personal events: %w", err)
	}
	return n, nil
}
