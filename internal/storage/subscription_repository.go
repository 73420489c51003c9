package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campuslink/backend/internal/storage/models"
)

const subscriptionColumns = `id, user_id, name, url, sync_interval_min, last_sync_at, sync_status,
		       sync_error, enabled, created_at, updated_at`

// SubscriptionRepository provides data access for calendar feed subscriptions.
type SubscriptionRepository struct {
	BaseRepository
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.CalendarSubscription) error {
	sub.ID = GenerateID()
	sub.CreatedAt = r.Now()
	sub.UpdatedAt = sub.CreatedAt
	sub.SyncStatus = models.SyncStatusPending

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_subscriptions (
			id, user_id, name, url, sync_interval_min, sync_status, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID, sub.UserID, sub.Name, sub.URL, sub.SyncIntervalMin,
		sub.SyncStatus, sub.Enabled, sub.CreatedAt, sub.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}

	return nil
}

// GetByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.CalendarSubscription, error) {
	sub := &models.CalendarSubscription{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions WHERE id = ?
	`, id).Scan(
		&sub.ID, &sub.UserID, &sub.Name, &sub.URL, &sub.SyncIntervalMin,
		&sub.LastSyncAt, &sub.SyncStatus, &sub.SyncError,
		&sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription: %w", err)
	}

	return sub, nil
}

// ListByUser retrieves all subscriptions owned by a user.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.CalendarSubscription, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE user_id = ?
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	return r.scanSubscriptions(rows)
}

// ListEnabled retrieves all enabled subscriptions, least recently synced first.
func (r *SubscriptionRepository) ListEnabled(ctx context.Context) ([]models.CalendarSubscription, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE enabled = 1
		ORDER BY last_sync_at ASC NULLS FIRST
	`)
	if err != nil {
		return nil, fmt.Errorf("querying enabled subscriptions: %w", err)
	}
	defer rows.Close()

	return r.scanSubscriptions(rows)
}

func (r *SubscriptionRepository) scanSubscriptions(rows *sql.Rows) ([]models.CalendarSubscription, error) {
	var subs []models.CalendarSubscription
	for rows.Next() {
		var sub models.CalendarSubscription
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Name, &sub.URL, &sub.SyncIntervalMin,
			&sub.LastSyncAt, &sub.SyncStatus, &sub.SyncError,
			&sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSyncStatus records the outcome of a sync attempt.
func (r *SubscriptionRepository) UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error {
	now := time.Now().UTC()
	var lastSyncAt *time.Time
	if status == models.SyncStatusSuccess {
		lastSyncAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET
			sync_status = ?, sync_error = ?, last_sync_at = COALESCE(?, last_sync_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncAt, now, id)

	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}

// Delete removes a subscription owned by userID. Events it imported stay.
func (r *SubscriptionRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM calendar_subscriptions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: subscription %s", ErrNotFound, id)
	}

	return nil
}
