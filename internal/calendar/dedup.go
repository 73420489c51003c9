package calendar

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/campuslink/backend/internal/storage"
	"github.com/campuslink/backend/internal/storage/models"
)

// Deduplicator replaces previously imported occurrences of an event when the
// same external calendar is imported again.
type Deduplicator struct {
	store PersonalEventStore
}

// NewDeduplicator creates a new deduplicator over the personal store.
func NewDeduplicator(store PersonalEventStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	Received      int
	Replaced      int
	Inserted      int
	FailedDeletes int
}

// Reconcile deletes the user's records whose external ID appears in
// newRecords and then inserts newRecords as one batch. Records without an
// external ID are never deleted.
func (d *Deduplicator) Reconcile(ctx context.Context, userID string, newRecords []models.PersonalCalendarRecord) error {
	_, err := d.ReconcileWithReport(ctx, userID, newRecords)
	return err
}

// ReconcileWithReport is Reconcile with counts of what changed.
func (d *Deduplicator) ReconcileWithReport(ctx context.Context, userID string, newRecords []models.PersonalCalendarRecord) (ReconcileReport, error) {
	report := ReconcileReport{Received: len(newRecords)}

	if strings.TrimSpace(userID) == "" {
		return report, ErrInvalidUserID
	}

	batch, err := prepareBatch(userID, newRecords)
	if err != nil {
		return report, err
	}

	incoming := make(map[string]bool)
	for _, rec := range batch {
		if rec.IsImported() {
			incoming[*rec.ExternalID] = true
		}
	}

	if len(incoming) > 0 {
		existing, err := d.store.GetForUser(ctx, userID)
		if err != nil {
			return report, fmt.Errorf("fetching existing events: %w", err)
		}

		for _, rec := range existing {
			if !rec.IsImported() || !incoming[*rec.ExternalID] {
				continue
			}
			if err := d.store.Delete(ctx, rec.ID, userID); err != nil {
				log.Printf("Warning: failed to delete stale import %s (externalId: %s): %v", rec.ID, *rec.ExternalID, err)
				report.FailedDeletes++
				continue
			}
			report.Replaced++
		}
	}

	if err := d.store.Save(ctx, batch); err != nil {
		return report, fmt.Errorf("saving imported events: %w", err)
	}
	report.Inserted = len(batch)

	if report.Replaced > 0 || report.FailedDeletes > 0 {
		log.Printf("Reconciled import for user %s: %d received, %d replaced, %d inserted, %d failed deletes",
			userID, report.Received, report.Replaced, report.Inserted, report.FailedDeletes)
	}

	return report, nil
}

// prepareBatch copies newRecords, stamps the owner, assigns missing IDs and
// keeps only the last record for each repeated external ID.
func prepareBatch(userID string, newRecords []models.PersonalCalendarRecord) ([]models.PersonalCalendarRecord, error) {
	lastIndex := make(map[string]int)
	for i, rec := range newRecords {
		if rec.UserID != "" && rec.UserID != userID {
			return nil, fmt.Errorf("%w: %s", ErrForeignRecord, rec.ID)
		}
		if rec.IsImported() {
			lastIndex[*rec.ExternalID] = i
		}
	}

	batch := make([]models.PersonalCalendarRecord, 0, len(newRecords))
	for i, rec := range newRecords {
		if rec.IsImported() && lastIndex[*rec.ExternalID] != i {
			log.Printf("Warning: import batch repeats externalId %s, keeping the last occurrence", *rec.ExternalID)
			continue
		}
		rec.UserID = userID
		if rec.ID == "" {
			rec.ID = storage.GenerateID()
		}
		if rec.ExternalID != nil && *rec.ExternalID == "" {
			rec.ExternalID = nil
		}
		batch = append(batch, rec)
	}

	return batch, nil
}
