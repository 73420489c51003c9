package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/campuslink/backend/internal/storage/models"
)

// Aggregator merges a user's personal records and application events into
// one chronologically sorted list.
type Aggregator struct {
	personal  PersonalEventStore
	appEvents AppEventStore
}

// NewAggregator creates a new aggregator over the given stores.
func NewAggregator(personal PersonalEventStore, appEvents AppEventStore) *Aggregator {
	return &Aggregator{
		personal:  personal,
		appEvents: appEvents,
	}
}

// Aggregate returns every calendar item visible to userID, sorted by start.
// Items with equal starts keep source order: personal and imported items come
// before application events. A store failure aborts the call; an event ID that
// cannot be resolved is logged and skipped.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) ([]CalendarItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	records, err := a.personal.GetForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching personal events: %w", err)
	}

	events, err := a.resolveAppEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]CalendarItem, 0, len(records)+len(events))
	for _, rec := range records {
		items = append(items, FromPersonal(rec))
	}
	for _, ev := range events {
		items = append(items, FromAppEvent(ev, userID))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Start.Before(items[j].Start)
	})

	return items, nil
}

// resolveAppEvents returns the events userID joined or owns, each once.
func (a *Aggregator) resolveAppEvents(ctx context.Context, userID string) ([]models.AppEventRecord, error) {
	joined, err := a.appEvents.GetJoinedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching joined events: %w", err)
	}

	visible, err := a.appEvents.GetAllVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching visible events: %w", err)
	}

	owned := make(map[string]models.AppEventRecord)
	var ids []string
	seen := make(map[string]bool)
	for _, id := range joined {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, ev := range visible {
		if ev.OwnerID != userID {
			continue
		}
		owned[ev.ID] = ev
		if !seen[ev.ID] {
			seen[ev.ID] = true
			ids = append(ids, ev.ID)
		}
	}

	events := make([]models.AppEventRecord, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ev, ok := owned[id]; ok {
			events = append(events, ev)
			continue
		}

		ev, err := a.appEvents.GetByID(ctx, id)
		if err != nil {
			log.Printf("Warning: failed to resolve event %s for user %s: %v", id, userID, err)
			continue
		}
		if ev == nil {
			log.Printf("Warning: joined event %s for user %s no longer exists", id, userID)
			continue
		}
		events = append(events, *ev)
	}

	return events, nil
}
