package calendar

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campuslink/backend/internal/storage/models"
)

// fakePersonalStore is an in-memory PersonalEventStore that records calls.
type fakePersonalStore struct {
	mu sync.Mutex

	records []models.PersonalCalendarRecord

	getErr    error
	saveErr   error
	deleteErr map[string]error

	getCalls   int
	saveCalls  int
	deletedIDs []string
}

func newFakePersonalStore(records ...models.PersonalCalendarRecord) *fakePersonalStore {
	return &fakePersonalStore{
		records:   records,
		deleteErr: make(map[string]error),
	}
}

func (f *fakePersonalStore) GetForUser(ctx context.Context, userID string) ([]models.PersonalCalendarRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}

	var out []models.PersonalCalendarRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakePersonalStore) Save(ctx context.Context, records []models.PersonalCalendarRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakePersonalStore) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.deleteErr[id]; err != nil {
		return err
	}
	for i, rec := range f.records {
		if rec.ID == id && rec.UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			f.deletedIDs = append(f.deletedIDs, id)
			return nil
		}
	}
	return fmt.Errorf("personal event not found: %s", id)
}

func (f *fakePersonalStore) forUser(userID string) []models.PersonalCalendarRecord {
	recs, _ := f.GetForUser(context.Background(), userID)
	return recs
}

// fakeAppEventStore is an in-memory AppEventStore.
type fakeAppEventStore struct {
	mu sync.Mutex

	events  map[string]models.AppEventRecord
	hidden  map[string]bool
	joined  map[string][]string
	lookErr map[string]error

	joinedErr  error
	visibleErr error

	lookups []string
}

func newFakeAppEventStore() *fakeAppEventStore {
	return &fakeAppEventStore{
		events:  make(map[string]models.AppEventRecord),
		hidden:  make(map[string]bool),
		joined:  make(map[string][]string),
		lookErr: make(map[string]error),
	}
}

func (f *fakeAppEventStore) add(ev models.AppEventRecord) {
	f.events[ev.ID] = ev
}

func (f *fakeAppEventStore) GetJoinedIDs(ctx context.Context, userID string) ([]string, error) {
	if f.joinedErr != nil {
		return nil, f.joinedErr
	}
	return f.joined[userID], nil
}

func (f *fakeAppEventStore) GetAllVisible(ctx context.Context) ([]models.AppEventRecord, error) {
	if f.visibleErr != nil {
		return nil, f.visibleErr
	}
	var out []models.AppEventRecord
	for id, ev := range f.events {
		if !f.hidden[id] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeAppEventStore) GetByID(ctx context.Context, id string) (*models.AppEventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups = append(f.lookups, id)
	if err := f.lookErr[id]; err != nil {
		return nil, err
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// monday is 2024-01-08, a Monday.
func monday(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2024-01-08T"+clock+":00Z")
	if err != nil {
		t.Fatalf("parsing clock %q: %v", clock, err)
	}
	return ts
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}

func manualRecord(t *testing.T, id, userID, title, start, end string) models.PersonalCalendarRecord {
	t.Helper()
	rec := models.PersonalCalendarRecord{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Start:     monday(t, start),
		SourceTag: models.SourceTagManual,
	}
	if end != "" {
		rec.End = timePtr(monday(t, end))
	}
	return rec
}

func importedRecord(t *testing.T, externalID, title, start string) models.PersonalCalendarRecord {
	t.Helper()
	return models.PersonalCalendarRecord{
		Title:      title,
		Start:      monday(t, start),
		SourceTag:  models.SourceTagImported,
		ExternalID: strPtr(externalID),
	}
}
