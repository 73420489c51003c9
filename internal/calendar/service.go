package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campuslink/backend/internal/storage/models"
)

// Snapshot is one aggregation pass over a user's calendar.
type Snapshot struct {
	UserID   string
	Items    []CalendarItem
	Index    DateIndex
	LoadedAt time.Time
}

// Service runs loads and imports for users. Work for one user is serialized,
// so a load never observes an import between its delete and insert phases,
// and concurrent loads for the same user share one aggregation.
type Service struct {
	aggregator *Aggregator
	dedup      *Deduplicator
	parser     ImportParser
	loc        *time.Location

	loads singleflight.Group

	mu    sync.Mutex
	users map[string]*userLock

	// Now is overridable in tests.
	Now func() time.Time
}

// NewService creates a calendar service. loc is the timezone dates are
// bucketed in; nil means time.Local.
func NewService(personal PersonalEventStore, appEvents AppEventStore, parser ImportParser, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		aggregator: NewAggregator(personal, appEvents),
		dedup:      NewDeduplicator(personal),
		parser:     parser,
		loc:        loc,
		users:      make(map[string]*userLock),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Location returns the timezone used for date bucketing.
func (s *Service) Location() *time.Location {
	return s.loc
}

// userLock serializes work for one user. refs counts holders and waiters so
// the entry can be dropped once nobody needs it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// lockUser blocks until the user's lock is held and returns its release func.
func (s *Service) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.users[userID]
	if !ok {
		l = &userLock{}
		s.users[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.users, userID)
		}
		s.mu.Unlock()
	}
}

// lockedUsers returns how many users currently have a lock entry.
func (s *Service) lockedUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Load aggregates a user's calendar and indexes it by date.
//
// Concurrent loads for one user share a single aggregation. The shared run is
// detached from any one caller's cancellation; a caller whose ctx ends stops
// waiting and gets ctx.Err() while the others still receive the snapshot.
func (s *Service) Load(ctx context.Context, userID string) (*Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	shared := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(userID, func() (any, error) {
		unlock := s.lockUser(userID)
		defer unlock()

		return s.load(shared, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// load must be called with the user's lock held.
func (s *Service) load(ctx context.Context, userID string) (*Snapshot, error) {
	items, err := s.aggregator.Aggregate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregating calendar: %w", err)
	}

	return &Snapshot{
		UserID:   userID,
		Items:    items,
		Index:    BuildIndex(items, s.loc),
		LoadedAt: s.Now(),
	}, nil
}

// Import parses raw, reconciles it against the user's previous imports and
// reloads the calendar, all while holding the user's lock.
func (s *Service) Import(ctx context.Context, userID string, raw []byte, sourceTag string) (*models.ImportResult, *Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, ErrInvalidUserID
	}
	if sourceTag == "" {
		sourceTag = models.SourceTagImported
	}

	records, err := s.parser.Parse(raw, userID, sourceTag)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing import: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmptyImport
	}

	unlock := s.lockUser(userID)
	defer unlock()

	report, err := s.dedup.ReconcileWithReport(ctx, userID, records)
	if err != nil {
		return nil, nil, fmt.Errorf("reconciling import: %w", err)
	}

	result := &models.ImportResult{
		UserID:        userID,
		SourceTag:     sourceTag,
		EventsFound:   report.Received,
		Replaced:      report.Replaced,
		Inserted:      report.Inserted,
		FailedDeletes: report.FailedDeletes,
		ImportedAt:    s.Now(),
	}

	snap, err := s.load(ctx, userID)
	if err != nil {
		return result, nil, err
	}

	return result, snap, nil
}

// Conflicts loads the user's calendar and returns the items overlapping [start, end).
func (s *Service) Conflicts(ctx context.Context, userID string, start time.Time, end *time.Time) ([]Conflict, error) {
	snap, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FindConflicts(snap.Items, start, end), nil
}
