package calendar

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/campuslink/backend/internal/storage/models"
)

// Syncer is what the scheduler runs for each subscription.
type Syncer interface {
	SyncSubscription(ctx context.Context, subscriptionID string) (*models.ImportResult, error)
}

// SubscriptionLister lists the subscriptions that should be scheduled.
type SubscriptionLister interface {
	ListEnabled(ctx context.Context) ([]models.CalendarSubscription, error)
}

// Scheduler manages periodic subscription sync jobs.
type Scheduler struct {
	cron   *cron.Cron
	syncer Syncer
	subs   SubscriptionLister

	jobs   map[string]scheduledJob
	jobsMu sync.RWMutex

	defaultIntervalMin int
}

type scheduledJob struct {
	entryID     cron.EntryID
	intervalMin int
}

// NewScheduler creates a new subscription sync scheduler.
func NewScheduler(syncer Syncer, subs SubscriptionLister, defaultIntervalMin int) *Scheduler {
	if defaultIntervalMin <= 0 {
		defaultIntervalMin = 60
	}

	return &Scheduler{
		cron:               cron.New(),
		syncer:             syncer,
		subs:               subs,
		jobs:               make(map[string]scheduledJob),
		defaultIntervalMin: defaultIntervalMin,
	}
}

// Start schedules all enabled subscriptions and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Println("Starting subscription sync scheduler...")

	subs, err := s.subs.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		s.Schedule(sub)
	}

	// Picks up subscriptions created, disabled or deleted through the API.
	if _, err := s.cron.AddFunc("@every 5m", func() {
		s.refreshSchedules(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Subscription scheduler started with %d subscriptions", len(subs))

	return nil
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() {
	log.Println("Stopping subscription sync scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Subscription scheduler stopped")
}

// Schedule adds or updates a subscription's sync job.
func (s *Scheduler) Schedule(sub models.CalendarSubscription) {
	if !sub.Enabled {
		s.Unschedule(sub.ID)
		return
	}

	intervalMin := sub.SyncIntervalMin
	if intervalMin <= 0 {
		intervalMin = s.defaultIntervalMin
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if existing, ok := s.jobs[sub.ID]; ok {
		if existing.intervalMin == intervalMin {
			return
		}
		s.cron.Remove(existing.entryID)
		delete(s.jobs, sub.ID)
	}

	id, name := sub.ID, sub.Name
	entryID, err := s.cron.AddFunc(minutesToCronSpec(intervalMin), func() {
		s.sync(id, name)
	})
	if err != nil {
		log.Printf("Failed to schedule subscription %s: %v", sub.ID, err)
		return
	}

	s.jobs[sub.ID] = scheduledJob{entryID: entryID, intervalMin: intervalMin}
	log.Printf("Scheduled subscription %s (%s) every %d minutes", sub.ID, sub.Name, intervalMin)
}

// Unschedule removes a subscription from the sync schedule.
func (s *Scheduler) Unschedule(subscriptionID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if job, ok := s.jobs[subscriptionID]; ok {
		s.cron.Remove(job.entryID)
		delete(s.jobs, subscriptionID)
		log.Printf("Unscheduled subscription %s", subscriptionID)
	}
}

func (s *Scheduler) sync(subscriptionID, name string) {
	log.Printf("Syncing subscription: %s (%s)", subscriptionID, name)

	result, err := s.syncer.SyncSubscription(context.Background(), subscriptionID)
	if err != nil {
		log.Printf("Subscription sync failed for %s: %v", subscriptionID, err)
		return
	}

	log.Printf("Subscription sync completed for %s: %d events, %d replaced, %d inserted",
		subscriptionID, result.EventsFound, result.Replaced, result.Inserted)
}

func (s *Scheduler) refreshSchedules(ctx context.Context) {
	subs, err := s.subs.ListEnabled(ctx)
	if err != nil {
		log.Printf("Failed to refresh subscription schedules: %v", err)
		return
	}

	current := make(map[string]bool, len(subs))
	for _, sub := range subs {
		current[sub.ID] = true
		s.Schedule(sub)
	}

	s.jobsMu.Lock()
	for id, job := range s.jobs {
		if !current[id] {
			s.cron.Remove(job.entryID)
			delete(s.jobs, id)
			log.Printf("Removed schedule for subscription %s (no longer enabled)", id)
		}
	}
	s.jobsMu.Unlock()
}

func minutesToCronSpec(minutes int) string {
	return "@every " + (time.Duration(minutes) * time.Minute).String()
}

// Scheduled returns the IDs of the subscriptions with a sync job.
func (s *Scheduler) Scheduled() []string {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// NextRun returns when a subscription is next synced, or nil if it is not
// scheduled or the scheduler has not started.
func (s *Scheduler) NextRun(subscriptionID string) *time.Time {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	if job, ok := s.jobs[subscriptionID]; ok {
		entry := s.cron.Entry(job.entryID)
		if !entry.Next.IsZero() {
			return &entry.Next
		}
	}
	return nil
}
