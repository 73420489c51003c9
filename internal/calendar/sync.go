package calendar

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/campuslink/backend/internal/storage/models"
)

// SubscriptionStore is the subscription data the sync service needs.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id string) (*models.CalendarSubscription, error)
	ListEnabled(ctx context.Context) ([]models.CalendarSubscription, error)
	UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error
}

// Fetcher downloads calendar feeds.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a fetcher with the given request timeout and body size limit.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// Fetch downloads the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("calendar exceeds %d bytes", f.maxBytes)
	}

	return data, nil
}

// SyncService re-imports subscribed calendar feeds.
type SyncService struct {
	subs     SubscriptionStore
	calendar *Service
	fetcher  *Fetcher
}

// NewSyncService creates a new subscription sync service.
func NewSyncService(subs SubscriptionStore, calendar *Service, fetcher *Fetcher) *SyncService {
	return &SyncService{
		subs:     subs,
		calendar: calendar,
		fetcher:  fetcher,
	}
}

// SubscriptionSourceTag is the source tag given to records imported from a subscription.
func SubscriptionSourceTag(subscriptionID string) string {
	return "subscription:" + subscriptionID
}

// SyncSubscription fetches one subscription and imports it for its owner.
func (s *SyncService) SyncSubscription(ctx context.Context, subscriptionID string) (*models.ImportResult, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	if err := s.subs.UpdateSyncStatus(ctx, sub.ID, models.SyncStatusSyncing, nil); err != nil {
		log.Printf("Failed to update sync status: %v", err)
	}

	raw, err := s.fetcher.Fetch(ctx, sub.URL)
	if err != nil {
		return s.fail(ctx, sub, err)
	}

	result, _, err := s.calendar.Import(ctx, sub.UserID, raw, SubscriptionSourceTag(sub.ID))
	if err != nil {
		return s.fail(ctx, sub, err)
	}
	result.SubscriptionID = sub.ID

	if err := s.subs.UpdateSyncStatus(ctx, sub.ID, models.SyncStatusSuccess, nil); err != nil {
		log.Printf("Failed to update sync status: %v", err)
	}

	return result, nil
}

func (s *SyncService) fail(ctx context.Context, sub *models.CalendarSubscription, err error) (*models.ImportResult, error) {
	errMsg := err.Error()
	if uerr := s.subs.UpdateSyncStatus(ctx, sub.ID, models.SyncStatusError, &errMsg); uerr != nil {
		log.Printf("Failed to update sync status: %v", uerr)
	}

	return &models.ImportResult{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		SourceTag:      SubscriptionSourceTag(sub.ID),
		Error:          err,
		ImportedAt:     time.Now().UTC(),
	}, err
}

// SyncAllEnabled synchronizes every enabled subscription. One failing feed
// does not stop the others.
func (s *SyncService) SyncAllEnabled(ctx context.Context) ([]models.ImportResult, error) {
	subs, err := s.subs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled subscriptions: %w", err)
	}

	var results []models.ImportResult
	for _, sub := range subs {
		result, err := s.SyncSubscription(ctx, sub.ID)
		if err != nil {
			log.Printf("Error syncing subscription %s: %v", sub.ID, err)
			if result == nil {
				result = &models.ImportResult{
					UserID:         sub.UserID,
					SubscriptionID: sub.ID,
					Error:          err,
					ImportedAt:     time.Now().UTC(),
				}
			}
		}
		results = append(results, *result)
	}

	return results, nil
}
