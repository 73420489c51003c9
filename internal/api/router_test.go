package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/campuslink/backend/internal/api/handlers"
	"github.com/campuslink/backend/internal/api/middleware"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/storage"
	"github.com/campuslink/backend/internal/storage/models"
)

const timetableICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Timetable//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lecture-1@uni.example\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240108T090000Z\r\n" +
	"DTEND:20240108T103000Z\r\n" +
	"SUMMARY:Linear Algebra\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const emptyICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//Empty//EN\r\nEND:VCALENDAR\r\n"

type testServer struct {
	t         *testing.T
	handler   http.Handler
	scheduler *calendar.Scheduler
}

func newTestServer(t *testing.T, maxImportBytes int64) *testServer {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewDB returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}

	subs := storage.NewSubscriptionRepository(db)
	svc := calendar.NewService(
		storage.NewPersonalEventRepository(db),
		storage.NewAppEventRepository(db),
		calendar.NewICSParser(time.UTC),
		time.UTC,
	)
	syncService := calendar.NewSyncService(subs, svc, calendar.NewFetcher(5*time.Second, 1<<20))
	scheduler := calendar.NewScheduler(syncService, subs, 60)

	router := NewRouter(db, Options{
		Calendar:               svc,
		SyncService:            syncService,
		Scheduler:              scheduler,
		MaxImportBytes:         maxImportBytes,
		DefaultSyncIntervalMin: 60,
	})

	return &testServer{t: t, handler: router, scheduler: scheduler}
}

func (s *testServer) do(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path string, v any) *httptest.ResponseRecorder {
	s.t.Helper()
	var body []byte
	if v != nil {
		var err error
		if body, err = json.Marshal(v); err != nil {
			s.t.Fatalf("encoding request: %v", err)
		}
	}
	return s.do(method, path, "application/json", body)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	var resp middleware.ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != code {
		t.Errorf("Expected error code %q, got %q", code, resp.Error)
	}
}

func mustTime(t *testing.T, value string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parsing %q: %v", value, err)
	}
	return &ts
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/api/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	var resp handlers.HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "healthy" || !resp.DBConnected {
		t.Errorf("Expected healthy with database, got %+v", resp)
	}
	if resp.SchemaVersion != "001_calendar.sql" {
		t.Errorf("Expected schema version 001_calendar.sql, got %q", resp.SchemaVersion)
	}
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do("GET", "/api/users/alice/agenda", "", nil)
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)

	rec = s.do("DELETE", "/api/users/alice/calendar", "", nil)
	expectErrorCode(t, rec, http.StatusMethodNotAllowed, middleware.ErrMethodNotAllowed)
}

func TestCalendarFlow(t *testing.T) {
	s := newTestServer(t, 1<<20)
	const base = "/api/users/alice"

	rec := s.doJSON("POST", base+"/events", handlers.EventRequest{
		Title: "Gym",
		Start: mustTime(t, "2024-01-08T07:00:00Z"),
		End:   mustTime(t, "2024-01-08T08:00:00Z"),
	})
	expectStatus(t, rec, http.StatusCreated)
	var gym handlers.EventResponse
	decode(t, rec, &gym)
	if gym.Item.Kind != calendar.KindPersonal || gym.Item.ID == "" || len(gym.Conflicts) != 0 {
		t.Fatalf("Unexpected created event %+v", gym)
	}

	rec = s.do("POST", base+"/calendar/import?source_tag=timetable", "text/calendar", []byte(timetableICS))
	expectStatus(t, rec, http.StatusOK)
	var imported handlers.ImportResponse
	decode(t, rec, &imported)
	if imported.Result.EventsFound != 1 || imported.Result.Inserted != 1 || imported.TotalItems != 2 {
		t.Errorf("Unexpected import response %+v / %+v", imported, imported.Result)
	}
	if imported.Result.SourceTag != "timetable" {
		t.Errorf("Expected source tag timetable, got %q", imported.Result.SourceTag)
	}

	rec = s.do("POST", base+"/calendar/import", "text/calendar", []byte(timetableICS))
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &imported)
	if imported.Result.Replaced != 1 || imported.TotalItems != 2 {
		t.Errorf("Expected re-import to replace the lecture, got %+v total %d", imported.Result, imported.TotalItems)
	}

	rec = s.do("GET", base+"/calendar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var cal handlers.CalendarResponse
	decode(t, rec, &cal)
	if len(cal.Items) != 2 || cal.Items[0].Title != "Gym" || cal.Items[1].Title != "Linear Algebra" {
		t.Fatalf("Expected Gym then Linear Algebra, got %+v", cal.Items)
	}
	if cal.Items[1].Kind != calendar.KindImported {
		t.Errorf("Expected the lecture to be imported, got %s", cal.Items[1].Kind)
	}
	if len(cal.Dates) != 1 || cal.Dates[0].String() != "2024-01-08" {
		t.Errorf("Expected one date 2024-01-08, got %v", cal.Dates)
	}

	rec = s.do("GET", base+"/calendar?date=2024-01-09", "", nil)
	expectStatus(t, rec, http.StatusOK)
	cal = handlers.CalendarResponse{}
	decode(t, rec, &cal)
	if len(cal.Items) != 0 {
		t.Errorf("Expected nothing on 2024-01-09, got %+v", cal.Items)
	}

	rec = s.do("GET", base+"/calendar?date=monday", "", nil)
	expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrValidation)

	rec = s.do("GET", base+"/calendar/dates", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var dates handlers.DatesResponse
	decode(t, rec, &dates)
	if dates.Timezone != "UTC" || len(dates.Dates) != 1 {
		t.Errorf("Unexpected dates response %+v", dates)
	}

	rec = s.doJSON("POST", base+"/calendar/conflicts", handlers.ConflictCheckRequest{
		Start: mustTime(t, "2024-01-08T08:30:00Z"),
		End:   mustTime(t, "2024-01-08T09:30:00Z"),
	})
	expectStatus(t, rec, http.StatusOK)
	var check handlers.ConflictCheckResponse
	decode(t, rec, &check)
	if !check.HasConflict || len(check.Conflicts) != 1 || check.Conflicts[0].Item.Title != "Linear Algebra" {
		t.Errorf("Expected only the lecture to conflict, got %+v", check)
	}

	rec = s.doJSON("POST", base+"/calendar/conflicts", handlers.ConflictCheckRequest{
		Start: mustTime(t, "2024-01-08T08:00:00Z"),
		End:   mustTime(t, "2024-01-08T09:00:00Z"),
	})
	expectStatus(t, rec, http.StatusOK)
	check = handlers.ConflictCheckResponse{}
	decode(t, rec, &check)
	if check.HasConflict {
		t.Errorf("Expected touching intervals not to conflict, got %+v", check.Conflicts)
	}

	rec = s.doJSON("POST", base+"/calendar/conflicts", map[string]string{})
	expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrValidation)

	rec = s.doJSON("POST", base+"/events", handlers.EventRequest{
		Title: "Study group",
		Start: mustTime(t, "2024-01-08T10:00:00Z"),
	})
	expectStatus(t, rec, http.StatusCreated)
	var study handlers.EventResponse
	decode(t, rec, &study)
	if len(study.Conflicts) != 1 || study.Conflicts[0].Item.Title != "Linear Algebra" {
		t.Errorf("Expected the new event to clash with the lecture, got %+v", study.Conflicts)
	}

	rec = s.do("GET", base+"/calendar/conflicts", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var pairs []calendar.ConflictPair
	decode(t, rec, &pairs)
	if len(pairs) != 1 {
		t.Errorf("Expected one overlapping pair, got %d", len(pairs))
	}

	rec = s.doJSON("PUT", base+"/events/"+itemIDByTitle(t, s, base, "Linear Algebra"), handlers.EventRequest{
		Title: "Skipped",
		Start: mustTime(t, "2024-01-08T09:00:00Z"),
	})
	expectErrorCode(t, rec, http.StatusConflict, middleware.ErrConflict)

	rec = s.doJSON("PUT", base+"/events/"+study.Item.ID, handlers.EventRequest{
		Title: "Study group",
		Start: mustTime(t, "2024-01-08T11:00:00Z"),
	})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &study)
	if len(study.Conflicts) != 0 {
		t.Errorf("Expected the moved event to be clear, got %+v", study.Conflicts)
	}

	rec = s.do("GET", base+"/calendar.ics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Expected text/calendar, got %q", ct)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Gym", "UID:lecture-1@uni.example"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("Expected export to contain %q", want)
		}
	}

	rec = s.do("DELETE", base+"/events/"+gym.Item.ID, "", nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = s.do("DELETE", base+"/events/"+gym.Item.ID, "", nil)
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)
}

// itemIDByTitle returns the ID of the first calendar item titled title.
func itemIDByTitle(t *testing.T, s *testServer, base, title string) string {
	t.Helper()
	rec := s.do("GET", base+"/calendar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var cal handlers.CalendarResponse
	decode(t, rec, &cal)
	for _, it := range cal.Items {
		if it.Title == title {
			return it.ID
		}
	}
	t.Fatalf("No item titled %q in %+v", title, cal.Items)
	return ""
}

func TestEventValidation(t *testing.T) {
	s := newTestServer(t, 0)
	const base = "/api/users/alice"

	tests := []struct {
		name string
		req  handlers.EventRequest
	}{
		{"missing title", handlers.EventRequest{Title: "  ", Start: mustTime(t, "2024-01-08T07:00:00Z")}},
		{"missing start", handlers.EventRequest{Title: "Gym"}},
		{"end before start", handlers.EventRequest{
			Title: "Gym",
			Start: mustTime(t, "2024-01-08T08:00:00Z"),
			End:   mustTime(t, "2024-01-08T07:00:00Z"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON("POST", base+"/events", tt.req)
			expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrValidation)
		})
	}

	rec := s.do("POST", base+"/events", "application/json", []byte("{"))
	expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrBadRequest)

	rec = s.doJSON("PUT", base+"/events/nope", handlers.EventRequest{Title: "Gym", Start: mustTime(t, "2024-01-08T07:00:00Z")})
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)
}

func TestImportAndExportErrors(t *testing.T) {
	s := newTestServer(t, 128)
	const base = "/api/users/alice"

	rec := s.do("POST", base+"/calendar/import", "text/calendar", []byte(emptyICS))
	expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrValidation)

	rec = s.do("POST", base+"/calendar/import", "text/calendar", []byte(timetableICS))
	expectErrorCode(t, rec, http.StatusRequestEntityTooLarge, middleware.ErrPayloadTooLarge)

	rec = s.do("GET", base+"/calendar.ics", "", nil)
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)

	rec = s.do("GET", base+"/calendar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var cal handlers.CalendarResponse
	decode(t, rec, &cal)
	if cal.Items == nil || len(cal.Items) != 0 {
		t.Errorf("Expected an empty item list, got %+v", cal.Items)
	}
}

func TestSubscriptions(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/timetable.ics":
			w.Header().Set("Content-Type", "text/calendar")
			w.Write([]byte(timetableICS))
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer feed.Close()

	s := newTestServer(t, 0)
	const base = "/api/users/alice"

	rec := s.doJSON("POST", base+"/subscriptions", handlers.CreateSubscriptionRequest{Name: "Timetable", URL: "ftp://uni.example/t.ics"})
	expectErrorCode(t, rec, http.StatusBadRequest, middleware.ErrValidation)

	rec = s.doJSON("POST", base+"/subscriptions", handlers.CreateSubscriptionRequest{
		Name:            "Timetable",
		URL:             feed.URL + "/timetable.ics",
		SyncIntervalMin: 1,
	})
	expectStatus(t, rec, http.StatusCreated)
	var sub models.CalendarSubscription
	decode(t, rec, &sub)
	if sub.ID == "" || !sub.Enabled || sub.SyncIntervalMin != 5 || sub.SyncStatus != models.SyncStatusPending {
		t.Errorf("Unexpected subscription %+v", sub)
	}
	if got := s.scheduler.Scheduled(); len(got) != 1 || got[0] != sub.ID {
		t.Errorf("Expected the new subscription to be scheduled, got %v", got)
	}

	rec = s.doJSON("POST", base+"/subscriptions", handlers.CreateSubscriptionRequest{Name: "Broken", URL: feed.URL + "/missing.ics"})
	expectStatus(t, rec, http.StatusCreated)
	var broken models.CalendarSubscription
	decode(t, rec, &broken)
	if broken.SyncIntervalMin != 60 {
		t.Errorf("Expected the default interval, got %d", broken.SyncIntervalMin)
	}

	rec = s.do("GET", base+"/subscriptions", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []models.CalendarSubscription
	decode(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("Expected 2 subscriptions, got %d", len(list))
	}

	rec = s.do("POST", "/api/users/bob/subscriptions/"+sub.ID+"/sync", "", nil)
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)

	rec = s.do("POST", base+"/subscriptions/"+sub.ID+"/sync", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var result models.ImportResult
	decode(t, rec, &result)
	if result.EventsFound != 1 || result.SourceTag != calendar.SubscriptionSourceTag(sub.ID) {
		t.Errorf("Unexpected sync result %+v", result)
	}

	rec = s.do("POST", base+"/subscriptions/"+broken.ID+"/sync", "", nil)
	expectErrorCode(t, rec, http.StatusBadGateway, middleware.ErrUpstream)

	rec = s.do("GET", base+"/calendar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var cal handlers.CalendarResponse
	decode(t, rec, &cal)
	if len(cal.Items) != 1 || cal.Items[0].Title != "Linear Algebra" {
		t.Errorf("Expected the synced lecture in the calendar, got %+v", cal.Items)
	}

	rec = s.do("DELETE", base+"/subscriptions/"+sub.ID, "", nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = s.do("DELETE", base+"/subscriptions/"+sub.ID, "", nil)
	expectErrorCode(t, rec, http.StatusNotFound, middleware.ErrNotFound)
	for _, id := range s.scheduler.Scheduled() {
		if id == sub.ID {
			t.Error("Expected deleted subscription to be unscheduled")
		}
	}

	rec = s.do("GET", base+"/calendar", "", nil)
	cal = handlers.CalendarResponse{}
	decode(t, rec, &cal)
	if len(cal.Items) != 1 {
		t.Errorf("Expected imported events to outlive their subscription, got %d items", len(cal.Items))
	}
}
