package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sanju9645/sumo-insight-backend/internal/config"
	"github.com/sanju9645/sumo-insight-backend/internal/domain"
	"github.com/sanju9645/sumo-insight-backend/internal/repository"
	"github.com/sanju9645/sumo-insight-backend/internal/sumologic"
)

// fakeSearchClient serves canned records keyed by the request's from-date and
// can be told to fail specific days.
type fakeSearchClient struct {
	mu      sync.Mutex
	records map[string][]sumologic.SearchRecord // key: YYYY-MM-DD
	failOn  map[string]error
	jobs    int
}

func (f *fakeSearchClient) CreateSearchJob(_ context.Context, req sumologic.SearchJobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	date := strings.SplitN(req.From, "T", 2)[0]
	if err := f.failOn[date]; err != nil {
		return "", err
	}
	f.jobs++
	return date, nil
}

func (f *fakeSearchClient) WaitForCompletion(context.Context, string) error { return nil }

func (f *fakeSearchClient) FetchRecords(_ context.Context, jobID string) ([]sumologic.SearchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[jobID], nil
}

// fakeMetricStore mimics the keyed upsert semantics of the postgres
// repository.
type fakeMetricStore struct {
	mu   sync.Mutex
	rows map[string]domain.MetricRecord // key: date|endpoint
}

func newFakeMetricStore() *fakeMetricStore {
	return &fakeMetricStore{rows: make(map[string]domain.MetricRecord)}
}

func (f *fakeMetricStore) UpsertMetric(_ context.Context, record *domain.MetricRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := record.Date.Format("2006-01-02") + "|" + record.Endpoint
	if existing, ok := f.rows[key]; ok {
		existing.Count = record.Count
		existing.AvgPTime = record.AvgPTime
		f.rows[key] = existing
		return nil
	}
	f.rows[key] = *record
	return nil
}

// fakeClassificationStore counts insert attempts per endpoint while keeping
// at most one row, like ON CONFLICT DO NOTHING.
type fakeClassificationStore struct {
	mu        sync.Mutex
	endpoints map[string]int
}

func newFakeClassificationStore() *fakeClassificationStore {
	return &fakeClassificationStore{endpoints: make(map[string]int)}
}

func (f *fakeClassificationStore) EnsureEndpoint(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints[endpoint]++
	return nil
}

type stubConfigStore struct {
	alertCfg *domain.AlertConfiguration
	query    string
}

func (s stubConfigStore) GetAlertConfiguration(context.Context) (*domain.AlertConfiguration, error) {
	if s.alertCfg == nil {
		return &domain.AlertConfiguration{}, nil
	}
	return s.alertCfg, nil
}

func (s stubConfigStore) GetSearchQuery(context.Context) (string, error) {
	if s.query == "" {
		return "", repository.ErrNotFound
	}
	return s.query, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (r *recordingDispatcher) Dispatch(_ context.Context, _ *domain.AlertConfiguration, event domain.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func dayRecords(date string, n int) []sumologic.SearchRecord {
	period := strings.ReplaceAll(date, "-", "/")
	records := make([]sumologic.SearchRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, sumologic.SearchRecord{Map: sumologic.RecordFields{
			Period:           period,
			Path:             fmt.Sprintf("api/endpoint%d", i),
			TotalProcessTime: "1000.5",
			CountValue:       "7",
		}})
	}
	return records
}

func testService(search SearchClient, metrics *fakeMetricStore, classes *fakeClassificationStore,
	configs stubConfigStore, dispatcher AlertDispatcher, cfg config.Config) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(search, metrics, classes, configs, dispatcher, log, cfg)
}

func enabledConfig() config.Config {
	return config.Config{PersistenceEnabled: true, BatchSize: 3, SearchQuery: "_sourceCategory=prod | count"}
}

func TestProcessDayIdempotentUpsert(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{
		"2024-04-23": dayRecords("2024-04-23", 5),
	}}
	metrics := newFakeMetricStore()
	classes := newFakeClassificationStore()
	svc := testService(search, metrics, classes, stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Second ingestion of the same day with updated figures.
	updated := dayRecords("2024-04-23", 5)
	for i := range updated {
		updated[i].Map.CountValue = "9"
	}
	search.mu.Lock()
	search.records["2024-04-23"] = updated
	search.mu.Unlock()
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(metrics.rows) != 5 {
		t.Fatalf("rows = %d, want exactly one per (date, endpoint)", len(metrics.rows))
	}
	for key, row := range metrics.rows {
		if row.Count != 9 {
			t.Fatalf("row %s count = %d, want second run's value 9", key, row.Count)
		}
	}
}

func TestProcessDayRegistersEndpoints(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{
		"2024-04-23": dayRecords("2024-04-23", 4),
	}}
	metrics := newFakeMetricStore()
	classes := newFakeClassificationStore()
	svc := testService(search, metrics, classes, stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if len(classes.endpoints) != 4 {
		t.Fatalf("registered endpoints = %d, want 4", len(classes.endpoints))
	}
}

func TestProcessDaySkipsMalformedRows(t *testing.T) {
	records := dayRecords("2024-04-23", 3)
	records[1].Map.CountValue = "not-a-number"
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{"2024-04-23": records}}
	metrics := newFakeMetricStore()
	svc := testService(search, metrics, newFakeClassificationStore(), stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("malformed row must not abort the batch: %v", err)
	}
	if len(metrics.rows) != 2 {
		t.Fatalf("rows = %d, want 2 (malformed row skipped)", len(metrics.rows))
	}
}

func TestProcessDayQueryOnlyMode(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{
		"2024-04-23": dayRecords("2024-04-23", 3),
	}}
	metrics := newFakeMetricStore()
	classes := newFakeClassificationStore()
	dispatcher := &recordingDispatcher{}
	cfg := enabledConfig()
	cfg.PersistenceEnabled = false
	svc := testService(search, metrics, classes, stubConfigStore{}, dispatcher, cfg)

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if search.jobs != 1 {
		t.Fatalf("search jobs = %d, want 1 (query still runs)", search.jobs)
	}
	if len(metrics.rows) != 0 || len(classes.endpoints) != 0 || len(dispatcher.events) != 0 {
		t.Fatal("query-only mode must not persist or alert")
	}
}

func TestProcessDayFiresAlerts(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{
		"2024-04-23": dayRecords("2024-04-23", 2),
	}}
	dispatcher := &recordingDispatcher{}
	configs := stubConfigStore{alertCfg: &domain.AlertConfiguration{
		Emails: []string{"ops@example.com"},
		Conditions: []domain.AlertCondition{{
			Endpoint:       "api/endpoint0",
			MetricType:     domain.MetricRequestCount,
			Operator:       ">=",
			ThresholdValue: "7",
			AlertType:      domain.AlertTypeEmail,
		}},
	}}
	svc := testService(search, newFakeMetricStore(), newFakeClassificationStore(), configs, dispatcher, enabledConfig())

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("alert events = %d, want 1", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Endpoint != "api/endpoint0" || event.Value != 7 || event.Threshold != 7 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestProcessRangeRejectsInvertedRange(t *testing.T) {
	search := &fakeSearchClient{}
	svc := testService(search, newFakeMetricStore(), newFakeClassificationStore(), stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	start := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	err := svc.ProcessRange(context.Background(), start, end)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if search.jobs != 0 {
		t.Fatalf("search jobs = %d, want 0 (no day touched)", search.jobs)
	}
}

func TestProcessRangeSingleDay(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{
		"2024-04-10": dayRecords("2024-04-10", 1),
	}}
	svc := testService(search, newFakeMetricStore(), newFakeClassificationStore(), stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	day := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessRange(context.Background(), day, day); err != nil {
		t.Fatalf("ProcessRange: %v", err)
	}
	if search.jobs != 1 {
		t.Fatalf("search jobs = %d, want exactly one day processed", search.jobs)
	}
}

func TestProcessRangeIsolatesFailingDay(t *testing.T) {
	search := &fakeSearchClient{
		records: map[string][]sumologic.SearchRecord{
			"2024-04-10": dayRecords("2024-04-10", 2),
			"2024-04-12": dayRecords("2024-04-12", 2),
		},
		failOn: map[string]error{
			"2024-04-11": sumologic.ErrJobTimeout,
		},
	}
	metrics := newFakeMetricStore()
	svc := testService(search, metrics, newFakeClassificationStore(), stubConfigStore{}, &recordingDispatcher{}, enabledConfig())

	start := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessRange(context.Background(), start, end); err != nil {
		t.Fatalf("range must survive a failing day: %v", err)
	}
	if len(metrics.rows) != 4 {
		t.Fatalf("rows = %d, want 4 (days 1 and 3 persisted)", len(metrics.rows))
	}
}

func TestProcessDayUsesStoredQueryTemplate(t *testing.T) {
	search := &fakeSearchClient{records: map[string][]sumologic.SearchRecord{}}
	configs := stubConfigStore{query: `_sourceCategory=prod |\ncount by path`}
	svc := testService(search, newFakeMetricStore(), newFakeClassificationStore(), configs, &recordingDispatcher{}, enabledConfig())

	day := time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)
	if err := svc.ProcessDay(context.Background(), day); err != nil {
		t.Fatalf("ProcessDay: %v", err)
	}
}
