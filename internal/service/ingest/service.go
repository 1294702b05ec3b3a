// Package ingest drives the daily metric pipeline: build the day-scoped
// search, run the asynchronous search job to completion, transform the
// aggregated rows, persist them idempotently and evaluate alert thresholds.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sanju9645/sumo-insight-backend/internal/config"
	"github.com/sanju9645/sumo-insight-backend/internal/domain"
	"github.com/sanju9645/sumo-insight-backend/internal/repository"
	"github.com/sanju9645/sumo-insight-backend/internal/service/alert"
	"github.com/sanju9645/sumo-insight-backend/internal/sumologic"
)

// ErrInvalidRange indicates an inverted date range. It surfaces before any
// day in the range is processed.
var ErrInvalidRange = errors.New("ingest: end date must not be before start date")

// SearchClient is the slice of the search-service client the pipeline uses.
type SearchClient interface {
	CreateSearchJob(ctx context.Context, req sumologic.SearchJobRequest) (string, error)
	WaitForCompletion(ctx context.Context, jobID string) error
	FetchRecords(ctx context.Context, jobID string) ([]sumologic.SearchRecord, error)
}

// AlertDispatcher delivers a triggered alert. Delivery is best-effort; the
// dispatcher owns its own error handling.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, cfg *domain.AlertConfiguration, event domain.AlertEvent)
}

// Service runs the ingestion pipeline. It is constructed once with all of its
// dependencies and holds no mutable state between runs.
type Service struct {
	search          SearchClient
	metrics         repository.MetricRepository
	classifications repository.ClassificationRepository
	configurations  repository.ConfigurationRepository
	dispatcher      AlertDispatcher
	logger          *slog.Logger
	cfg             config.Config
}

// New returns an ingestion service.
func New(
	search SearchClient,
	metrics repository.MetricRepository,
	classifications repository.ClassificationRepository,
	configurations repository.ConfigurationRepository,
	dispatcher AlertDispatcher,
	logger *slog.Logger,
	cfg config.Config,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return Service{
		search:          search,
		metrics:         metrics,
		classifications: classifications,
		configurations:  configurations,
		dispatcher:      dispatcher,
		logger:          logger,
		cfg:             cfg,
	}
}

// ProcessDay runs one full pipeline pass for a single UTC calendar day.
// Configuration is loaded fresh at the start of the pass and treated as
// immutable for its duration. When persistence is disabled the day still
// queries the external source but skips upserts and alerting.
func (s Service) ProcessDay(ctx context.Context, day time.Time) error {
	day = truncateToDay(day)
	date := day.Format("2006-01-02")
	persist := s.cfg.PersistenceEnabled
	if !persist {
		s.logger.Info("persistence disabled, running query-only pass", "date", date)
	}

	template, err := s.searchTemplate(ctx)
	if err != nil {
		return err
	}

	var (
		alertCfg  *domain.AlertConfiguration
		evaluator *alert.Evaluator
	)
	if persist {
		alertCfg, err = s.configurations.GetAlertConfiguration(ctx)
		if err != nil {
			return fmt.Errorf("load alert configuration: %w", err)
		}
		evaluator = alert.NewEvaluator(alertCfg)
	}

	s.logger.Info("processing logs", "date", date)

	jobID, err := s.search.CreateSearchJob(ctx, buildSearchRequest(template, day))
	if err != nil {
		return err
	}
	if err := s.search.WaitForCompletion(ctx, jobID); err != nil {
		return err
	}
	records, err := s.search.FetchRecords(ctx, jobID)
	if err != nil {
		return err
	}
	s.logger.Info("search job complete", "date", date, "job_id", jobID, "records", len(records))

	for start := 0; start < len(records); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(records))

		g, gctx := errgroup.WithContext(ctx)
		for _, raw := range records[start:end] {
			raw := raw
			g.Go(func() error {
				return s.processRecord(gctx, raw, persist, alertCfg, evaluator)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("process batch: %w", err)
		}
		s.logger.Info("processed records", "date", date, "done", end, "total", len(records))
	}

	s.logger.Info("log processing completed", "date", date)
	return nil
}

// ProcessRange runs ProcessDay for every day from start to end inclusive.
// The range is validated up front; after that, a failing day is logged and
// the loop moves on to the next day.
func (s Service) ProcessRange(ctx context.Context, start, end time.Time) error {
	start, end = truncateToDay(start), truncateToDay(end)
	if end.Before(start) {
		return fmt.Errorf("%w: %s after %s",
			ErrInvalidRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	s.logger.Info("processing date range",
		"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.ProcessDay(ctx, day); err != nil {
			s.logger.Error("day processing failed", "date", day.Format("2006-01-02"), "error", err)
		}
	}

	s.logger.Info("date range processing completed")
	return nil
}

// processRecord runs the per-row pipeline: transform, register endpoint,
// upsert, evaluate threshold, dispatch. Malformed rows are skipped with a
// warning and never fail the batch.
func (s Service) processRecord(
	ctx context.Context,
	raw sumologic.SearchRecord,
	persist bool,
	alertCfg *domain.AlertConfiguration,
	evaluator *alert.Evaluator,
) error {
	record, err := transformRecord(raw, s.cfg.RewriteMap)
	if err != nil {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			s.logger.Warn("skipping malformed record",
				"path", raw.Map.Path, "field", malformed.Field, "value", malformed.Value)
			return nil
		}
		return err
	}
	if !persist {
		return nil
	}

	if err := s.classifications.EnsureEndpoint(ctx, record.Endpoint); err != nil {
		return err
	}

	record.ID = uuid.NewString()
	record.Created = time.Now().UTC()
	if err := s.metrics.UpsertMetric(ctx, &record); err != nil {
		return err
	}

	if event := evaluator.Evaluate(record); event != nil {
		s.logger.Warn("alert threshold crossed",
			"endpoint", event.Endpoint, "metric", event.MetricType,
			"value", event.Value, "threshold", event.Threshold)
		s.dispatcher.Dispatch(ctx, alertCfg, *event)
	}
	return nil
}

// searchTemplate loads the query template from the configuration store,
// falling back to the environment-provided template when the store has none.
func (s Service) searchTemplate(ctx context.Context) (string, error) {
	template, err := s.configurations.GetSearchQuery(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		template = s.cfg.SearchQuery
	} else if err != nil {
		return "", fmt.Errorf("load search query: %w", err)
	}
	if strings.TrimSpace(template) == "" {
		return "", errors.New("ingest: no search query configured")
	}
	return template, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
