package repository

import (
	"context"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
)

// MetricRepository persists daily per-endpoint metrics.
type MetricRepository interface {
	// UpsertMetric inserts the record or, when a row for the same
	// (date, endpoint) pair exists, replaces its count and processing time.
	// The operation is a single atomic statement and safe under concurrent
	// writers.
	UpsertMetric(ctx context.Context, record *domain.MetricRecord) error
}

// ClassificationRepository registers endpoints observed by the pipeline.
type ClassificationRepository interface {
	// EnsureEndpoint inserts a bare classification row for the endpoint if
	// none exists. Atomic insert-if-absent; concurrent callers for the same
	// endpoint produce exactly one row.
	EnsureEndpoint(ctx context.Context, endpoint string) error
}

// ConfigurationRepository reads the external configuration subsystem's store.
// The pipeline never writes it.
type ConfigurationRepository interface {
	GetAlertConfiguration(ctx context.Context) (*domain.AlertConfiguration, error)
	GetSearchQuery(ctx context.Context) (string, error)
}
