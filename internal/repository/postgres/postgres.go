package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
	"github.com/sanju9645/sumo-insight-backend/internal/repository"
)

// Configuration store keys owned by the external configuration subsystem.
const (
	alertConfigKey = "alertConfig"
	searchQueryKey = "sumologicQuery"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.MetricRepository         = (*Repository)(nil)
	_ repository.ClassificationRepository = (*Repository)(nil)
	_ repository.ConfigurationRepository  = (*Repository)(nil)
)

// UpsertMetric writes one (date, endpoint) metric row, replacing count and
// processing time on conflict. The created timestamp of an existing row is
// preserved.
func (r *Repository) UpsertMetric(ctx context.Context, record *domain.MetricRecord) error {
	const query = `INSERT INTO api_metrics (id, date, api_endpoint, count, avg_p_time, created)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date, api_endpoint)
		DO UPDATE SET count = EXCLUDED.count, avg_p_time = EXCLUDED.avg_p_time`
	_, err := r.pool.Exec(ctx, query,
		record.ID, record.Date, record.Endpoint, record.Count, record.AvgPTime, record.Created)
	if err != nil {
		return fmt.Errorf("upsert metric for %s: %w", record.Endpoint, err)
	}
	return nil
}

// EnsureEndpoint registers an endpoint in the classification table if it is
// not already present. ON CONFLICT DO NOTHING keeps this a single round trip
// and race-safe across parallel workers.
func (r *Repository) EnsureEndpoint(ctx context.Context, endpoint string) error {
	const query = `INSERT INTO api_endpoint_classifications (id, api_endpoint, created)
		VALUES ($1, $2, now())
		ON CONFLICT (api_endpoint) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, uuid.NewString(), endpoint)
	if err != nil {
		return fmt.Errorf("register endpoint %s: %w", endpoint, err)
	}
	return nil
}

// GetAlertConfiguration loads the alert configuration blob. A missing row
// yields an empty configuration, which disables alerting for the pass.
func (r *Repository) GetAlertConfiguration(ctx context.Context) (*domain.AlertConfiguration, error) {
	content, err := r.configContent(ctx, alertConfigKey)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.AlertConfiguration{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg domain.AlertConfiguration
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("decode alert configuration: %w", err)
	}
	return &cfg, nil
}

// GetSearchQuery loads the stored search query template.
func (r *Repository) GetSearchQuery(ctx context.Context) (string, error) {
	content, err := r.configContent(ctx, searchQueryKey)
	if err != nil {
		return "", err
	}
	var query string
	if err := json.Unmarshal(content, &query); err != nil {
		return "", fmt.Errorf("decode search query: %w", err)
	}
	return query, nil
}

func (r *Repository) configContent(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT content FROM configurations WHERE key = $1`
	var content []byte
	if err := r.pool.QueryRow(ctx, query, key).Scan(&content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load configuration %s: %w", key, err)
	}
	return content, nil
}
