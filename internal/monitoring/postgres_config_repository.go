package monitoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rivalwatch/internal/constants"
)

type PostgresConfigRepository struct {
	db *sql.DB
}

func NewPostgresConfigRepository(db *sql.DB) *PostgresConfigRepository {
	return &PostgresConfigRepository{db: db}
}

func (r *PostgresConfigRepository) SaveConfig(ctx context.Context, cfg *MonitoringConfig) (err error) {
	defer observeStore(storeConfig, constants.BackendPostgres, "save", time.Now(), &err)

	query := `
		INSERT INTO monitoring_configs (
			keyword, competitors, monitor_frequency,
			price_change_percent, new_product, rank_change, review_change_percent,
			created_at, last_updated
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (keyword) DO UPDATE SET
			competitors = EXCLUDED.competitors,
			monitor_frequency = EXCLUDED.monitor_frequency,
			price_change_percent = EXCLUDED.price_change_percent,
			new_product = EXCLUDED.new_product,
			rank_change = EXCLUDED.rank_change,
			review_change_percent = EXCLUDED.review_change_percent,
			last_updated = EXCLUDED.last_updated
		RETURNING created_at
	`

	t := cfg.AlertThresholds
	row := r.db.QueryRowContext(ctx, query,
		cfg.Keyword, pq.Array(cfg.Competitors), string(cfg.MonitorFrequency),
		t.PriceChangePercent, t.NewProduct, t.RankChange, t.ReviewChangePercent,
		cfg.CreatedAt, cfg.LastUpdated,
	)
	if err := row.Scan(&cfg.CreatedAt); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

func (r *PostgresConfigRepository) GetConfig(ctx context.Context, keyword string) (_ *MonitoringConfig, err error) {
	defer observeStore(storeConfig, constants.BackendPostgres, "get", time.Now(), &err)

	query := `
		SELECT keyword, competitors, monitor_frequency,
			price_change_percent, new_product, rank_change, review_change_percent,
			created_at, last_updated
		FROM monitoring_configs
		WHERE keyword = $1
	`

	cfg, err := scanConfig(r.db.QueryRowContext(ctx, query, keyword))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return cfg, nil
}

func (r *PostgresConfigRepository) ListConfigs(ctx context.Context) (_ []MonitoringConfig, err error) {
	defer observeStore(storeConfig, constants.BackendPostgres, "list", time.Now(), &err)

	query := `
		SELECT keyword, competitors, monitor_frequency,
			price_change_percent, new_product, rank_change, review_change_percent,
			created_at, last_updated
		FROM monitoring_configs
		ORDER BY keyword
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	configs := []MonitoringConfig{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate configs: %w", err)
	}

	return configs, nil
}

func (r *PostgresConfigRepository) DeleteConfig(ctx context.Context, keyword string) (err error) {
	defer observeStore(storeConfig, constants.BackendPostgres, "delete", time.Now(), &err)

	if _, err := r.db.ExecContext(ctx, `DELETE FROM monitoring_configs WHERE keyword = $1`, keyword); err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*MonitoringConfig, error) {
	var (
		cfg       MonitoringConfig
		frequency string
	)
	err := row.Scan(
		&cfg.Keyword, pq.Array(&cfg.Competitors), &frequency,
		&cfg.AlertThresholds.PriceChangePercent, &cfg.AlertThresholds.NewProduct,
		&cfg.AlertThresholds.RankChange, &cfg.AlertThresholds.ReviewChangePercent,
		&cfg.CreatedAt, &cfg.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	cfg.MonitorFrequency = Frequency(frequency)
	return &cfg, nil
}
