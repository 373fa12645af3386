package monitoring

import (
	"context"
	"time"

	"rivalwatch/pkg/metrics"
)

// ConfigRepository persists one MonitoringConfig per keyword.
type ConfigRepository interface {
	// SaveConfig replaces or creates cfg. CreatedAt of an existing row is
	// kept and written back into cfg.
	SaveConfig(ctx context.Context, cfg *MonitoringConfig) error
	// GetConfig returns nil, nil when no config exists for keyword.
	GetConfig(ctx context.Context, keyword string) (*MonitoringConfig, error)
	ListConfigs(ctx context.Context) ([]MonitoringConfig, error)
	// DeleteConfig is a no-op for an unknown keyword.
	DeleteConfig(ctx context.Context, keyword string) error
}

// SnapshotRepository keeps the two most recent snapshots per
// (keyword, competitor) and the latest result per keyword.
type SnapshotRepository interface {
	// CommitCycle stores result and, for every snapshot, moves the current
	// slot to previous and writes the snapshot as current. Either all of it
	// is written or none of it is.
	CommitCycle(ctx context.Context, result *MonitoringResult, snaps []ProductSnapshot) error
	// GetSnapshots returns the current and previous slots; either may be nil.
	GetSnapshots(ctx context.Context, keyword, competitor string) (current, previous *ProductSnapshot, err error)
	// LatestResult returns nil, nil when no cycle has completed for keyword.
	LatestResult(ctx context.Context, keyword string) (*MonitoringResult, error)
}

const (
	storeConfig   = "config"
	storeSnapshot = "snapshot"
)

func observeStore(store, backend, operation string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(store, backend, operation, time.Since(start), *err)
}
