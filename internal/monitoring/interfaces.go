package monitoring

import (
	"context"
)

// Service is the monitoring coordinator together with the config
// operations the REST surface exposes.
type Service interface {
	Setup(ctx context.Context, req SetupRequest) (*MonitoringConfig, error)
	GetConfig(ctx context.Context, keyword string) (*MonitoringConfig, error)
	ListConfigs(ctx context.Context) (map[string]MonitoringConfig, error)
	RemoveConfig(ctx context.Context, keyword string) error

	Check(ctx context.Context, keyword string) (*MonitoringResult, error)
	CheckAll(ctx context.Context, dueOnly bool) (*CheckAllReport, error)
	LatestResult(ctx context.Context, keyword string, view ResultView, checkIfMissing bool) (*MonitoringResult, error)
	Products(ctx context.Context, keyword, competitor string) (*ProductSnapshot, error)
	Summary(ctx context.Context) (*Summary, error)
}

// SnapshotSource produces the current snapshot of one competitor. It never
// fails: degraded upstreams yield a fallback-provenance snapshot.
type SnapshotSource interface {
	Fetch(ctx context.Context, keyword, competitor string) ProductSnapshot
}

// Notifier delivers results that raised an alert.
type Notifier interface {
	Notify(ctx context.Context, result *MonitoringResult) error
}
