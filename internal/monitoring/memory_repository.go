package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"
)

type snapshotKey struct {
	keyword    string
	competitor string
}

type snapshotPair struct {
	current  *ProductSnapshot
	previous *ProductSnapshot
}

// MemoryRepository implements both stores in process. Values are copied on
// the way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	configs   map[string]MonitoringConfig
	snapshots map[snapshotKey]snapshotPair
	results   map[string]MonitoringResult
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		configs:   make(map[string]MonitoringConfig),
		snapshots: make(map[snapshotKey]snapshotPair),
		results:   make(map[string]MonitoringResult),
	}
}

func (r *MemoryRepository) SaveConfig(ctx context.Context, cfg *MonitoringConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.configs[cfg.Keyword]; ok {
		cfg.CreatedAt = existing.CreatedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	r.configs[cfg.Keyword] = copyConfig(*cfg)
	return nil
}

func (r *MemoryRepository) GetConfig(ctx context.Context, keyword string) (*MonitoringConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[keyword]
	if !ok {
		return nil, nil
	}
	out := copyConfig(cfg)
	return &out, nil
}

func (r *MemoryRepository) ListConfigs(ctx context.Context) ([]MonitoringConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MonitoringConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, copyConfig(cfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}

func (r *MemoryRepository) DeleteConfig(ctx context.Context, keyword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.configs, keyword)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) CommitCycle(ctx context.Context, result *MonitoringResult, snaps []ProductSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, snap := range snaps {
		key := snapshotKey{keyword: result.Keyword, competitor: snap.Competitor}
		current := copySnapshot(snap)
		r.snapshots[key] = snapshotPair{current: &current, previous: r.snapshots[key].current}
	}
	r.results[result.Keyword] = copyResult(*result)
	return nil
}

func (r *MemoryRepository) GetSnapshots(ctx context.Context, keyword, competitor string) (*ProductSnapshot, *ProductSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pair := r.snapshots[snapshotKey{keyword: keyword, competitor: competitor}]
	return copySnapshotPtr(pair.current), copySnapshotPtr(pair.previous), nil
}

func (r *MemoryRepository) LatestResult(ctx context.Context, keyword string) (*MonitoringResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.results[keyword]
	if !ok {
		return nil, nil
	}
	out := copyResult(result)
	return &out, nil
}

func copyConfig(cfg MonitoringConfig) MonitoringConfig {
	cfg.Competitors = append([]string(nil), cfg.Competitors...)
	return cfg
}

func copySnapshot(s ProductSnapshot) ProductSnapshot {
	s.Products = append(make([]CompetitorProduct, 0, len(s.Products)), s.Products...)
	return s
}

func copySnapshotPtr(s *ProductSnapshot) *ProductSnapshot {
	if s == nil {
		return nil
	}
	out := copySnapshot(*s)
	return &out
}

func copyResult(r MonitoringResult) MonitoringResult {
	changes := make(map[string]ChangeSet, len(r.ChangesDetected))
	for competitor, cs := range r.ChangesDetected {
		changes[competitor] = cloneChangeSet(cs)
	}
	r.ChangesDetected = changes
	r.DegradedCompetitors = append([]string(nil), r.DegradedCompetitors...)
	return r
}
