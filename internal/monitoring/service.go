package monitoring

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"rivalwatch/internal/constants"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/cel"
	pkgerrors "rivalwatch/pkg/errors"
	"rivalwatch/pkg/logging"
	"rivalwatch/pkg/metrics"
	"rivalwatch/pkg/tracing"
)

// Cycle states, logged as the coordinator moves through a check.
const (
	stateLoadingConfig = "loading_config"
	stateFetching      = "fetching"
	stateDiffing       = "diffing"
	stateEvaluating    = "evaluating"
	statePersisting    = "persisting"
	stateDone          = "done"
	stateFailedConfig  = "failed_config"
)

type service struct {
	configs          ConfigRepository
	snapshots        SnapshotRepository
	source           SnapshotSource
	locker           KeywordLocker
	notifier         Notifier
	evaluator        *cel.Evaluator
	logger           logger.Logger
	concurrency      int
	waitForLock      bool
	defaultFrequency Frequency
	now              func() time.Time
}

type ServiceOption func(*service)

// WithConcurrency caps how many competitors of one keyword are processed
// at once. 1 keeps them sequential.
func WithConcurrency(n int) ServiceOption {
	return func(s *service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCheckPolicy selects what a second check for a busy keyword does:
// "queue" waits, "reject" fails with CHECK_IN_PROGRESS.
func WithCheckPolicy(policy string) ServiceOption {
	return func(s *service) {
		s.waitForLock = policy != constants.CheckPolicyReject
	}
}

func WithLocker(locker KeywordLocker) ServiceOption {
	return func(s *service) {
		s.locker = locker
	}
}

func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *service) {
		s.notifier = notifier
	}
}

func WithDefaultFrequency(f Frequency) ServiceOption {
	return func(s *service) {
		s.defaultFrequency = f
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

func NewService(configs ConfigRepository, snapshots SnapshotRepository, source SnapshotSource, evaluator *cel.Evaluator, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		configs:          configs,
		snapshots:        snapshots,
		source:           source,
		locker:           NewLocalLocker(),
		evaluator:        evaluator,
		logger:           log,
		concurrency:      1,
		waitForLock:      true,
		defaultFrequency: FrequencyDaily,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) Setup(ctx context.Context, req SetupRequest) (*MonitoringConfig, error) {
	norm, err := NormalizeSetupRequest(req, s.defaultFrequency)
	if err != nil {
		return nil, pkgerrors.ErrInvalidConfig.WithCause(err).WithDetail("message", err.Error())
	}

	now := s.now().UTC()
	cfg := &MonitoringConfig{
		Keyword:          norm.Keyword,
		Competitors:      norm.Competitors,
		MonitorFrequency: norm.MonitorFrequency,
		AlertThresholds:  *norm.AlertThresholds,
		CreatedAt:        now,
		LastUpdated:      now,
	}

	if err := s.configs.SaveConfig(ctx, cfg); err != nil {
		return nil, storeError(ctx, err)
	}

	ctx = logging.WithKeyword(ctx, cfg.Keyword)
	s.logger.InfowCtx(ctx, "Monitoring config saved",
		"competitors", len(cfg.Competitors),
		"frequency", cfg.MonitorFrequency,
	)

	if norm.CaptureBaseline {
		if _, err := s.Check(ctx, cfg.Keyword); err != nil {
			s.logger.WarnwCtx(ctx, "Baseline capture failed", "error", err)
		}
	}

	out := copyConfig(*cfg)
	return &out, nil
}

func (s *service) GetConfig(ctx context.Context, keyword string) (*MonitoringConfig, error) {
	keyword = CanonicalName(keyword)
	cfg, err := s.configs.GetConfig(ctx, keyword)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	if cfg == nil {
		return nil, pkgerrors.ErrConfigNotFound.WithDetail("keyword", keyword)
	}
	return cfg, nil
}

func (s *service) ListConfigs(ctx context.Context) (map[string]MonitoringConfig, error) {
	list, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return nil, storeError(ctx, err)
	}

	out := make(map[string]MonitoringConfig, len(list))
	for _, cfg := range list {
		out[cfg.Keyword] = cfg
	}
	metrics.SetMonitoredKeywords(len(out))
	return out, nil
}

func (s *service) RemoveConfig(ctx context.Context, keyword string) error {
	keyword = CanonicalName(keyword)
	if err := s.configs.DeleteConfig(ctx, keyword); err != nil {
		return storeError(ctx, err)
	}
	s.logger.InfowCtx(logging.WithKeyword(ctx, keyword), "Monitoring config removed")
	return nil
}

func (s *service) Check(ctx context.Context, keyword string) (result *MonitoringResult, err error) {
	keyword = CanonicalName(keyword)
	ctx = logging.WithKeyword(ctx, keyword)

	ctx, span := tracing.StartSpan(ctx, "monitoring.check")
	span.SetAttributes(attribute.String("monitoring.keyword", keyword))
	defer span.End()

	metrics.CheckCyclesInFlight.Inc()
	defer metrics.CheckCyclesInFlight.Dec()

	start := time.Now()
	defer func() {
		status := "success"
		switch {
		case err == nil:
		case pkgerrors.IsConfigNotFound(err):
			status = "config_not_found"
		case pkgerrors.IsCheckInProgress(err):
			status = "rejected"
		default:
			status = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		metrics.ObserveCheckCycle(time.Since(start), status)
	}()

	release, err := s.locker.Acquire(ctx, keyword, s.waitForLock)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, pkgerrors.ErrCheckInProgress.WithDetail("keyword", keyword)
		}
		return nil, storeError(ctx, err)
	}
	defer release()

	s.logState(ctx, stateLoadingConfig, -1)
	cfg, err := s.configs.GetConfig(ctx, keyword)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	if cfg == nil {
		s.logState(ctx, stateFailedConfig, -1)
		return nil, pkgerrors.ErrConfigNotFound.WithDetail("keyword", keyword)
	}

	outcomes, err := s.processCompetitors(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.logState(ctx, statePersisting, -1)
	result = &MonitoringResult{
		ID:              uuid.New().String(),
		Keyword:         keyword,
		CheckedAt:       s.now().UTC(),
		ChangesDetected: make(map[string]ChangeSet, len(outcomes)),
	}
	snaps := make([]ProductSnapshot, 0, len(outcomes))
	for _, o := range outcomes {
		snaps = append(snaps, o.snapshot)
		result.ChangesDetected[o.competitor] = o.changes
		if o.snapshot.Provenance == ProvenanceFallback {
			result.DegradedCompetitors = append(result.DegradedCompetitors, o.competitor)
		}
	}
	result.HasAlerts = HasAlerts(result.ChangesDetected)

	if err := s.snapshots.CommitCycle(ctx, result, snaps); err != nil {
		return nil, storeError(ctx, err)
	}
	s.logState(ctx, stateDone, -1)

	recordChangeMetrics(result)
	s.logger.InfowCtx(ctx, "Monitoring check completed",
		"competitors", len(cfg.Competitors),
		"has_alerts", result.HasAlerts,
		"degraded", len(result.DegradedCompetitors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if result.HasAlerts && s.notifier != nil {
		if err := s.notifier.Notify(ctx, result); err != nil {
			s.logger.WarnwCtx(ctx, "Alert notification failed", "error", err)
		}
	}

	return result, nil
}

type competitorOutcome struct {
	competitor string
	snapshot   ProductSnapshot
	changes    ChangeSet
}

// processCompetitors runs fetch, diff and evaluate for every competitor.
// Outcomes keep config order whatever the completion order was.
func (s *service) processCompetitors(ctx context.Context, cfg *MonitoringConfig) ([]competitorOutcome, error) {
	outcomes := make([]competitorOutcome, len(cfg.Competitors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, competitor := range cfg.Competitors {
		g.Go(func() error {
			o, err := s.processCompetitor(gctx, cfg, i, competitor)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (s *service) processCompetitor(ctx context.Context, cfg *MonitoringConfig, index int, competitor string) (competitorOutcome, error) {
	ctx = logging.WithCompetitor(ctx, competitor)

	s.logState(ctx, stateFetching, index)
	snap := s.source.Fetch(ctx, cfg.Keyword, competitor)
	snap.Competitor = competitor

	s.logState(ctx, stateDiffing, index)
	previous, _, err := s.snapshots.GetSnapshots(ctx, cfg.Keyword, competitor)
	if err != nil {
		return competitorOutcome{}, storeError(ctx, err)
	}
	changes := Diff(previous, snap)

	s.logState(ctx, stateEvaluating, index)
	changes = Evaluate(changes, cfg.AlertThresholds)

	return competitorOutcome{competitor: competitor, snapshot: snap, changes: changes}, nil
}

// storeError maps a repository failure. A cancelled or expired request
// reports TIMEOUT, not an unavailable store.
func storeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return pkgerrors.ErrTimeout.WithCause(err)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
}

func (s *service) logState(ctx context.Context, state string, competitorIndex int) {
	if competitorIndex < 0 {
		s.logger.DebugwCtx(ctx, "Check cycle state", "state", state)
		return
	}
	s.logger.DebugwCtx(ctx, "Check cycle state", "state", state, "competitor_index", competitorIndex)
}

func recordChangeMetrics(result *MonitoringResult) {
	for _, cs := range result.ChangesDetected {
		metrics.AddChangeEvents(KindPrice, len(cs.PriceChanges))
		metrics.AddChangeEvents(KindRank, len(cs.RankChanges))
		metrics.AddChangeEvents(KindReview, len(cs.ReviewChanges))
		metrics.AddChangeEvents(KindNew, len(cs.NewProducts))
		if cs.Alerts {
			metrics.IncAlert(string(cs.Provenance))
		}
	}
}

// LatestResult returns the stored result re-evaluated against the current
// thresholds, narrowed by view.
func (s *service) LatestResult(ctx context.Context, keyword string, view ResultView, checkIfMissing bool) (*MonitoringResult, error) {
	keyword = CanonicalName(keyword)

	if view.Filter != "" {
		if err := s.evaluator.ValidateFilterExpression(view.Filter); err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("message", err.Error())
		}
	}

	result, err := s.snapshots.LatestResult(ctx, keyword)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	if result == nil {
		if !checkIfMissing {
			return nil, pkgerrors.ErrNotFound.WithDetail("keyword", keyword).WithDetail("message", "no monitoring result yet")
		}
		if result, err = s.Check(ctx, keyword); err != nil {
			return nil, err
		}
	}

	cfg, err := s.configs.GetConfig(ctx, keyword)
	if err != nil {
		return nil, storeError(ctx, err)
	}

	return s.applyView(ctx, result, cfg, view)
}

func (s *service) applyView(ctx context.Context, result *MonitoringResult, cfg *MonitoringConfig, view ResultView) (*MonitoringResult, error) {
	out := copyResult(*result)

	for competitor, cs := range out.ChangesDetected {
		// A removed config keeps the alerts computed at check time.
		if cfg != nil {
			cs = Evaluate(cs, cfg.AlertThresholds)
		}
		if view.Top > 0 {
			cs = TopN(cs, view.Top)
		}
		if view.Filter != "" {
			filtered, err := FilterView(ctx, s.evaluator, competitor, cs, view.Filter)
			if err != nil {
				return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("message", err.Error())
			}
			cs = filtered
		}
		out.ChangesDetected[competitor] = cs
	}
	out.HasAlerts = HasAlerts(out.ChangesDetected)

	return &out, nil
}

func (s *service) Products(ctx context.Context, keyword, competitor string) (*ProductSnapshot, error) {
	keyword = CanonicalName(keyword)
	competitor = CanonicalName(competitor)

	current, _, err := s.snapshots.GetSnapshots(ctx, keyword, competitor)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	if current == nil {
		return nil, pkgerrors.ErrNotFound.
			WithDetail("keyword", keyword).
			WithDetail("competitor", competitor).
			WithDetail("message", "no snapshot captured yet")
	}
	return current, nil
}

// CheckAll runs Check for every configured keyword, one at a time in name
// order. With dueOnly set, keywords whose latest result is still fresh for
// their frequency are skipped. A failing keyword is reported and the pass
// moves on; only a failed config listing or a cancelled ctx fails the call.
func (s *service) CheckAll(ctx context.Context, dueOnly bool) (*CheckAllReport, error) {
	configs, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	slices.SortFunc(configs, func(a, b MonitoringConfig) int {
		return strings.Compare(a.Keyword, b.Keyword)
	})

	report := &CheckAllReport{
		Checked: []string{},
		Skipped: []string{},
		Failed:  make(map[string]pkgerrors.ErrorResponse),
		Alerts:  []string{},
		Results: make(map[string]*MonitoringResult),
	}
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.ErrTimeout.WithCause(err)
		}
		kctx := logging.WithKeyword(ctx, cfg.Keyword)

		if dueOnly {
			latest, err := s.snapshots.LatestResult(ctx, cfg.Keyword)
			if err != nil {
				err = storeError(ctx, err)
				s.logger.WarnwCtx(kctx, "Could not read latest result", "error", err)
				report.Failed[cfg.Keyword] = pkgerrors.ToErrorResponse(err)
				continue
			}
			if !dueForCheck(cfg, latest, s.now()) {
				report.Skipped = append(report.Skipped, cfg.Keyword)
				continue
			}
		}

		result, err := s.Check(ctx, cfg.Keyword)
		if err != nil {
			s.logger.WarnwCtx(kctx, "Check failed during check-all", "error", err)
			report.Failed[cfg.Keyword] = pkgerrors.ToErrorResponse(err)
			continue
		}
		report.Checked = append(report.Checked, cfg.Keyword)
		report.Results[cfg.Keyword] = result
		if result.HasAlerts {
			report.Alerts = append(report.Alerts, cfg.Keyword)
		}
	}

	s.logger.InfowCtx(ctx, "Check-all completed",
		"checked", len(report.Checked),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"alerts", len(report.Alerts),
	)
	return report, nil
}

// Summary counts configured keywords and how many of their latest results
// carried changes or alerts.
func (s *service) Summary(ctx context.Context) (*Summary, error) {
	configs, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return nil, storeError(ctx, err)
	}

	summary := &Summary{Total: len(configs)}
	for _, cfg := range configs {
		result, err := s.snapshots.LatestResult(ctx, cfg.Keyword)
		if err != nil {
			return nil, storeError(ctx, err)
		}
		if result == nil {
			continue
		}

		changed := false
		for _, cs := range result.ChangesDetected {
			if !cs.Empty() {
				changed = true
				break
			}
		}
		if changed {
			summary.WithChanges++
		}

		alerted := false
		for _, cs := range result.ChangesDetected {
			if Evaluate(cs, cfg.AlertThresholds).Alerts {
				alerted = true
				break
			}
		}
		if alerted {
			summary.WithAlerts++
		}
	}
	metrics.SetMonitoredKeywords(summary.Total)

	return summary, nil
}
