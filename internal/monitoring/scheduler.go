package monitoring

import (
	"context"
	"time"

	"rivalwatch/internal/logger"
	pkgerrors "rivalwatch/pkg/errors"
	"rivalwatch/pkg/logging"
)

// Scheduler re-checks every keyword whose latest result is older than its
// monitor frequency. It only calls Service.Check, so scheduled and
// on-demand cycles share one code path.
type Scheduler struct {
	service Service
	tick    time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewScheduler(service Service, tick time.Duration, log logger.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		service: service,
		tick:    tick,
		logger:  log,
		now:     time.Now,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infow("Scheduler started", "tick", s.tick.String())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce checks every due keyword and returns how many checks ran.
func (s *Scheduler) RunOnce(ctx context.Context) (checked int) {
	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.RecoverPanic(r)
			s.logger.Errorw("Scheduler tick panicked", "error", err)
		}
	}()

	configs, err := s.service.ListConfigs(ctx)
	if err != nil {
		s.logger.Warnw("Scheduler could not list configs", "error", err)
		return 0
	}

	for keyword, cfg := range configs {
		if ctx.Err() != nil {
			return checked
		}

		due, err := s.isDue(ctx, cfg)
		if err != nil {
			s.logger.WarnwCtx(logging.WithKeyword(ctx, keyword), "Scheduler could not read latest result", "error", err)
			continue
		}
		if !due {
			continue
		}

		if _, err := s.service.Check(ctx, keyword); err != nil {
			s.logger.WarnwCtx(logging.WithKeyword(ctx, keyword), "Scheduled check failed", "error", err)
			continue
		}
		checked++
	}

	return checked
}

func (s *Scheduler) isDue(ctx context.Context, cfg MonitoringConfig) (bool, error) {
	result, err := s.service.LatestResult(ctx, cfg.Keyword, ResultView{}, false)
	if pkgerrors.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return dueForCheck(cfg, result, s.now()), nil
}

// dueForCheck reports whether latest is older than the config's frequency.
// A keyword never checked is always due.
func dueForCheck(cfg MonitoringConfig, latest *MonitoringResult, now time.Time) bool {
	if latest == nil {
		return true
	}
	return now.Sub(latest.CheckedAt) >= cfg.MonitorFrequency.Interval()
}
