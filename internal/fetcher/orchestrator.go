package fetcher

import (
	"context"
	"errors"
	"time"

	"rivalwatch/internal/logger"
	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/logging"
	"rivalwatch/pkg/metrics"
	"rivalwatch/pkg/ratelimit"
	"rivalwatch/pkg/retry"
)

const (
	fallbackReasonExhausted = "exhausted"
	fallbackReasonPermanent = "permanent"
	fallbackReasonCancelled = "cancelled"
)

// Orchestrator wraps a ProductFetcher with pacing, bounded retries and the
// deterministic fallback. Fetch always returns a snapshot.
type Orchestrator struct {
	fetcher  ProductFetcher
	fallback *FallbackGenerator
	policy   retry.Policy
	pacer    *ratelimit.Pacer
	logger   logger.Logger
	label    string
	now      func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithPacer(pacer *ratelimit.Pacer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.pacer = pacer
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithMetricsLabel sets the fetcher label used on fetch metrics.
func WithMetricsLabel(label string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.label = label
	}
}

// NewOrchestrator builds an orchestrator that makes up to maxAttempts calls,
// waiting baseDelay*2^(k-1) after failed attempt k.
func NewOrchestrator(fetcher ProductFetcher, fallback *FallbackGenerator, maxAttempts int, baseDelay, maxDelay time.Duration, log logger.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fetcher:  fetcher,
		fallback: fallback,
		policy: retry.Policy{
			MaxAttempts:     maxAttempts,
			InitialInterval: baseDelay,
			MaxInterval:     maxDelay,
			Multiplier:      2,
		},
		logger: log,
		label:  "upstream",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Fetch(ctx context.Context, keyword, competitor string) monitoring.ProductSnapshot {
	ctx = logging.WithCompetitor(logging.WithKeyword(ctx, keyword), competitor)

	var snap *monitoring.ProductSnapshot
	err := retry.RetryWithCallback(ctx, o.policy, func() error {
		if err := o.pacer.Wait(ctx); err != nil {
			return retry.NewFatalError(err)
		}

		start := time.Now()
		s, err := o.fetcher.FetchListing(ctx, keyword, competitor)
		if err == nil && s == nil {
			err = &PermanentError{Err: errors.New("fetcher returned no snapshot")}
		}
		metrics.ObserveFetch(o.label, fetchStatus(err), time.Since(start))
		if err != nil {
			return err
		}

		snap = s
		return nil
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncRetry("fetcher")
		o.logger.WarnwCtx(ctx, "Fetch attempt failed, retrying",
			"attempt", attempt,
			"next_delay", next.String(),
			"error", err,
		)
	})

	if err == nil {
		return sanitize(*snap, competitor)
	}

	reason := fallbackReason(ctx, err)
	metrics.IncFallback(reason)
	o.logger.WarnwCtx(ctx, "Serving fallback snapshot",
		"reason", reason,
		"error", err,
	)

	return o.fallback.Generate(keyword, competitor, o.now())
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsPermanent(err):
		return "permanent_error"
	default:
		return "transient_error"
	}
}

func fallbackReason(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fallbackReasonCancelled
	}
	var fatal retry.FatalError
	if errors.As(err, &fatal) && fatal.IsFatal() {
		return fallbackReasonPermanent
	}
	return fallbackReasonExhausted
}

// sanitize enforces the snapshot invariants on upstream data: unique ids,
// ranks of at least 1 and no negative numbers.
func sanitize(s monitoring.ProductSnapshot, competitor string) monitoring.ProductSnapshot {
	out := s
	out.Competitor = competitor
	out.Provenance = monitoring.ProvenanceUpstream
	out.Products = make([]monitoring.CompetitorProduct, 0, len(s.Products))

	seen := make(map[string]bool, len(s.Products))
	for i, p := range s.Products {
		if p.ProductID == "" {
			p.ProductID = derivedProductID(p.URL, p.Name)
		}
		if p.ProductID == "" || seen[p.ProductID] {
			continue
		}
		seen[p.ProductID] = true

		if p.Rank < 1 {
			p.Rank = i + 1
		}
		p.Price = max(p.Price, 0)
		p.Reviews = max(p.Reviews, 0)
		out.Products = append(out.Products, p)
	}
	return out
}
