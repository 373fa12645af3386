package fetcher

import (
	"context"
	"fmt"

	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/circuitbreaker"
)

// CircuitBreakerFetcher stops calling an upstream that keeps failing. A
// rejected call is reported as permanent so the orchestrator goes straight
// to the fallback instead of retrying into an open breaker.
type CircuitBreakerFetcher struct {
	fetcher ProductFetcher
	cb      *circuitbreaker.Wrapper
}

func NewCircuitBreakerFetcher(fetcher ProductFetcher, cfg circuitbreaker.Config) *CircuitBreakerFetcher {
	if cfg.IsSuccessful == nil {
		// A 4xx means the upstream answered; only transient failures count
		// against it.
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || IsPermanent(err)
		}
	}
	return &CircuitBreakerFetcher{
		fetcher: fetcher,
		cb:      circuitbreaker.NewWrapper(cfg),
	}
}

func (f *CircuitBreakerFetcher) FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error) {
	result, err := f.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return f.fetcher.FetchListing(ctx, keyword, competitor)
	})

	f.cb.RecordRequest(err == nil)

	if err != nil {
		if circuitbreaker.IsRejection(err) {
			return nil, &PermanentError{Err: fmt.Errorf("circuit breaker %s rejected call: %w", f.cb.Name(), err)}
		}
		return nil, err
	}

	snap, ok := result.(*monitoring.ProductSnapshot)
	if !ok || snap == nil {
		return nil, &PermanentError{Err: fmt.Errorf("fetcher returned invalid result type %T", result)}
	}

	return snap, nil
}

// Breaker exposes the wrapper for health reporting.
func (f *CircuitBreakerFetcher) Breaker() *circuitbreaker.Wrapper {
	return f.cb
}
