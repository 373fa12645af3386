package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"rivalwatch/pkg/metrics"
)

// Pacer spaces out calls to a shared upstream. A zero or negative RPS
// disables pacing.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(rps float64, burst int) *Pacer {
	if rps <= 0 {
		return &Pacer{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		metrics.RateLimitRequestsTotal.WithLabelValues("upstream_cancelled").Inc()
		return fmt.Errorf("upstream pacing: %w", err)
	}
	if time.Since(start) > time.Millisecond {
		metrics.RateLimitRequestsTotal.WithLabelValues("upstream_delayed").Inc()
	}
	return nil
}
