package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/pkg/circuitbreaker"
)

func testBreakerConfig(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: circuitbreaker.RatioTrip(2, 0.5),
	}
}

func TestCircuitBreakerFetcher_OpensOnTransientFailures(t *testing.T) {
	inner := &stubFetcher{errs: []error{transient(), transient(), transient()}}
	f := NewCircuitBreakerFetcher(inner, testBreakerConfig("cb-transient"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.FetchListing(ctx, "k", "c")
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateOpen, f.Breaker().State())

	_, err := f.FetchListing(ctx, "k", "c")
	require.Error(t, err)
	assert.True(t, IsPermanent(err), "a rejected call goes straight to fallback")
	assert.True(t, circuitbreaker.IsRejection(err))
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerFetcher_PermanentErrorsDoNotTrip(t *testing.T) {
	perm := &PermanentError{StatusCode: 404, Err: errors.New("not found")}
	inner := &stubFetcher{errs: []error{perm, perm, perm, perm}}
	f := NewCircuitBreakerFetcher(inner, testBreakerConfig("cb-permanent"))

	for i := 0; i < 4; i++ {
		_, err := f.FetchListing(context.Background(), "k", "c")
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateClosed, f.Breaker().State())
	assert.Equal(t, 4, inner.calls)
}

func TestCircuitBreakerFetcher_PassesSnapshotThrough(t *testing.T) {
	inner := &stubFetcher{snap: upstreamSnapshot()}
	f := NewCircuitBreakerFetcher(inner, testBreakerConfig("cb-ok"))

	snap, err := f.FetchListing(context.Background(), "k", "c")
	require.NoError(t, err)
	assert.Equal(t, "p1", snap.Products[0].ProductID)
}
