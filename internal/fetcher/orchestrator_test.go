package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/logger"
	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/cel"
	"rivalwatch/pkg/ratelimit"
)

// stubFetcher returns errs in order, then snap.
type stubFetcher struct {
	mu    sync.Mutex
	errs  []error
	snap  *monitoring.ProductSnapshot
	calls int
	times []time.Time
}

func (s *stubFetcher) FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.times = append(s.times, time.Now())
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.snap, nil
}

func transient() error { return &TransientError{StatusCode: 503, Err: errors.New("unavailable")} }

func upstreamSnapshot() *monitoring.ProductSnapshot {
	return &monitoring.ProductSnapshot{
		Competitor: "A",
		CapturedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Products: []monitoring.CompetitorProduct{
			{ProductID: "p1", Price: 1000, Rank: 1},
		},
	}
}

func newTestOrchestrator(t *testing.T, f ProductFetcher, base time.Duration, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	return NewOrchestrator(f, newTestFallback(t), 3, base, time.Second, logger.NopLogger(), opts...)
}

func TestOrchestrator_RecoversFromTransientFailures(t *testing.T) {
	f := &stubFetcher{errs: []error{transient(), transient()}, snap: upstreamSnapshot()}
	o := newTestOrchestrator(t, f, 20*time.Millisecond)

	snap := o.Fetch(context.Background(), "k", "A")

	assert.Equal(t, 3, f.calls)
	assert.Equal(t, monitoring.ProvenanceUpstream, snap.Provenance)
	assert.Equal(t, "p1", snap.Products[0].ProductID)

	// Waits double: base after the first failure, 2*base after the second.
	require.Len(t, f.times, 3)
	assert.GreaterOrEqual(t, f.times[1].Sub(f.times[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, f.times[2].Sub(f.times[1]), 40*time.Millisecond)
}

func TestOrchestrator_FallsBackAfterMaxAttempts(t *testing.T) {
	f := &stubFetcher{errs: []error{transient(), transient(), transient(), transient()}}
	now := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(t, f, time.Millisecond, WithClock(func() time.Time { return now }))

	snap := o.Fetch(context.Background(), "루테인", "닥터린")

	assert.Equal(t, 3, f.calls)
	assert.Equal(t, monitoring.ProvenanceFallback, snap.Provenance)
	assert.Equal(t, newTestFallback(t).Generate("루테인", "닥터린", now).Products, snap.Products)
}

func TestOrchestrator_PermanentErrorSkipsRetries(t *testing.T) {
	f := &stubFetcher{errs: []error{&PermanentError{StatusCode: 404, Err: errors.New("not found")}}, snap: upstreamSnapshot()}
	o := newTestOrchestrator(t, f, time.Millisecond)

	snap := o.Fetch(context.Background(), "k", "A")

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, monitoring.ProvenanceFallback, snap.Provenance)
}

func TestOrchestrator_NilSnapshotIsPermanent(t *testing.T) {
	f := &stubFetcher{}
	o := newTestOrchestrator(t, f, time.Millisecond)

	snap := o.Fetch(context.Background(), "k", "A")

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, monitoring.ProvenanceFallback, snap.Provenance)
}

func TestOrchestrator_CancelInterruptsBackoff(t *testing.T) {
	f := &stubFetcher{errs: []error{transient(), transient(), transient()}}
	o := newTestOrchestrator(t, f, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	snap := o.Fetch(ctx, "k", "A")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, monitoring.ProvenanceFallback, snap.Provenance)
}

func TestOrchestrator_PacerSpacesCalls(t *testing.T) {
	f := &stubFetcher{snap: upstreamSnapshot()}
	o := newTestOrchestrator(t, f, time.Millisecond, WithPacer(ratelimit.NewPacer(20, 1)))

	start := time.Now()
	for i := 0; i < 3; i++ {
		o.Fetch(context.Background(), "k", "A")
	}

	// One token up front, then one every 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, f.calls)
}

func TestSanitize(t *testing.T) {
	in := monitoring.ProductSnapshot{
		Competitor: "ignored",
		Products: []monitoring.CompetitorProduct{
			{ProductID: "a", Price: -5, Reviews: -1, Rank: 0},
			{ProductID: "a", Price: 100, Rank: 2},
			{ProductID: "", Name: "Vitamin C", Price: 200, Rank: 3},
			{ProductID: "", Price: 300, Rank: 4},
		},
		Provenance: monitoring.ProvenanceFallback,
	}

	out := sanitize(in, "A")

	assert.Equal(t, "A", out.Competitor)
	assert.Equal(t, monitoring.ProvenanceUpstream, out.Provenance)
	require.Len(t, out.Products, 2, "a product with no id, url or name is dropped")
	assert.Equal(t, monitoring.CompetitorProduct{ProductID: "a", Price: 0, Reviews: 0, Rank: 1}, out.Products[0])
	assert.Equal(t, derivedProductID("", "Vitamin C"), out.Products[1].ProductID)
	assert.Len(t, in.Products, 4, "input is not modified")
}

func TestDerivedProductID(t *testing.T) {
	byLink := derivedProductID("https://shop/1", "Vitamin C")
	assert.Equal(t, byLink, derivedProductID(" https://shop/1 ", "renamed"), "link wins over title")
	assert.Equal(t, derivedProductID("", "Vitamin C"), derivedProductID("", "Vitamin C"))
	assert.NotEqual(t, byLink, derivedProductID("https://shop/2", "Vitamin C"))
	assert.Len(t, byLink, 17)
	assert.Empty(t, derivedProductID("", "  "))
}

// competitorFetcher fails every call for the competitors in down and
// serves a fixed listing for everyone else.
type competitorFetcher struct {
	mu    sync.Mutex
	down  map[string]bool
	calls map[string]int
}

func (f *competitorFetcher) FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[competitor]++
	if f.down[competitor] {
		return nil, transient()
	}
	return &monitoring.ProductSnapshot{
		Competitor: competitor,
		CapturedAt: time.Now().UTC(),
		Products: []monitoring.CompetitorProduct{
			{ProductID: "b1", Price: 12000, Rank: 1, Reviews: 40},
			{ProductID: "b2", Price: 8000, Rank: 2, Reviews: 7},
		},
	}, nil
}

func TestOrchestrator_ServiceCheckIsolatesFailingCompetitor(t *testing.T) {
	ctx := context.Background()
	f := &competitorFetcher{down: map[string]bool{"A": true}, calls: map[string]int{}}
	o := newTestOrchestrator(t, f, time.Millisecond)

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	repo := monitoring.NewMemoryRepository()
	svc := monitoring.NewService(repo, repo, o, evaluator, logger.NopLogger(), monitoring.WithConcurrency(1))

	_, err = svc.Setup(ctx, monitoring.SetupRequest{Keyword: "k", Competitors: []string{"A", "B"}})
	require.NoError(t, err)

	first, err := svc.Check(ctx, "k")
	require.NoError(t, err)
	second, err := svc.Check(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, 6, f.calls["A"], "A exhausts its attempts on every cycle")
	assert.Equal(t, 2, f.calls["B"], "B is fetched once per cycle")

	for _, result := range []*monitoring.MonitoringResult{first, second} {
		require.Contains(t, result.ChangesDetected, "A")
		require.Contains(t, result.ChangesDetected, "B")
		assert.Equal(t, []string{"A"}, result.DegradedCompetitors)
		assert.Equal(t, monitoring.ProvenanceFallback, result.ChangesDetected["A"].Provenance)
		assert.Equal(t, monitoring.ProvenanceUpstream, result.ChangesDetected["B"].Provenance)
	}

	// B's second cycle diffs against its own first capture, untouched by A.
	b := second.ChangesDetected["B"]
	assert.Empty(t, b.PriceChanges)
	assert.Empty(t, b.RankChanges)
	assert.Empty(t, b.NewProducts)
	assert.False(t, b.Alerts)

	current, previous, err := repo.GetSnapshots(ctx, "k", "B")
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NotNil(t, previous)
	assert.Equal(t, monitoring.ProvenanceUpstream, current.Provenance)
	require.Len(t, current.Products, 2)
	assert.Equal(t, "b1", current.Products[0].ProductID)
	assert.Equal(t, 12000.0, current.Products[0].Price)

	current, _, err = repo.GetSnapshots(ctx, "k", "A")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, monitoring.ProvenanceFallback, current.Provenance)
	assert.NotEmpty(t, current.Products)
}
