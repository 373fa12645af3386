package fetcher

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"
	_ "time/tzdata"

	"rivalwatch/internal/constants"
	"rivalwatch/internal/monitoring"
)

var fallbackVariants = []string{
	"오리지널", "플러스", "프리미엄", "골드", "데일리",
	"맥스", "슬림", "패밀리", "스페셜", "베이직",
}

// FallbackGenerator synthesizes a stand-in listing when the upstream is
// unreachable. Output depends only on keyword, competitor and the calendar
// date in the configured zone, so repeated calls on one day agree exactly.
type FallbackGenerator struct {
	loc         *time.Location
	minProducts int
	maxProducts int
}

func NewFallbackGenerator(timezone string, minProducts, maxProducts int) (*FallbackGenerator, error) {
	if timezone == "" {
		timezone = constants.DefaultFallbackTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load fallback timezone %q: %w", timezone, err)
	}
	if minProducts <= 0 {
		minProducts = constants.DefaultFallbackMinProducts
	}
	if maxProducts < minProducts {
		maxProducts = minProducts
	}
	if maxProducts > len(fallbackVariants) {
		maxProducts = len(fallbackVariants)
	}
	if minProducts > maxProducts {
		minProducts = maxProducts
	}
	return &FallbackGenerator{loc: loc, minProducts: minProducts, maxProducts: maxProducts}, nil
}

func (g *FallbackGenerator) Generate(keyword, competitor string, now time.Time) monitoring.ProductSnapshot {
	local := now.In(g.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)

	sum := sha256.Sum256([]byte(keyword + "|" + competitor + "|" + day.Format(time.DateOnly)))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))
	prefix := hex.EncodeToString(sum[16:22])

	n := g.minProducts + rng.IntN(g.maxProducts-g.minProducts+1)
	variants := rng.Perm(len(fallbackVariants))

	products := make([]monitoring.CompetitorProduct, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, monitoring.CompetitorProduct{
			ProductID: fmt.Sprintf("fb-%s-%d", prefix, i+1),
			Name:      fmt.Sprintf("%s %s %s", competitor, keyword, fallbackVariants[variants[i]]),
			Price:     float64((50 + rng.IntN(950)) * 100),
			Reviews:   rng.IntN(5000),
			Rank:      i + 1,
		})
	}

	return monitoring.ProductSnapshot{
		Competitor: competitor,
		CapturedAt: day,
		Products:   products,
		Provenance: monitoring.ProvenanceFallback,
	}
}
