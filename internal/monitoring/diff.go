package monitoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Diff compares two captures of one competitor listing. A nil previous
// snapshot is a first capture and yields an empty change set. Products are
// matched by ProductID; products missing from current produce no event.
// Diff is pure: it never reads thresholds and never sets Alerts.
func Diff(previous *ProductSnapshot, current ProductSnapshot) ChangeSet {
	cs := newChangeSet(current.Provenance)
	if previous == nil {
		return cs
	}

	before := make(map[string]CompetitorProduct, len(previous.Products))
	for _, p := range previous.Products {
		if _, dup := before[p.ProductID]; !dup {
			before[p.ProductID] = p
		}
	}

	seen := make(map[string]struct{}, len(current.Products))
	for _, now := range orderedProducts(current.Products) {
		if _, dup := seen[now.ProductID]; dup {
			continue
		}
		seen[now.ProductID] = struct{}{}

		old, ok := before[now.ProductID]
		if !ok {
			cs.NewProducts = append(cs.NewProducts, NewProduct{Product: now})
			continue
		}

		// A zero previous price has no defined percentage and is skipped.
		if old.Price != now.Price && old.Price != 0 {
			cs.PriceChanges = append(cs.PriceChanges, PriceChange{
				Product:       now,
				OldPrice:      old.Price,
				NewPrice:      now.Price,
				ChangePercent: percentChange(decimal.NewFromFloat(old.Price), decimal.NewFromFloat(now.Price)),
			})
		}

		if old.Rank != now.Rank {
			cs.RankChanges = append(cs.RankChanges, RankChange{
				Product: now,
				OldRank: old.Rank,
				NewRank: now.Rank,
				Change:  old.Rank - now.Rank,
			})
		}

		if old.Reviews != now.Reviews {
			rc := ReviewChange{
				Product:    now,
				OldReviews: old.Reviews,
				NewReviews: now.Reviews,
			}
			if old.Reviews == 0 {
				rc.NewTraction = true
			} else {
				pct := percentChange(decimal.NewFromInt(int64(old.Reviews)), decimal.NewFromInt(int64(now.Reviews)))
				rc.ChangePercent = &pct
			}
			cs.ReviewChanges = append(cs.ReviewChanges, rc)
		}
	}

	return cs
}

func newChangeSet(provenance Provenance) ChangeSet {
	return ChangeSet{
		PriceChanges:  []PriceChange{},
		RankChanges:   []RankChange{},
		ReviewChanges: []ReviewChange{},
		NewProducts:   []NewProduct{},
		Provenance:    provenance,
	}
}

// percentChange returns (new-old)/old*100 rounded to two decimals.
func percentChange(old, now decimal.Decimal) float64 {
	pct, _ := now.Sub(old).Div(old).Mul(hundred).Round(2).Float64()
	return pct
}

// orderedProducts returns a copy sorted by rank, then product id.
func orderedProducts(products []CompetitorProduct) []CompetitorProduct {
	out := make([]CompetitorProduct, len(products))
	copy(out, products)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
