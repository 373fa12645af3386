package monitoring

import (
	"context"

	"rivalwatch/pkg/cel"
)

const (
	KindPrice  = "price"
	KindRank   = "rank"
	KindReview = "review"
	KindNew    = "new"
)

// TopN keeps only events whose product currently ranks within the top n.
// Alerts and Provenance are carried over unchanged.
func TopN(cs ChangeSet, n int) ChangeSet {
	out := newChangeSet(cs.Provenance)
	out.Alerts = cs.Alerts
	if n <= 0 {
		return out
	}

	for _, pc := range cs.PriceChanges {
		if pc.Product.Rank <= n {
			out.PriceChanges = append(out.PriceChanges, pc)
		}
	}
	for _, rc := range cs.RankChanges {
		if rc.NewRank <= n {
			out.RankChanges = append(out.RankChanges, rc)
		}
	}
	for _, rc := range cs.ReviewChanges {
		if rc.Product.Rank <= n {
			out.ReviewChanges = append(out.ReviewChanges, rc)
		}
	}
	for _, np := range cs.NewProducts {
		if np.Product.Rank <= n {
			out.NewProducts = append(out.NewProducts, np)
		}
	}
	return out
}

// FilterView keeps the events for which expr evaluates to true.
func FilterView(ctx context.Context, eval *cel.Evaluator, competitor string, cs ChangeSet, expr string) (ChangeSet, error) {
	out := newChangeSet(cs.Provenance)
	out.Alerts = cs.Alerts

	for _, pc := range cs.PriceChanges {
		ok, err := eval.EvaluateFilter(ctx, expr, cel.Event{
			Kind:          KindPrice,
			Competitor:    competitor,
			Product:       productVars(pc.Product),
			OldValue:      pc.OldPrice,
			NewValue:      pc.NewPrice,
			ChangePercent: pc.ChangePercent,
		})
		if err != nil {
			return ChangeSet{}, err
		}
		if ok {
			out.PriceChanges = append(out.PriceChanges, pc)
		}
	}

	for _, rc := range cs.RankChanges {
		ok, err := eval.EvaluateFilter(ctx, expr, cel.Event{
			Kind:       KindRank,
			Competitor: competitor,
			Product:    productVars(rc.Product),
			OldValue:   float64(rc.OldRank),
			NewValue:   float64(rc.NewRank),
		})
		if err != nil {
			return ChangeSet{}, err
		}
		if ok {
			out.RankChanges = append(out.RankChanges, rc)
		}
	}

	for _, rc := range cs.ReviewChanges {
		ev := cel.Event{
			Kind:        KindReview,
			Competitor:  competitor,
			Product:     productVars(rc.Product),
			OldValue:    float64(rc.OldReviews),
			NewValue:    float64(rc.NewReviews),
			NewTraction: rc.NewTraction,
		}
		if rc.ChangePercent != nil {
			ev.ChangePercent = *rc.ChangePercent
		}
		ok, err := eval.EvaluateFilter(ctx, expr, ev)
		if err != nil {
			return ChangeSet{}, err
		}
		if ok {
			out.ReviewChanges = append(out.ReviewChanges, rc)
		}
	}

	for _, np := range cs.NewProducts {
		ok, err := eval.EvaluateFilter(ctx, expr, cel.Event{
			Kind:       KindNew,
			Competitor: competitor,
			Product:    productVars(np.Product),
			NewValue:   np.Product.Price,
		})
		if err != nil {
			return ChangeSet{}, err
		}
		if ok {
			out.NewProducts = append(out.NewProducts, np)
		}
	}

	return out, nil
}

func productVars(p CompetitorProduct) map[string]interface{} {
	return map[string]interface{}{
		"productId": p.ProductID,
		"name":      p.Name,
		"price":     p.Price,
		"reviews":   p.Reviews,
		"rank":      p.Rank,
	}
}
