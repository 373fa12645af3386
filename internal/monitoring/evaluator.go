package monitoring

import (
	"math"
)

// Evaluate returns a copy of cs with Alerts set against t. The input is
// never modified, so a stored change set can be re-evaluated after the
// thresholds change without fetching again.
func Evaluate(cs ChangeSet, t AlertThresholds) ChangeSet {
	out := cloneChangeSet(cs)
	out.Alerts = triggers(out, t)
	return out
}

func triggers(cs ChangeSet, t AlertThresholds) bool {
	for _, pc := range cs.PriceChanges {
		if math.Abs(pc.ChangePercent) >= t.PriceChangePercent {
			return true
		}
	}

	if t.NewProduct && len(cs.NewProducts) > 0 {
		return true
	}

	if t.RankChange && len(cs.RankChanges) > 0 {
		return true
	}

	for _, rc := range cs.ReviewChanges {
		// Going from zero reviews to some is always worth a look.
		if rc.ChangePercent == nil || math.Abs(*rc.ChangePercent) >= t.ReviewChangePercent {
			return true
		}
	}

	return false
}

func cloneChangeSet(cs ChangeSet) ChangeSet {
	out := ChangeSet{
		PriceChanges:  append(make([]PriceChange, 0, len(cs.PriceChanges)), cs.PriceChanges...),
		RankChanges:   append(make([]RankChange, 0, len(cs.RankChanges)), cs.RankChanges...),
		ReviewChanges: make([]ReviewChange, 0, len(cs.ReviewChanges)),
		NewProducts:   append(make([]NewProduct, 0, len(cs.NewProducts)), cs.NewProducts...),
		Alerts:        cs.Alerts,
		Provenance:    cs.Provenance,
	}
	for _, rc := range cs.ReviewChanges {
		if rc.ChangePercent != nil {
			pct := *rc.ChangePercent
			rc.ChangePercent = &pct
		}
		out.ReviewChanges = append(out.ReviewChanges, rc)
	}
	return out
}

// HasAlerts is the OR of Alerts across competitors.
func HasAlerts(changes map[string]ChangeSet) bool {
	for _, cs := range changes {
		if cs.Alerts {
			return true
		}
	}
	return false
}
