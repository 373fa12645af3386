package models

import "time"

const EventTypeCompetitorAlert = "competitor_alert"

// AlertEvent is the payload published when a check cycle raised an alert.
type AlertEvent struct {
	ResultID    string            `json:"result_id"`
	Keyword     string            `json:"keyword"`
	CheckedAt   time.Time         `json:"checked_at"`
	Competitors []CompetitorAlert `json:"competitors"`
}

// CompetitorAlert counts the change events of one competitor.
type CompetitorAlert struct {
	Competitor    string `json:"competitor"`
	Provenance    string `json:"provenance"`
	Alerts        bool   `json:"alerts"`
	PriceChanges  int    `json:"price_changes"`
	RankChanges   int    `json:"rank_changes"`
	ReviewChanges int    `json:"review_changes"`
	NewProducts   int    `json:"new_products"`
	// MaxPriceChangePercent is the largest absolute price move, signed.
	MaxPriceChangePercent float64 `json:"max_price_change_percent,omitempty"`
}

// ToPayload flattens the event into an envelope payload.
func (e AlertEvent) ToPayload() map[string]interface{} {
	competitors := make([]map[string]interface{}, 0, len(e.Competitors))
	for _, c := range e.Competitors {
		competitors = append(competitors, map[string]interface{}{
			"competitor":               c.Competitor,
			"provenance":               c.Provenance,
			"alerts":                   c.Alerts,
			"price_changes":            c.PriceChanges,
			"rank_changes":             c.RankChanges,
			"review_changes":           c.ReviewChanges,
			"new_products":             c.NewProducts,
			"max_price_change_percent": c.MaxPriceChangePercent,
		})
	}
	return map[string]interface{}{
		"result_id":   e.ResultID,
		"keyword":     e.Keyword,
		"checked_at":  e.CheckedAt.Format(time.RFC3339),
		"competitors": competitors,
	}
}
