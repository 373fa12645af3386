package monitoring

import (
	"time"

	"rivalwatch/pkg/errors"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Interval is how long a result stays fresh before the scheduler re-checks.
func (f Frequency) Interval() time.Duration {
	if f == FrequencyWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

type Provenance string

const (
	ProvenanceUpstream Provenance = "upstream"
	ProvenanceFallback Provenance = "fallback"
)

type AlertThresholds struct {
	PriceChangePercent  float64 `json:"priceChangePercent" bson:"price_change_percent"`
	NewProduct          bool    `json:"newProduct" bson:"new_product"`
	RankChange          bool    `json:"rankChange" bson:"rank_change"`
	ReviewChangePercent float64 `json:"reviewChangePercent" bson:"review_change_percent"`
}

type MonitoringConfig struct {
	Keyword          string          `json:"keyword" bson:"_id"`
	Competitors      []string        `json:"competitors" bson:"competitors"`
	MonitorFrequency Frequency       `json:"monitorFrequency" bson:"monitor_frequency"`
	AlertThresholds  AlertThresholds `json:"alertThresholds" bson:"alert_thresholds"`
	CreatedAt        time.Time       `json:"createdAt" bson:"created_at"`
	LastUpdated      time.Time       `json:"lastUpdated" bson:"last_updated"`
}

type CompetitorProduct struct {
	ProductID string  `json:"productId" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Reviews   int     `json:"reviews" bson:"reviews"`
	Rank      int     `json:"rank" bson:"rank"`
	Image     string  `json:"image,omitempty" bson:"image,omitempty"`
	URL       string  `json:"url,omitempty" bson:"url,omitempty"`
}

type ProductSnapshot struct {
	Competitor string              `json:"competitor" bson:"competitor"`
	CapturedAt time.Time           `json:"capturedAt" bson:"captured_at"`
	Products   []CompetitorProduct `json:"products" bson:"products"`
	Provenance Provenance          `json:"provenance" bson:"provenance"`
}

type PriceChange struct {
	Product       CompetitorProduct `json:"product"`
	OldPrice      float64           `json:"oldPrice"`
	NewPrice      float64           `json:"newPrice"`
	ChangePercent float64           `json:"changePercent"`
}

type RankChange struct {
	Product CompetitorProduct `json:"product"`
	OldRank int               `json:"oldRank"`
	NewRank int               `json:"newRank"`
	// Change is OldRank-NewRank, positive when the product moved up.
	Change int `json:"change"`
}

type ReviewChange struct {
	Product    CompetitorProduct `json:"product"`
	OldReviews int               `json:"oldReviews"`
	NewReviews int               `json:"newReviews"`
	// ChangePercent is nil when the product had no reviews before.
	ChangePercent *float64 `json:"changePercent"`
	NewTraction   bool     `json:"newTraction,omitempty"`
}

type NewProduct struct {
	Product CompetitorProduct `json:"product"`
}

type ChangeSet struct {
	PriceChanges  []PriceChange  `json:"priceChanges"`
	RankChanges   []RankChange   `json:"rankChanges"`
	ReviewChanges []ReviewChange `json:"reviewChanges"`
	NewProducts   []NewProduct   `json:"newProducts"`
	Alerts        bool           `json:"alerts"`
	Provenance    Provenance     `json:"provenance,omitempty"`
}

// Empty reports whether the set holds no change events.
func (cs ChangeSet) Empty() bool {
	return len(cs.PriceChanges) == 0 && len(cs.RankChanges) == 0 &&
		len(cs.ReviewChanges) == 0 && len(cs.NewProducts) == 0
}

// EventCount is the total number of change events of every kind.
func (cs ChangeSet) EventCount() int {
	return len(cs.PriceChanges) + len(cs.RankChanges) + len(cs.ReviewChanges) + len(cs.NewProducts)
}

type MonitoringResult struct {
	ID                  string               `json:"id" bson:"result_id"`
	Keyword             string               `json:"keyword" bson:"_id"`
	CheckedAt           time.Time            `json:"checkedAt" bson:"checked_at"`
	ChangesDetected     map[string]ChangeSet `json:"changesDetected" bson:"changes_detected"`
	HasAlerts           bool                 `json:"hasAlerts" bson:"has_alerts"`
	DegradedCompetitors []string             `json:"degradedCompetitors,omitempty" bson:"degraded_competitors,omitempty"`
}

type SetupRequest struct {
	Keyword          string           `json:"keyword" binding:"required"`
	Competitors      []string         `json:"competitors" binding:"required"`
	MonitorFrequency Frequency        `json:"monitorFrequency"`
	AlertThresholds  *AlertThresholds `json:"alertThresholds"`
	// CaptureBaseline runs one cycle right after the config is saved.
	CaptureBaseline bool `json:"captureBaseline"`
}

type ResultView struct {
	Top    int
	Filter string
}

type Summary struct {
	Total       int `json:"total"`
	WithChanges int `json:"withChanges"`
	WithAlerts  int `json:"withAlerts"`
}

// CheckAllReport lists what one pass over every configured keyword did.
type CheckAllReport struct {
	Checked []string                        `json:"checked"`
	Skipped []string                        `json:"skipped"`
	Failed  map[string]errors.ErrorResponse `json:"failed"`
	Alerts  []string                        `json:"alerts"`
	Results map[string]*MonitoringResult    `json:"results"`
}
