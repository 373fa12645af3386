package monitoring

import (
	"fmt"
	"strings"
)

var (
	defaultThresholds = AlertThresholds{
		PriceChangePercent:  5,
		NewProduct:          true,
		RankChange:          true,
		ReviewChangePercent: 10,
	}

	validFrequencies = map[Frequency]bool{
		FrequencyDaily:  true,
		FrequencyWeekly: true,
	}
)

// CanonicalName is the single identifier used for a keyword or competitor
// everywhere past setup: trimmed, with inner whitespace runs collapsed.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeSetupRequest canonicalizes names, applies defaults and validates
// the result. The returned request is safe to persist.
func NormalizeSetupRequest(req SetupRequest, defaultFrequency Frequency) (SetupRequest, error) {
	out := req
	out.Keyword = CanonicalName(req.Keyword)
	if out.Keyword == "" {
		return SetupRequest{}, fmt.Errorf("keyword is required")
	}

	if len(req.Competitors) == 0 {
		return SetupRequest{}, fmt.Errorf("at least one competitor is required")
	}
	seen := make(map[string]bool, len(req.Competitors))
	out.Competitors = make([]string, 0, len(req.Competitors))
	for i, c := range req.Competitors {
		name := CanonicalName(c)
		if name == "" {
			return SetupRequest{}, fmt.Errorf("competitors[%d] is empty", i)
		}
		if seen[name] {
			return SetupRequest{}, fmt.Errorf("duplicate competitor: %s", name)
		}
		seen[name] = true
		out.Competitors = append(out.Competitors, name)
	}

	if out.MonitorFrequency == "" {
		out.MonitorFrequency = defaultFrequency
	}
	if out.MonitorFrequency == "" {
		out.MonitorFrequency = FrequencyDaily
	}
	if !validFrequencies[out.MonitorFrequency] {
		return SetupRequest{}, fmt.Errorf("invalid monitorFrequency: %s. Allowed: daily, weekly", out.MonitorFrequency)
	}

	thresholds := defaultThresholds
	if req.AlertThresholds != nil {
		thresholds = *req.AlertThresholds
	}
	if err := ValidateThresholds(thresholds); err != nil {
		return SetupRequest{}, err
	}
	out.AlertThresholds = &thresholds

	return out, nil
}

func ValidateThresholds(t AlertThresholds) error {
	if !(t.PriceChangePercent > 0) {
		return fmt.Errorf("alertThresholds.priceChangePercent must be greater than 0")
	}
	if !(t.ReviewChangePercent > 0) {
		return fmt.Errorf("alertThresholds.reviewChangePercent must be greater than 0")
	}
	return nil
}
