package notify

import (
	"context"
	"errors"
	"math"

	"rivalwatch/internal/logger"
	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/metrics"
	"rivalwatch/pkg/models"
)

// Channel is one alert destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, result *monitoring.MonitoringResult) error
}

// Fanout delivers a result to every channel. A failing channel does not
// stop the others; all failures are joined into the returned error.
type Fanout struct {
	channels []Channel
	logger   logger.Logger
}

func NewFanout(log logger.Logger, channels ...Channel) *Fanout {
	return &Fanout{channels: channels, logger: log}
}

func (f *Fanout) Len() int {
	return len(f.channels)
}

func (f *Fanout) Notify(ctx context.Context, result *monitoring.MonitoringResult) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Send(ctx, result); err != nil {
			metrics.IncNotification(ch.Name(), "error")
			f.logger.WarnwCtx(ctx, "Alert channel failed", "channel", ch.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		metrics.IncNotification(ch.Name(), "success")
	}
	return errors.Join(errs...)
}

// alertEvent summarizes a result for the wire, competitors sorted by name.
func alertEvent(result *monitoring.MonitoringResult) models.AlertEvent {
	event := models.AlertEvent{
		ResultID:    result.ID,
		Keyword:     result.Keyword,
		CheckedAt:   result.CheckedAt,
		Competitors: make([]models.CompetitorAlert, 0, len(result.ChangesDetected)),
	}

	for _, competitor := range sortedCompetitors(result) {
		cs := result.ChangesDetected[competitor]
		alert := models.CompetitorAlert{
			Competitor:    competitor,
			Provenance:    string(cs.Provenance),
			Alerts:        cs.Alerts,
			PriceChanges:  len(cs.PriceChanges),
			RankChanges:   len(cs.RankChanges),
			ReviewChanges: len(cs.ReviewChanges),
			NewProducts:   len(cs.NewProducts),
		}
		for _, pc := range cs.PriceChanges {
			if math.Abs(pc.ChangePercent) > math.Abs(alert.MaxPriceChangePercent) {
				alert.MaxPriceChangePercent = pc.ChangePercent
			}
		}
		event.Competitors = append(event.Competitors, alert)
	}

	return event
}
