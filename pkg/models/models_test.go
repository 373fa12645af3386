package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderFillsTimestamp(t *testing.T) {
	msg := NewMessageEnvelopeBuilder().
		WithID("r-1").
		WithSource("monitoring-service").
		WithType(EventTypeCompetitorAlert).
		WithDegraded(true).
		Build()

	assert.False(t, msg.Timestamp.IsZero())
	assert.True(t, msg.Metadata.Degraded)
	assert.NotNil(t, msg.Payload)
	require.NoError(t, ValidateMessageEnvelope(msg))
}

func TestValidateMessageEnvelope(t *testing.T) {
	base := func() *MessageEnvelope {
		return &MessageEnvelope{
			ID:        "r-1",
			Source:    "monitoring-service",
			Type:      EventTypeCompetitorAlert,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{},
		}
	}

	tests := []struct {
		name  string
		edit  func(m *MessageEnvelope)
		field string
	}{
		{"missing id", func(m *MessageEnvelope) { m.ID = "" }, "id"},
		{"missing source", func(m *MessageEnvelope) { m.Source = "" }, "source"},
		{"missing type", func(m *MessageEnvelope) { m.Type = "" }, "type"},
		{"zero timestamp", func(m *MessageEnvelope) { m.Timestamp = time.Time{} }, "timestamp"},
		{"nil payload", func(m *MessageEnvelope) { m.Payload = nil }, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := base()
			tt.edit(msg)

			err := ValidateMessageEnvelope(msg)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.Error(t, ValidateMessageEnvelope(nil))
}

func TestAlertEventToPayload(t *testing.T) {
	checked := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	payload := AlertEvent{
		ResultID:  "r-1",
		Keyword:   "비타민",
		CheckedAt: checked,
		Competitors: []CompetitorAlert{
			{Competitor: "A", Provenance: "upstream", Alerts: true, PriceChanges: 1, MaxPriceChangePercent: -10},
		},
	}.ToPayload()

	assert.Equal(t, "비타민", payload["keyword"])
	assert.Equal(t, "2026-10-18T09:00:00Z", payload["checked_at"])

	competitors, ok := payload["competitors"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, competitors, 1)
	assert.Equal(t, -10.0, competitors[0]["max_price_change_percent"])

	msg := &MessageEnvelope{Payload: payload}
	v, ok := msg.GetPayloadField("result_id")
	assert.True(t, ok)
	assert.Equal(t, "r-1", v)
}
