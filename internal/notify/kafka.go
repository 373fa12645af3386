package notify

import (
	"context"
	"fmt"

	"rivalwatch/internal/broker"
	"rivalwatch/internal/constants"
	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/models"
	"rivalwatch/pkg/retry"
	"rivalwatch/pkg/tracing"

	"go.opentelemetry.io/otel/trace"
)

// KafkaChannel publishes alert events to a topic.
type KafkaChannel struct {
	producer broker.Producer
	topic    string
	policy   retry.Policy
}

func NewKafkaChannel(producer broker.Producer, topic string, policy retry.Policy) *KafkaChannel {
	if topic == "" {
		topic = constants.DefaultAlertTopic
	}
	return &KafkaChannel{producer: producer, topic: topic, policy: policy}
}

func (k *KafkaChannel) Name() string {
	return "kafka"
}

func (k *KafkaChannel) Send(ctx context.Context, result *monitoring.MonitoringResult) error {
	ctx, span := tracing.StartSpan(ctx, "notify.kafka")
	defer span.End()

	msg := models.NewMessageEnvelopeBuilder().
		WithID(result.ID).
		WithSource(constants.ServiceName).
		WithType(models.EventTypeCompetitorAlert).
		WithTimestamp(result.CheckedAt).
		WithPayload(alertEvent(result).ToPayload()).
		WithTraceID(trace.SpanContextFromContext(ctx).TraceID().String()).
		WithDegraded(len(result.DegradedCompetitors) > 0).
		Build()

	err := retry.Retry(ctx, k.policy, func() error {
		return k.producer.Publish(ctx, k.topic, *msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish alert for %s: %w", result.Keyword, err)
	}
	return nil
}
