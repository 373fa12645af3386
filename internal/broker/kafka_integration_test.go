//go:build integration

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"rivalwatch/internal/config"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/models"
)

func TestKafka_PublishAndConsume(t *testing.T) {
	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("rivalwatch-test"))
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	cfg := config.KafkaNotifyConfig{Brokers: brokers, GroupID: "rivalwatch-test-group"}
	log := logger.NopLogger()

	producer := NewKafkaProducer(cfg, log)
	defer producer.Close()

	msg := models.NewMessageEnvelopeBuilder().
		WithID("result-1").
		WithSource("monitoring-service").
		WithType(models.EventTypeCompetitorAlert).
		WithPayload(map[string]interface{}{"keyword": "비타민"}).
		WithDegraded(true).
		Build()

	require.Eventually(t, func() bool {
		return producer.Publish(ctx, "competitor_alerts", *msg) == nil
	}, 30*time.Second, time.Second)

	consumer := NewKafkaConsumer(cfg, log)
	consumeCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	received := make(chan models.MessageEnvelope, 1)
	go func() {
		_ = consumer.Consume(consumeCtx, "competitor_alerts", func(_ context.Context, m models.MessageEnvelope) error {
			received <- m
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, "result-1", got.ID)
		assert.Equal(t, models.EventTypeCompetitorAlert, got.Type)
		assert.True(t, got.Metadata.Degraded)
		assert.Equal(t, "비타민", got.Payload["keyword"])
	case <-consumeCtx.Done():
		t.Fatal("alert was not consumed")
	}

	cancel()
	require.NoError(t, consumer.Close())
}
