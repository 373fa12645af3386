package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/config"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/errors"
	"rivalwatch/pkg/models"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaNotifyConfig{}, logger.NopLogger())
	assert.Error(t, err)

	p, err := NewProducer(config.KafkaNotifyConfig{Brokers: []string{"localhost:9092"}}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNewConsumer_RequiresBrokersAndGroup(t *testing.T) {
	_, err := NewConsumer(config.KafkaNotifyConfig{GroupID: "g"}, logger.NopLogger())
	assert.Error(t, err)

	_, err = NewConsumer(config.KafkaNotifyConfig{Brokers: []string{"localhost:9092"}}, logger.NopLogger())
	assert.Error(t, err)

	c, err := NewConsumer(config.KafkaNotifyConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, c.Close(), "closing an idle consumer is a no-op")
}

func TestKafkaProducer_RejectsInvalidEnvelopeWithoutNetwork(t *testing.T) {
	p := NewKafkaProducer(config.KafkaNotifyConfig{Brokers: []string{"127.0.0.1:1"}}, logger.NopLogger())
	defer p.Close()

	err := p.Publish(context.Background(), "alerts", models.MessageEnvelope{ID: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var fatal errors.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.True(t, fatal.IsFatal(), "invalid envelopes are not retried")
}
