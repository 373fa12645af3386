package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"rivalwatch/internal/config"
	"rivalwatch/internal/constants"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/errors"
	"rivalwatch/pkg/metrics"
	"rivalwatch/pkg/models"
	"rivalwatch/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaNotifyConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

// Publish writes one envelope keyed by its ID so every alert for a result
// lands on the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if err := models.ValidateMessageEnvelope(&msg); err != nil {
		return errors.ErrValidation.WithCause(err).AsFatal()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(msg.ID),
			Value:   body,
			Headers: headers,
			Time:    msg.Timestamp,
		},
	)
	metrics.ObserveKafkaWriteDuration(topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads alert envelopes, for operators tailing the alert
// topic from the CLI.
type KafkaConsumer struct {
	cfg    config.KafkaNotifyConfig
	wg     sync.WaitGroup
	mu     sync.Mutex
	reader *kafka.Reader
	logger logger.Logger
}

func NewKafkaConsumer(cfg config.KafkaNotifyConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{cfg: cfg, logger: log}
}

// Consume blocks until ctx is done. Messages that fail to decode or whose
// handler fails are logged and committed so one bad message cannot stall
// the group.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	c.wg.Add(1)
	defer c.wg.Done()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Infow("Stopped consuming", "topic", topic)
				return ctx.Err()
			}
			if stderrors.Is(err, io.EOF) {
				// Reader was closed.
				return nil
			}
			c.logger.Errorw("Error fetching kafka message", "error", err, "topic", topic)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, m, handler, topic)

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Errorw("Failed to commit message", "error", err, "topic", topic)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message, handler HandlerFunc, topic string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Panic recovered during message handling",
				"error", errors.RecoverPanic(r),
				"topic", topic,
			)
		}
	}()

	var envelope models.MessageEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		c.logger.Errorw("Failed to unmarshal message", "error", err, "topic", topic)
		return
	}

	msgCtx := tracing.ExtractTraceContext(ctx, m.Headers)
	msgCtx, span := tracing.StartSpan(msgCtx, "kafka.consume")
	defer span.End()

	if err := handler(msgCtx, envelope); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Message handler failed", "error", err, "topic", topic)
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	c.wg.Wait()
	return err
}
