package bootstrap

import (
	"context"
	"fmt"

	"rivalwatch/internal/broker"
	"rivalwatch/internal/config"
	"rivalwatch/internal/logger"
	"rivalwatch/internal/notify"
	"rivalwatch/pkg/retry"
)

// Base owns the alert delivery side of the service: the Kafka producer and
// the channels built on top of it.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Channels []notify.Channel
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) NotifyPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	r := b.Config.Notify.Retry
	if r.MaxAttempts > 0 {
		policy.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay > 0 {
		policy.InitialInterval = r.BaseDelay
	}
	if r.MaxDelay > 0 {
		policy.MaxInterval = r.MaxDelay
	}
	return policy
}

// InitNotifiers builds every enabled alert channel. A channel that cannot
// start is logged and skipped; alerts are best effort.
func (b *Base) InitNotifiers() *notify.Fanout {
	policy := b.NotifyPolicy()

	if b.Config.Notify.Kafka.Enabled {
		producer, err := broker.NewProducer(b.Config.Notify.Kafka, b.Logger)
		if err != nil {
			b.Logger.Warnw("Kafka alerts disabled", "error", err)
		} else {
			b.Producer = producer
			b.Channels = append(b.Channels, notify.NewKafkaChannel(producer, b.Config.Notify.Kafka.Topic, policy))
			b.Logger.Infow("Kafka alerts enabled", "topic", b.Config.Notify.Kafka.Topic)
		}
	}

	if b.Config.Notify.Telegram.Enabled {
		bot, err := notify.NewTelegramBot(b.Config.Notify.Telegram.Token)
		if err != nil {
			b.Logger.Warnw("Telegram alerts disabled", "error", err)
		} else {
			b.Channels = append(b.Channels, notify.NewTelegramChannel(bot, b.Config.Notify.Telegram.ChatID, policy))
			b.Logger.Infow("Telegram alerts enabled", "chat_id", b.Config.Notify.Telegram.ChatID)
		}
	}

	return notify.NewFanout(b.Logger, b.Channels...)
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
