package broker

import (
	"fmt"

	"rivalwatch/internal/config"
	"rivalwatch/internal/logger"
)

func NewProducer(cfg config.KafkaNotifyConfig, log logger.Logger) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer needs at least one broker")
	}
	return NewKafkaProducer(cfg, log), nil
}

func NewConsumer(cfg config.KafkaNotifyConfig, log logger.Logger) (Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer needs at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer needs a group id")
	}
	return NewKafkaConsumer(cfg, log), nil
}
