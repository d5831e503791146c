package notify

import (
	"context"
	"fmt"

	"ms-registration/internal/config"
	"ms-registration/internal/kafka"
	"ms-registration/internal/logger"
)

// NewPublisher returns the Kafka producer, or a LogPublisher when Kafka is
// disabled or in mock mode. The returned close func is never nil.
func NewPublisher(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) (Publisher, func() error) {
	if !cfg.Enabled || cfg.MockMode {
		log.Info("KAFKA", "Kafka mock mode: notifications are written to the log")
		return LogPublisher{Logger: log}, func() error { return nil }
	}

	if cfg.EnsureTopic {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, cfg.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
	}
	producer := kafka.NewProducer(cfg.Brokers, log)
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Brokers))
	return producer, producer.Close
}
