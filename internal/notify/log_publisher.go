package notify

import (
	"context"
	"fmt"

	"ms-registration/internal/logger"
)

// LogPublisher stands in for Kafka in mock mode and writes every message to the log.
type LogPublisher struct {
	Logger *logger.Logger
}

func (p LogPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	p.Logger.LogKafka("MOCK_PUBLISH", topic, fmt.Sprintf("key=%s %s", key, value))
	return nil
}
