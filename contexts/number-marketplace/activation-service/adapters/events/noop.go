// Package events holds the real-time event publisher adapter. Until
// internal/platform/messaging grows a live Kafka producer it satisfies
// ports.EventPublisher with a structured log line, keeping the Kernel's
// after-commit emission path exercised end to end.
package events

import (
	"context"
	"log/slog"

	"solomon/contexts/number-marketplace/activation-service/ports"
)

type LoggingPublisher struct {
	Logger *slog.Logger
}

func (p LoggingPublisher) PublishActivationEvent(ctx context.Context, activationID string, eventType string, payload map[string]any) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fields := make([]any, 0, len(payload)*2+6)
	fields = append(fields,
		"event", "activation_event_published",
		"module", "number-marketplace/activation-service",
		"layer", "adapter",
		"activation_id", activationID,
		"event_type", eventType,
	)
	for key, value := range payload {
		fields = append(fields, key, value)
	}
	logger.Info("activation event", fields...)
	return nil
}

var _ ports.EventPublisher = LoggingPublisher{}
