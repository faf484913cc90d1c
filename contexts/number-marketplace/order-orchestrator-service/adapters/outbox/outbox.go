// Package outbox bridges the orchestrator's narrow ports.OutboxWriter onto
// the shared dispatcher engine of internal/shared/outbox, and supplies the
// Handler that actually delivers saga.compensate.cancel_number rows (spec.md
// §4.3 step 5, §4.6).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
	contractsv1 "solomon/contracts/gen/events/v1"
	sharedoutbox "solomon/internal/shared/outbox"
)

// Appender matches internal/shared/outbox/memory.Store.Append's signature
// so this package never imports the memory package's concrete type
// directly; memory.Store is the only implementation in this module.
type Appender interface {
	Append(ctx context.Context, eventType, aggregateType, aggregateID string, envelope contractsv1.Envelope, now time.Time) (string, error)
}

// Writer satisfies ports.OutboxWriter by encoding the saga's payload map
// into a shared outbox Row and appending it through Appender, in place of
// InProcessOutbox for deployments that run the shared dispatcher.
type Writer struct {
	Appender      Appender
	SourceService string
	IDGen         ports.IDGenerator
	Clock         ports.Clock
}

func (w Writer) Enqueue(ctx context.Context, eventType, aggregateID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox enqueue %s: marshal payload: %w", eventType, err)
	}
	now := w.now()
	envelope := contractsv1.Envelope{
		EventType:        eventType,
		OccurredAt:       now,
		SourceService:    w.sourceService(),
		SchemaVersion:    1,
		PartitionKeyPath: "activation_id",
		PartitionKey:     aggregateID,
		Data:             data,
	}
	if w.IDGen != nil {
		envelope.EventID = w.IDGen.NewID()
	}
	_, err = w.Appender.Append(ctx, eventType, "activation", aggregateID, envelope, now)
	return err
}

func (w Writer) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now()
}

func (w Writer) sourceService() string {
	if w.SourceService == "" {
		return "number-marketplace.order-orchestrator-service"
	}
	return w.SourceService
}

// ProviderCanceller is the slice of ports.ProviderRegistry the compensation
// handler needs.
type ProviderCanceller interface {
	Cancel(ctx context.Context, providerID, upstreamID string) error
}

// CancelNumberHandler delivers saga.compensate.cancel_number rows (spec.md
// §4.3 step 5): release the acquired number back to the upstream provider
// once the post-acquire commit failed. The saga's compensate step only
// queues this row and moves the activation to FAILED; neither it nor this
// handler touches the wallet.
type CancelNumberHandler struct {
	Providers ProviderCanceller
}

func (h CancelNumberHandler) Handle(ctx context.Context, row sharedoutbox.Row) error {
	var payload struct {
		ProviderID           string `json:"provider_id"`
		ProviderActivationID string `json:"provider_activation_id"`
	}
	if err := json.Unmarshal(row.Envelope.Data, &payload); err != nil {
		return fmt.Errorf("saga.compensate.cancel_number: decode payload: %w", err)
	}
	if payload.ProviderID == "" || payload.ProviderActivationID == "" {
		return fmt.Errorf("saga.compensate.cancel_number: missing provider_id or provider_activation_id")
	}
	return h.Providers.Cancel(ctx, payload.ProviderID, payload.ProviderActivationID)
}

// AsHandler adapts CancelNumberHandler to sharedoutbox.Handler for
// registration in a Dispatcher.Handlers map.
func (h CancelNumberHandler) AsHandler() sharedoutbox.Handler {
	return h.Handle
}
