// Package outbox bridges catalog-service's ports.OutboxWriter onto the
// shared dispatcher engine of internal/shared/outbox, and supplies the
// Handler that projects offer.created / offer.updated rows into the search
// index (spec.md §4.6, §4.8).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solomon/contexts/number-marketplace/catalog-service/ports"
	contractsv1 "solomon/contracts/gen/events/v1"
	sharedoutbox "solomon/internal/shared/outbox"
)

// Appender matches internal/shared/outbox/memory.Store.Append's signature
// so this package never imports the memory package's concrete type
// directly; memory.Store is the only implementation in this module.
type Appender interface {
	Append(ctx context.Context, eventType, aggregateType, aggregateID string, envelope contractsv1.Envelope, now time.Time) (string, error)
}

// Writer satisfies ports.OutboxWriter by forwarding the already-built
// envelope to the shared dispatcher instead of the service's own
// in-memory/postgres outbox table.
type Writer struct {
	Appender Appender
	Clock    ports.Clock
}

func (w Writer) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	_, err := w.Appender.Append(ctx, envelope.EventType, "offer", envelope.PartitionKey, envelope, w.now())
	return err
}

func (w Writer) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now()
}

// SearchUpserter is the slice of ports.SearchIndex the projection handler
// needs; offer.created and offer.updated both resolve to the same
// AddDocuments-style upsert.
type SearchUpserter interface {
	UpsertOffer(ctx context.Context, offer ports.Offer) (string, error)
}

// OfferProjectionHandler delivers offer.created / offer.updated rows to the
// search index.
type OfferProjectionHandler struct {
	Search SearchUpserter
}

func (h OfferProjectionHandler) Handle(ctx context.Context, row sharedoutbox.Row) error {
	var offer ports.Offer
	if err := json.Unmarshal(row.Envelope.Data, &offer); err != nil {
		return fmt.Errorf("%s: decode offer payload: %w", row.EventType, err)
	}
	_, err := h.Search.UpsertOffer(ctx, offer)
	return err
}

// AsHandler adapts OfferProjectionHandler to sharedoutbox.Handler for
// registration in a Dispatcher.Handlers map, under both "offer.created" and
// "offer.updated".
func (h OfferProjectionHandler) AsHandler() sharedoutbox.Handler {
	return h.Handle
}
