package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	outboxadapter "solomon/contexts/number-marketplace/catalog-service/adapters/outbox"
	"solomon/contexts/number-marketplace/catalog-service/ports"
	contractsv1 "solomon/contracts/gen/events/v1"
	sharedoutbox "solomon/internal/shared/outbox"
)

type fakeAppender struct {
	eventType     string
	aggregateType string
	aggregateID   string
}

func (a *fakeAppender) Append(ctx context.Context, eventType, aggregateType, aggregateID string, envelope contractsv1.Envelope, now time.Time) (string, error) {
	a.eventType = eventType
	a.aggregateType = aggregateType
	a.aggregateID = aggregateID
	return "row-1", nil
}

func TestWriterAppendOutboxForwardsEnvelope(t *testing.T) {
	appender := &fakeAppender{}
	writer := outboxadapter.Writer{Appender: appender}

	err := writer.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventType:    "offer.updated",
		PartitionKey: "offer-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appender.eventType != "offer.updated" || appender.aggregateType != "offer" || appender.aggregateID != "offer-1" {
		t.Fatalf("unexpected append call: %+v", appender)
	}
}

type fakeSearch struct {
	upserted ports.Offer
	err      error
}

func (s *fakeSearch) UpsertOffer(ctx context.Context, offer ports.Offer) (string, error) {
	s.upserted = offer
	return "task-1", s.err
}

func TestOfferProjectionHandlerUpsertsDecodedOffer(t *testing.T) {
	search := &fakeSearch{}
	handler := outboxadapter.OfferProjectionHandler{Search: search}

	data, _ := json.Marshal(ports.Offer{OfferID: "offer-1", PriceCents: 1500, Stock: 3, Active: true})
	row := sharedoutbox.Row{EventType: "offer.updated", Envelope: contractsv1.Envelope{Data: data}}

	if err := handler.Handle(context.Background(), row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.upserted.OfferID != "offer-1" || search.upserted.PriceCents != 1500 {
		t.Fatalf("unexpected upserted offer: %+v", search.upserted)
	}
}

func TestOfferProjectionHandlerRejectsInvalidPayload(t *testing.T) {
	handler := outboxadapter.OfferProjectionHandler{Search: &fakeSearch{}}
	row := sharedoutbox.Row{EventType: "offer.updated", Envelope: contractsv1.Envelope{Data: []byte("not json")}}

	if err := handler.Handle(context.Background(), row); err == nil {
		t.Fatalf("expected a decode error for invalid payload")
	}
}
