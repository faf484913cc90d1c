package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	outboxadapter "solomon/contexts/number-marketplace/order-orchestrator-service/adapters/outbox"
	contractsv1 "solomon/contracts/gen/events/v1"
	sharedoutbox "solomon/internal/shared/outbox"
)

type fakeAppender struct {
	eventType   string
	aggregateID string
	envelope    contractsv1.Envelope
}

func (a *fakeAppender) Append(ctx context.Context, eventType, aggregateType, aggregateID string, envelope contractsv1.Envelope, now time.Time) (string, error) {
	a.eventType = eventType
	a.aggregateID = aggregateID
	a.envelope = envelope
	return "row-1", nil
}

func TestWriterEnqueueEncodesPayloadIntoEnvelope(t *testing.T) {
	appender := &fakeAppender{}
	writer := outboxadapter.Writer{Appender: appender}

	err := writer.Enqueue(context.Background(), "saga.compensate.cancel_number", "act-1", map[string]any{
		"provider_id":            "smsactivate",
		"provider_activation_id": "up-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appender.eventType != "saga.compensate.cancel_number" || appender.aggregateID != "act-1" {
		t.Fatalf("unexpected append call: %+v", appender)
	}
	if appender.envelope.PartitionKey != "act-1" || appender.envelope.PartitionKeyPath != "activation_id" {
		t.Fatalf("expected partitioning by activation_id, got %+v", appender.envelope)
	}

	var decoded map[string]string
	if err := json.Unmarshal(appender.envelope.Data, &decoded); err != nil {
		t.Fatalf("expected valid json payload: %v", err)
	}
	if decoded["provider_id"] != "smsactivate" || decoded["provider_activation_id"] != "up-1" {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}
}

type fakeCanceller struct {
	providerID string
	upstreamID string
	err        error
}

func (c *fakeCanceller) Cancel(ctx context.Context, providerID, upstreamID string) error {
	c.providerID = providerID
	c.upstreamID = upstreamID
	return c.err
}

func TestCancelNumberHandlerCancelsUpstreamNumber(t *testing.T) {
	canceller := &fakeCanceller{}
	handler := outboxadapter.CancelNumberHandler{Providers: canceller}

	data, _ := json.Marshal(map[string]string{
		"provider_id":            "smsactivate",
		"provider_activation_id": "up-9",
	})
	row := sharedoutbox.Row{Envelope: contractsv1.Envelope{Data: data}}

	if err := handler.Handle(context.Background(), row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canceller.providerID != "smsactivate" || canceller.upstreamID != "up-9" {
		t.Fatalf("expected the upstream number cancelled, got %+v", canceller)
	}
}

func TestCancelNumberHandlerRejectsMissingFields(t *testing.T) {
	handler := outboxadapter.CancelNumberHandler{Providers: &fakeCanceller{}}
	data, _ := json.Marshal(map[string]string{"provider_id": "smsactivate"})
	row := sharedoutbox.Row{Envelope: contractsv1.Envelope{Data: data}}

	if err := handler.Handle(context.Background(), row); err == nil {
		t.Fatalf("expected an error for a payload missing provider_activation_id")
	}
}
