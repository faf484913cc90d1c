package application_test

import (
	"context"
	"testing"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

func TestKernelTransitionLifecycle(t *testing.T) {
	module := activationservice.NewInMemoryModule(nil)
	ctx := context.Background()

	activation, err := module.Service.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:     "user-1",
		ProviderID: "smsactivate",
		PriceCents: 150,
	})
	if err != nil {
		t.Fatalf("create activation failed: %v", err)
	}

	if _, err := module.Kernel.Transition(ctx, ports.TransitionRequest{
		ActivationID: activation.ActivationID,
		ToState:      statemachine.Active,
		Reason:       "number acquired",
	}); err != nil {
		t.Fatalf("reserved -> active failed: %v", err)
	}

	updated, err := module.Service.GetActivation(ctx, activation.ActivationID)
	if err != nil {
		t.Fatalf("get activation failed: %v", err)
	}
	if updated.State != statemachine.Active {
		t.Fatalf("expected ACTIVE, got %s", updated.State)
	}

	history, err := module.Service.History(ctx, activation.ActivationID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].ToState != statemachine.Active {
		t.Fatalf("expected one history row to ACTIVE, got %+v", history)
	}

	counts := module.Metrics.Snapshot()
	if counts["RESERVED->ACTIVE@smsactivate"] != 1 {
		t.Fatalf("expected one RESERVED->ACTIVE transition counted, got %+v", counts)
	}
}

func TestKernelTransitionIsNoopWhenAlreadyAtTarget(t *testing.T) {
	module := activationservice.NewInMemoryModule(nil)
	ctx := context.Background()

	activation, _ := module.Service.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:     "user-1",
		ProviderID: "fivesim",
		PriceCents: 100,
	})

	if _, err := module.Kernel.Transition(ctx, ports.TransitionRequest{
		ActivationID: activation.ActivationID,
		ToState:      statemachine.Reserved,
		Reason:       "already reserved",
	}); err != nil {
		t.Fatalf("no-op transition should not error: %v", err)
	}

	history, _ := module.Service.History(ctx, activation.ActivationID)
	if len(history) != 0 {
		t.Fatalf("expected no history row for a no-op transition, got %d", len(history))
	}
	counts := module.Metrics.Snapshot()
	if len(counts) != 0 {
		t.Fatalf("expected no metrics recorded for a no-op transition, got %+v", counts)
	}
}

func TestKernelRejectsInvalidTransition(t *testing.T) {
	module := activationservice.NewInMemoryModule(nil)
	ctx := context.Background()

	activation, _ := module.Service.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:     "user-1",
		ProviderID: "fivesim",
		PriceCents: 100,
	})

	if _, err := module.Kernel.Transition(ctx, ports.TransitionRequest{
		ActivationID: activation.ActivationID,
		ToState:      statemachine.Received,
		Reason:       "skip straight to received",
	}); err == nil {
		t.Fatalf("expected RESERVED -> RECEIVED to be rejected")
	}
}

func TestCreateActivationIdempotentOnKey(t *testing.T) {
	module := activationservice.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Service.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:         "user-1",
		ProviderID:     "smsactivate",
		PriceCents:     200,
		IdempotencyKey: "reserve_abc",
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := module.Service.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:         "user-1",
		ProviderID:     "smsactivate",
		PriceCents:     200,
		IdempotencyKey: "reserve_abc",
	})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if first.ActivationID != second.ActivationID {
		t.Fatalf("expected the same activation id to be returned, got %s and %s", first.ActivationID, second.ActivationID)
	}
}

func TestSmsIngestionIsIdempotent(t *testing.T) {
	module := activationservice.NewInMemoryModule(nil)
	ctx := context.Background()

	fresh, err := module.Service.IngestSms(ctx, nil, "number-1", "1234", "your code is 1234")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if !fresh {
		t.Fatalf("expected first ingestion to be fresh")
	}

	fresh, err = module.Service.IngestSms(ctx, nil, "number-1", "1234", "your code is 1234")
	if err != nil {
		t.Fatalf("duplicate ingest failed: %v", err)
	}
	if fresh {
		t.Fatalf("expected duplicate (numberId, code) ingestion to be deduped")
	}

	messages, err := module.Service.ListSmsMessages(ctx, "number-1")
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected exactly one stored message, got %d", len(messages))
	}
}
