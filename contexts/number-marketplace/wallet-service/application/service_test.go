package application_test

import (
	"context"
	"testing"

	"solomon/contexts/number-marketplace/wallet-service/adapters/memory"
	"solomon/contexts/number-marketplace/wallet-service/application"
	domainerrors "solomon/contexts/number-marketplace/wallet-service/domain/errors"
	"solomon/contexts/number-marketplace/wallet-service/ports"
)

func newService() (application.Service, *memory.Store) {
	store := memory.NewStore()
	return application.Service{
		Repo:        store,
		Idempotency: store,
		Clock:       store,
		IDGen:       store,
	}, store
}

func TestReserveInsufficientBalance(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	_, err := service.Reserve(ctx, ports.ReserveInput{
		UserID: "user-1",
		Amount: 5,
		Reason: "acquire_number",
	})
	if err != domainerrors.ErrInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestReserveCommitRollbackLifecycle(t *testing.T) {
	service, store := newService()
	ctx := context.Background()
	store.Credit("user-1", 10)

	reserved, err := service.Reserve(ctx, ports.ReserveInput{
		UserID:         "user-1",
		Amount:         4,
		Reason:         "acquire_number",
		IdempotencyKey: "reserve-1",
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if reserved.ReservationID == "" {
		t.Fatalf("expected a reservation id")
	}

	balance, err := service.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 6 {
		t.Fatalf("expected balance 6 after reserve, got %v", balance)
	}

	committed, err := service.Commit(ctx, ports.SettleInput{
		ReservationID:  reserved.ReservationID,
		IdempotencyKey: "commit-1",
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if committed.Kind != ports.LedgerEntryCommit {
		t.Fatalf("expected commit entry, got %s", committed.Kind)
	}

	if _, err := service.Commit(ctx, ports.SettleInput{ReservationID: reserved.ReservationID, IdempotencyKey: "commit-2"}); err != domainerrors.ErrReservationClosed {
		t.Fatalf("expected reservation closed on double commit, got %v", err)
	}
}

func TestRollbackRefundsReservedAmount(t *testing.T) {
	service, store := newService()
	ctx := context.Background()
	store.Credit("user-2", 10)

	reserved, err := service.Reserve(ctx, ports.ReserveInput{UserID: "user-2", Amount: 4, Reason: "acquire_number"})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if _, err := service.Rollback(ctx, ports.SettleInput{ReservationID: reserved.ReservationID}); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	balance, err := service.Balance(ctx, "user-2")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected balance restored to 10, got %v", balance)
	}
}

func TestReserveIdempotentReplay(t *testing.T) {
	service, store := newService()
	ctx := context.Background()
	store.Credit("user-3", 10)

	input := ports.ReserveInput{UserID: "user-3", Amount: 4, Reason: "acquire_number", IdempotencyKey: "reserve-dup"}
	first, err := service.Reserve(ctx, input)
	if err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	second, err := service.Reserve(ctx, input)
	if err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	if first.EntryID != second.EntryID {
		t.Fatalf("expected replayed ledger entry, got %s and %s", first.EntryID, second.EntryID)
	}

	balance, err := service.Balance(ctx, "user-3")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 6 {
		t.Fatalf("expected balance debited only once, got %v", balance)
	}
}

func TestReserveIdempotencyConflictOnDifferentPayload(t *testing.T) {
	service, store := newService()
	ctx := context.Background()
	store.Credit("user-4", 10)

	if _, err := service.Reserve(ctx, ports.ReserveInput{UserID: "user-4", Amount: 4, Reason: "acquire_number", IdempotencyKey: "reserve-conflict"}); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if _, err := service.Reserve(ctx, ports.ReserveInput{UserID: "user-4", Amount: 5, Reason: "acquire_number", IdempotencyKey: "reserve-conflict"}); err != domainerrors.ErrIdempotencyConflict {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}
