package ports

import (
	"context"
	"time"
)

// LedgerEntryKind distinguishes the four wallet operations the order
// orchestrator drives: reserve/commit/rollback/refund.
type LedgerEntryKind string

const (
	LedgerEntryReserve  LedgerEntryKind = "reserve"
	LedgerEntryCommit   LedgerEntryKind = "commit"
	LedgerEntryRollback LedgerEntryKind = "rollback"
	LedgerEntryRefund   LedgerEntryKind = "refund"
)

type LedgerEntry struct {
	EntryID        string
	UserID         string
	Kind           LedgerEntryKind
	Amount         float64
	ReservationID  string
	Reason         string
	Memo           string
	IdempotencyKey string
	CreatedAt      time.Time
}

type ReserveInput struct {
	UserID         string
	Amount         float64
	Reason         string
	Memo           string
	IdempotencyKey string
}

type SettleInput struct {
	ReservationID  string
	IdempotencyKey string
}

type RefundInput struct {
	UserID         string
	Amount         float64
	Reason         string
	Memo           string
	IdempotencyKey string
}

// Repository is the wallet ledger's storage contract. The balance ledger and
// its concrete schema are out of scope (spec.md §1); this is the abstract
// collaborator contract the order orchestrator is written against.
type Repository interface {
	GetAvailableBalance(ctx context.Context, userID string) (float64, error)
	CreateReservation(ctx context.Context, input ReserveInput, now time.Time) (LedgerEntry, error)
	CommitReservation(ctx context.Context, input SettleInput, now time.Time) (LedgerEntry, error)
	RollbackReservation(ctx context.Context, input SettleInput, now time.Time) (LedgerEntry, error)
	CreateRefund(ctx context.Context, input RefundInput, now time.Time) (LedgerEntry, error)
	ListLedger(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
