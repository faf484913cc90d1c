package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// ReservationStore is the catalog half of sweep #1 and sweep #4's
// reservation purge (spec.md §4.7 #1, #4).
type ReservationStore interface {
	ExpireDueReservations(ctx context.Context, limit int) (int, error)
	PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type ActivationState string

const (
	StateActive   ActivationState = "ACTIVE"
	StateReceived ActivationState = "RECEIVED"
	StateReserved ActivationState = "RESERVED"
)

// ExpirableNumber is the candidate row sweep #2 evaluates: an acquired
// number whose expiresAt has passed. ReservationID/UserID/PriceCents are
// carried so an expiry that doesn't race a late SMS can refund the
// committed reservation without a second lookup.
type ExpirableNumber struct {
	NumberID      string
	ActivationID  string
	ProviderID    string
	UpstreamID    string
	ExpiresAt     time.Time
	ReservationID string
	UserID        string
	PriceCents    int64
}

// ZombieActivation is the candidate row sweep #3 evaluates: an activation
// stuck in RESERVED long past the point any saga step should still be
// in flight.
type ZombieActivation struct {
	ActivationID  string
	ReservationID string
	UserID        string
	PriceCents    int64
}

// NumberStore is the activation-service half of sweep #2: it surfaces
// expirable numbers, their locally ingested messages, and the two terminal
// writes the sweep can make.
type NumberStore interface {
	ListExpirableNumbers(ctx context.Context, limit int) ([]ExpirableNumber, error)
	HasStoredMessages(ctx context.Context, numberID string) (bool, error)
	MarkNumberCompleted(ctx context.Context, numberID string) error
	MarkNumberExpired(ctx context.Context, numberID string) error
}

// ZombieStore is the activation-service half of sweep #3.
type ZombieStore interface {
	ListZombieActivations(ctx context.Context, limit int) ([]ZombieActivation, error)
}

// ActivationKernel drives the Kernel's terminal transitions the reaper is
// allowed to make: ACTIVE/RECEIVED → EXPIRED, ACTIVE → RECEIVED on a
// late-arriving SMS, RESERVED → FAILED, EXPIRED → REFUNDED.
type ActivationKernel interface {
	TransitionToReceived(ctx context.Context, activationID string) error
	TransitionToExpired(ctx context.Context, activationID string) error
	TransitionToFailed(ctx context.Context, activationID, reason string) error
	TransitionToRefunded(ctx context.Context, activationID string) error
}

// WalletGateway is the reaper's write path into the ledger: rolling back a
// reservation that never reached a terminal commit (zombie sweep), and
// refunding an already-committed reservation whose number expired without
// ever producing an SMS (S4's ACTIVE → EXPIRED → REFUNDED closeout).
type WalletGateway interface {
	Rollback(ctx context.Context, reservationID, idempotencyKey string) error
	Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) error
}

// ProviderStatusResult mirrors the poll manager's status read, trimmed to
// what the final-probe sweep needs.
type ProviderStatusResult struct {
	HasMessage bool
}

// ProviderGateway is the one-more-status-call-before-expiry probe and the
// best-effort cancel of sweep #2.
type ProviderGateway interface {
	FinalStatus(ctx context.Context, providerID, upstreamID string) (ProviderStatusResult, error)
	Cancel(ctx context.Context, providerID, upstreamID string) error
}

// Random supplies the ~1% housekeeping coin flip (spec.md §4.7 #4) so the
// sweep is deterministic and testable.
type Random interface {
	Float64() float64
}

// OutboxPurger is the outbox-row-aging half of sweep #4: deleting
// PUBLISHED/FAILED rows past their retention window so the outbox table
// doesn't grow unbounded. Optional — a nil OutboxPurger just skips this
// half of the sweep, which is how every pre-outbox deployment still runs.
type OutboxPurger interface {
	PurgeTerminal(ctx context.Context, olderThan time.Time, limit int) (int, error)
}
