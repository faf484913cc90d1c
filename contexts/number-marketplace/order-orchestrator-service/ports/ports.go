package ports

import (
	"context"
	"time"

	contractsv1 "solomon/contracts/gen/events/v1"
)

type EventEnvelope = contractsv1.Envelope

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// LedgerEntry mirrors the wallet gateway's ledger entry shape closely
// enough for the orchestrator to report amounts without importing the
// wallet service's own package graph.
type LedgerEntry struct {
	EntryID       string
	ReservationID string
}

// WalletGateway is the collaborator contract of spec.md §6: reserve,
// commit, rollback, refund, each idempotent on idKey.
type WalletGateway interface {
	Reserve(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (LedgerEntry, error)
	Commit(ctx context.Context, reservationID, idempotencyKey string) (LedgerEntry, error)
	Rollback(ctx context.Context, reservationID, idempotencyKey string) (LedgerEntry, error)
	Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (LedgerEntry, error)
}

// Acquisition is what the provider registry hands back on a successful
// acquire call.
type Acquisition struct {
	UpstreamID string
	Phone      string
	ExpiresAt  time.Time
	PriceCents int64
}

// ProviderRegistry is the narrow slice of the provider-adapter capability
// surface the saga needs: acquire, cancel, and the optional resend probe.
type ProviderRegistry interface {
	Acquire(ctx context.Context, providerID, countryCode, serviceCode string, maxPriceCents int64, operatorID string) (Acquisition, error)
	Cancel(ctx context.Context, providerID, upstreamID string) error
	SupportsResend(providerID string) bool
	RequestResend(ctx context.Context, providerID, upstreamID string) error
}

// ActivationState is a provider-agnostic view of the C4 state machine so
// this package never imports activation-service's statemachine directly.
type ActivationState string

const (
	StateInit      ActivationState = "INIT"
	StateReserved  ActivationState = "RESERVED"
	StateActive    ActivationState = "ACTIVE"
	StateReceived  ActivationState = "RECEIVED"
	StateExpired   ActivationState = "EXPIRED"
	StateCancelled ActivationState = "CANCELLED"
	StateFailed    ActivationState = "FAILED"
	StateRefunded  ActivationState = "REFUNDED"
)

type Activation struct {
	ActivationID   string
	UserID         string
	ProviderID     string
	PriceCents     int64
	State          ActivationState
	UpstreamID     string
	PhoneNumber    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IdempotencyKey string
	ReservationID  string
	SmsCount       int
}

type Message struct {
	Code       string
	Content    string
	ReceivedAt time.Time
}

// ActivationKernel is the saga's only way to create and transition
// activations (spec.md §4.2/§4.3). CreateActivation is idempotent on key.
type ActivationKernel interface {
	CreateActivation(ctx context.Context, input CreateActivationInput) (Activation, error)
	Transition(ctx context.Context, activationID string, to ActivationState, reason string, metadata map[string]string, traceID string) (Activation, error)
	GetActivation(ctx context.Context, activationID string) (Activation, error)
	BindNumber(ctx context.Context, activationID, upstreamID, phone string, priceCents int64, expiresAt time.Time, serviceName, countryName string) error
	ListMessages(ctx context.Context, activationID string) ([]Message, error)
}

type CreateActivationInput struct {
	UserID         string
	ProviderID     string
	PriceCents     int64
	IdempotencyKey string
	ReservationID  string
}

// OutboxWriter queues compensations and projections; the only sanctioned
// path for saga failure handling (spec.md §4.3 step 5, §4.6).
type OutboxWriter interface {
	Enqueue(ctx context.Context, eventType, aggregateID string, payload map[string]any) error
}

// DueIndex schedules the first poll for a freshly acquired activation
// (spec.md §4.3 step 6); the poll manager owns the rest of its lifecycle.
type DueIndex interface {
	ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error
}

// PurchaseInput is the command surface's purchase(req) body (spec.md §6).
type PurchaseInput struct {
	UserID         string
	ProviderID     string
	CountryCode    string
	ServiceCode    string
	PriceCents     int64
	ServiceName    string
	CountryName    string
	OperatorID     string
	IdempotencyKey string
	TraceID        string
}

type ErrorCode string

const (
	ErrCodeNone               ErrorCode = ""
	ErrCodeInsufficientBal    ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeProviderError      ErrorCode = "PROVIDER_ERROR"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeSystemError        ErrorCode = "SYSTEM_ERROR"
	ErrCodeNotSupported       ErrorCode = "NOT_SUPPORTED"
	ErrCodeActivationConflict ErrorCode = "ACTIVATION_CONFLICT"
)

type PurchaseResult struct {
	OK           bool
	ActivationID string
	Phone        string
	UpstreamID   string
	ErrCode      ErrorCode
	Message      string
}
