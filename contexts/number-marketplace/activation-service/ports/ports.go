package ports

import (
	"context"
	"time"

	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	contractsv1 "solomon/contracts/gen/events/v1"
)

// EventEnvelope is the shared versioned event envelope every context aliases
// in its own ports package rather than redeclaring.
type EventEnvelope = contractsv1.Envelope

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// Activation is the canonical order row (spec.md §3).
type Activation struct {
	ActivationID   string
	UserID         string
	ProviderID     string
	PriceCents     int64
	State          statemachine.State
	UpstreamID     string
	PhoneNumber    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IdempotencyKey string
	ReservationID  string
	RefundEntryID  string
	NumberID       string
	TraceID        string
}

// StateHistoryEntry is one append-only row per accepted transition.
type StateHistoryEntry struct {
	HistoryID    string
	ActivationID string
	FromState    statemachine.State
	ToState      statemachine.State
	Reason       string
	Metadata     map[string]string
	TraceID      string
	CreatedAt    time.Time
}

type NumberStatus string

const (
	NumberStatusActive    NumberStatus = "active"
	NumberStatusReceived  NumberStatus = "received"
	NumberStatusCompleted NumberStatus = "completed"
	NumberStatusCancelled NumberStatus = "cancelled"
	NumberStatusExpired   NumberStatus = "expired"
)

// Number is the acquired upstream asset bound to an activation.
type Number struct {
	NumberID     string
	ActivationID string
	PhoneNumber  string
	UpstreamID   string
	UserID       string
	ServiceName  string
	CountryName  string
	ProviderID   string
	PriceCents   int64
	Status       NumberStatus
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SmsMessage is one ingested inbound message; (NumberID, Code) is unique.
type SmsMessage struct {
	MessageID  string
	NumberID   string
	Code       string
	Content    string
	ReceivedAt time.Time
}

// TransitionRequest is the Kernel's single entry point contract (spec.md §4.2).
type TransitionRequest struct {
	ActivationID string
	ToState      statemachine.State
	Reason       string
	Metadata     map[string]string
	TraceID      string
}

// CreateActivationInput seeds a brand-new activation in RESERVED.
type CreateActivationInput struct {
	ActivationID   string
	UserID         string
	ProviderID     string
	PriceCents     int64
	IdempotencyKey string
	ReservationID  string
	TraceID        string
}

// Repository is the persistence contract for activations, history, numbers
// and sms ingestion. Implementations must serialize transitions with a row
// lock taken inside the same transaction as the write (spec.md §5).
type Repository interface {
	CreateActivation(ctx context.Context, input CreateActivationInput, now time.Time) (Activation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Activation, bool, error)
	GetActivation(ctx context.Context, activationID string) (Activation, error)

	// WithActivationLock loads the activation row locked for update and runs
	// fn; fn's returned Activation (if changed) is persisted transactionally
	// alongside the history row and outbox dispatch the caller appends.
	WithActivationLock(ctx context.Context, activationID string, fn func(tx Tx, current Activation) (Activation, error)) error

	AppendHistory(ctx context.Context, tx Tx, entry StateHistoryEntry) error
	ListHistory(ctx context.Context, activationID string) ([]StateHistoryEntry, error)

	CreateNumber(ctx context.Context, tx Tx, number Number) error
	GetNumberByActivation(ctx context.Context, activationID string) (Number, bool, error)
	UpdateNumberStatus(ctx context.Context, tx Tx, numberID string, status NumberStatus, expiresAt time.Time) error
	ListExpirableNumbers(ctx context.Context, before time.Time, limit int) ([]Number, error)
	ListZombieActivations(ctx context.Context, before time.Time, limit int) ([]Activation, error)

	InsertSmsMessage(ctx context.Context, tx Tx, message SmsMessage) (inserted bool, err error)
	ListSmsMessages(ctx context.Context, numberID string) ([]SmsMessage, error)
}

// Tx is an opaque caller-supplied transaction handle threaded through the
// Kernel so dispatchEvent and AppendHistory run inside the same commit as
// the activation row write.
type Tx interface{}

// OutboxWriter is the only sanctioned way for the saga to queue
// compensations and projections (Kernel.dispatchEvent).
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, tx Tx, envelope EventEnvelope, aggregateType, aggregateID string) error
}

// MetricsSink receives the Kernel's transition counters.
type MetricsSink interface {
	IncrementTransition(from, to statemachine.State, providerID string)
}

// EventPublisher emits the real-time per-user state event the Kernel sends
// after a successful commit; failures here must never roll back the
// transition (spec.md §4.2 step 7).
type EventPublisher interface {
	PublishActivationEvent(ctx context.Context, activationID string, eventType string, payload map[string]any) error
}
