package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// DueIndex is the time-ordered set of activation ids awaiting their next
// poll (§4.5's data plane). Implementations: an in-memory map for tests and
// single-process dev runs (its FetchDue returns due ids in no particular
// order), a redis ZSET for production.
type DueIndex interface {
	ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error
	Reschedule(ctx context.Context, activationID string, delay time.Duration) error
	FetchDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	Remove(ctx context.Context, activationID string) error
}

// DistributedLock gates each poll cycle to a single writer
// (`poll_cycle_lock`, TTL 30s).
type DistributedLock interface {
	// TryAcquire returns false, nil if the lock is already held elsewhere.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ActivationState mirrors activation-service's state names without
// importing that package, the same decoupling order-orchestrator-service
// uses.
type ActivationState string

const (
	StateActive   ActivationState = "ACTIVE"
	StateReceived ActivationState = "RECEIVED"
)

type PollableActivation struct {
	ActivationID string
	ProviderID   string
	UpstreamID   string
	NumberID     string
	State        ActivationState
	CreatedAt    time.Time
	SmsCount     int
	LastSmsAt    time.Time
}

// ActivationKernel is the poll manager's narrow view onto C4/C5: list the
// activations a batch of due ids still resolve to, and drive the
// SMS-received sub-protocol (§4.5.2).
type ActivationKernel interface {
	LoadPollable(ctx context.Context, activationIDs []string) ([]PollableActivation, error)
	IngestMessage(ctx context.Context, activationID, numberID, code, content string) (fresh bool, err error)
	TransitionToReceived(ctx context.Context, activationID string) error
	ExtendNumberExpiry(ctx context.Context, activationID string) error
}

type ProviderMessage struct {
	Code    string
	Content string
}

type ProviderStatusResult struct {
	Messages []ProviderMessage
	Terminal bool
}

// ProviderRegistry is the poll manager's narrow view onto C1: a status
// check per upstream id, an optional batched variant, and a capability
// probe so the cycle can choose batched vs. parallel per §4.5 step (d).
type ProviderRegistry interface {
	Status(ctx context.Context, providerID, upstreamID string) (ProviderStatusResult, error)
	StatusBatch(ctx context.Context, providerID string, upstreamIDs []string) (map[string]ProviderStatusResult, error)
	SupportsBatchStatus(providerID string) bool
}

// CircuitBreaker is the per-provider breaker of §4.5.3: volumeThreshold=10,
// 50% error ratio, 30s half-open, 5s call timeout.
type CircuitBreaker interface {
	IsOpen(providerID string) bool
	Execute(providerID string, fn func() error) error
}
