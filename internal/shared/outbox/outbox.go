// Package outbox implements the generic dispatcher engine (C6): a single
// claim/dispatch/backoff loop shared by every bounded context that needs
// reliable, at-least-once delivery of saga compensations and projections.
// Domain services never publish directly; they append a Row through their
// own OutboxWriter and register a Handler here keyed by event type.
package outbox

import (
	"context"
	"log/slog"
	"time"

	contractsv1 "solomon/contracts/gen/events/v1"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

const (
	maxRetries    = 5
	maxBackoff    = 5 * time.Minute
	claimLeaseTTL = 30 * time.Second
	defaultLimit  = 100
)

// Row is one outbox event persisted inside the same transaction as the
// state change that produced it (spec.md §4.2, §4.6).
type Row struct {
	ID            string
	EventType     string
	AggregateType string
	AggregateID   string
	Envelope      contractsv1.Envelope
	Status        Status
	RetryCount    int
	ClaimedAt     time.Time
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store is the persistence contract the dispatcher drives. ClaimBatch must
// atomically move PENDING (or stale-CLAIMED) rows due at now into CLAIMED
// with a fresh lease — two dispatchers racing on the same row must not both
// receive it (spec.md §5: "per-row optimistic claim via conditional
// update; stale claims become reclaimable after a 30 s idle window").
type Store interface {
	ClaimBatch(ctx context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]Row, error)
	MarkPublished(ctx context.Context, id string, now time.Time) error
	MarkRetry(ctx context.Context, id string, now, nextAttemptAt time.Time, retryCount int) error
	MarkFailed(ctx context.Context, id string, now time.Time) error
}

// Handler delivers one row's event. A returned error schedules a retry
// with backoff, or fails the row once the retry budget is exhausted.
type Handler func(ctx context.Context, row Row) error

type Clock interface {
	Now() time.Time
}

// Dispatcher runs one claim-and-deliver cycle per tick against every
// registered event type (spec.md §4.6).
type Dispatcher struct {
	Store      Store
	Handlers   map[string]Handler
	BatchSize  int
	ClaimLease time.Duration
	Clock      Clock
	Logger     *slog.Logger
}

// RunOnce claims a batch of due rows and dispatches each to its registered
// handler. Rows for event types with no registered handler are left
// claimed and will reclaim after the lease expires rather than being
// silently dropped; this surfaces a wiring bug instead of losing events.
func (d Dispatcher) RunOnce(ctx context.Context) (dispatched int, err error) {
	logger := ResolveLogger(d.Logger)
	now := d.now()

	rows, err := d.Store.ClaimBatch(ctx, now, d.leaseTTL(), d.limit())
	if err != nil {
		logger.Error("outbox claim failed",
			"event", "outbox_claim_failed",
			"module", "shared/outbox",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	for _, row := range rows {
		handler, ok := d.Handlers[row.EventType]
		if !ok {
			logger.Warn("outbox row has no registered handler",
				"event", "outbox_handler_missing",
				"module", "shared/outbox",
				"layer", "worker",
				"outbox_id", row.ID,
				"event_type", row.EventType,
			)
			continue
		}

		if handleErr := handler(ctx, row); handleErr != nil {
			if failErr := d.retryOrFail(ctx, row, now); failErr != nil {
				err = firstNonNil(err, failErr)
			}
			logger.Error("outbox dispatch failed",
				"event", "outbox_dispatch_failed",
				"module", "shared/outbox",
				"layer", "worker",
				"outbox_id", row.ID,
				"event_type", row.EventType,
				"retry_count", row.RetryCount,
				"error", handleErr.Error(),
			)
			continue
		}

		if markErr := d.Store.MarkPublished(ctx, row.ID, now); markErr != nil {
			err = firstNonNil(err, markErr)
			continue
		}
		dispatched++
	}

	logger.Debug("outbox dispatch cycle completed",
		"event", "outbox_cycle_completed",
		"module", "shared/outbox",
		"layer", "worker",
		"claimed", len(rows),
		"dispatched", dispatched,
	)
	return dispatched, err
}

func (d Dispatcher) retryOrFail(ctx context.Context, row Row, now time.Time) error {
	retryCount := row.RetryCount + 1
	if retryCount >= maxRetries {
		return d.Store.MarkFailed(ctx, row.ID, now)
	}
	return d.Store.MarkRetry(ctx, row.ID, now, now.Add(NextBackoff(retryCount)), retryCount)
}

// NextBackoff is spec.md §4.6's exponential backoff: min(5 min, 1 s · 2^retryCount).
func NextBackoff(retryCount int) time.Duration {
	backoff := time.Second
	for i := 0; i < retryCount; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

func (d Dispatcher) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now().UTC()
}

func (d Dispatcher) leaseTTL() time.Duration {
	if d.ClaimLease <= 0 {
		return claimLeaseTTL
	}
	return d.ClaimLease
}

func (d Dispatcher) limit() int {
	if d.BatchSize <= 0 {
		return defaultLimit
	}
	return d.BatchSize
}

func firstNonNil(existing, candidate error) error {
	if existing != nil {
		return existing
	}
	return candidate
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
