package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

// Kernel is the single entry point for every activation state change
// (spec.md §4.2). It never decides business outcomes; it only validates,
// records, and emits.
type Kernel struct {
	Repo      ports.Repository
	Outbox    ports.OutboxWriter
	Metrics   ports.MetricsSink
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

var userVisibleTransitions = map[statemachine.State]string{
	statemachine.Active:   "activation.active",
	statemachine.Received: "activation.received",
	statemachine.Failed:   "activation.failed",
	statemachine.Expired:  "activation.expired",
}

// Transition is the Kernel's contract: load under lock, no-op if already at
// target, validate, write, append history, count, and emit side effects
// after commit (spec.md §4.2 steps 1-7).
func (k Kernel) Transition(ctx context.Context, req ports.TransitionRequest) (ports.Activation, error) {
	activationID := strings.TrimSpace(req.ActivationID)
	if activationID == "" {
		return ports.Activation{}, domainerrors.ErrInvalidInput
	}

	var result ports.Activation
	var fromState statemachine.State
	noop := false

	err := k.Repo.WithActivationLock(ctx, activationID, func(tx ports.Tx, current ports.Activation) (ports.Activation, error) {
		fromState = current.State
		if current.State == req.ToState {
			result = current
			noop = true
			return current, nil
		}
		if err := statemachine.Validate(current.State, req.ToState); err != nil {
			return ports.Activation{}, err
		}

		updated := current
		updated.State = req.ToState
		updated.TraceID = req.TraceID

		history := ports.StateHistoryEntry{
			HistoryID:    k.newID(),
			ActivationID: activationID,
			FromState:    current.State,
			ToState:      req.ToState,
			Reason:       req.Reason,
			Metadata:     req.Metadata,
			TraceID:      req.TraceID,
			CreatedAt:    k.now(),
		}
		if err := k.Repo.AppendHistory(ctx, tx, history); err != nil {
			return ports.Activation{}, err
		}

		result = updated
		return updated, nil
	})
	if err != nil {
		return ports.Activation{}, err
	}
	if noop {
		return result, nil
	}

	if k.Metrics != nil {
		k.Metrics.IncrementTransition(fromState, req.ToState, result.ProviderID)
	}
	k.emitSideEffects(ctx, result, req.ToState)
	return result, nil
}

// DispatchEvent appends an Outbox row inside the caller's transaction. This
// is the only sanctioned way for the saga to queue compensations.
func (k Kernel) DispatchEvent(ctx context.Context, tx ports.Tx, envelope ports.EventEnvelope, aggregateID string) error {
	return k.Outbox.AppendOutbox(ctx, tx, envelope, "activation", aggregateID)
}

// emitSideEffects runs after the transition has committed. Failures here
// must not roll back the transition; they are logged and swallowed.
func (k Kernel) emitSideEffects(ctx context.Context, activation ports.Activation, toState statemachine.State) {
	logger := ResolveLogger(k.Logger)

	if k.Publisher != nil {
		payload := map[string]any{
			"activation_id": activation.ActivationID,
			"state":         string(toState),
		}
		if err := k.Publisher.PublishActivationEvent(ctx, activation.ActivationID, "activation.state_changed", payload); err != nil {
			logger.Error("activation state event publish failed",
				"event", "activation_state_event_publish_failed",
				"module", "number-marketplace/activation-service",
				"layer", "application",
				"activation_id", activation.ActivationID,
				"error", err.Error(),
			)
		}
	}

	eventType, userVisible := userVisibleTransitions[toState]
	if !userVisible {
		return
	}
	if k.Publisher != nil {
		payload := map[string]any{
			"activation_id": activation.ActivationID,
			"user_id":       activation.UserID,
			"upstream_id":   activation.UpstreamID,
		}
		if err := k.Publisher.PublishActivationEvent(ctx, activation.ActivationID, eventType, payload); err != nil {
			logger.Error("activation domain event publish failed",
				"event", "activation_domain_event_publish_failed",
				"module", "number-marketplace/activation-service",
				"layer", "application",
				"activation_id", activation.ActivationID,
				"to_state", string(toState),
				"error", err.Error(),
			)
		}
	}
}

func (k Kernel) now() time.Time {
	if k.Clock == nil {
		return time.Now().UTC()
	}
	return k.Clock.Now().UTC()
}

func (k Kernel) newID() string {
	if k.IDGen == nil {
		return fmt.Sprintf("hist_%d", time.Now().UTC().UnixNano())
	}
	return k.IDGen.NewID()
}

// ResolveLogger returns the provided logger or falls back to slog default.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
