package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "solomon/contexts/number-marketplace/order-orchestrator-service/domain/errors"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
)

const initialPollDelay = 5 * time.Second

// Saga is the purchase workflow of spec.md §4.3: it coordinates the wallet,
// a provider adapter, and the Activation Kernel into one atomic acquisition
// and a compensating path when the post-acquire commit fails.
type Saga struct {
	Wallet    ports.WalletGateway
	Providers ports.ProviderRegistry
	Kernel    ports.ActivationKernel
	Outbox    ports.OutboxWriter
	DueIndex  ports.DueIndex
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// Purchase drives steps 1-7 of the saga.
func (s Saga) Purchase(ctx context.Context, input ports.PurchaseInput) ports.PurchaseResult {
	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.ProviderID) == "" ||
		strings.TrimSpace(input.CountryCode) == "" || strings.TrimSpace(input.ServiceCode) == "" || input.PriceCents <= 0 {
		return ports.PurchaseResult{ErrCode: ports.ErrCodeInvalidRequest, Message: domainerrors.ErrInvalidRequest.Error()}
	}

	// Step 2: reservation + activation creation. CreateActivation is itself
	// idempotent on IdempotencyKey, and Reserve is idempotent on the derived
	// reserve_{idempotencyKey}; a retried purchase request replays cleanly.
	reserveKey := ""
	if input.IdempotencyKey != "" {
		reserveKey = "reserve_" + input.IdempotencyKey
	}
	ledgerEntry, err := s.Wallet.Reserve(ctx, input.UserID, input.PriceCents, "purchase", input.ServiceName, reserveKey)
	if err != nil {
		return s.insufficientOrSystemError(err)
	}

	activation, err := s.Kernel.CreateActivation(ctx, ports.CreateActivationInput{
		UserID:         input.UserID,
		ProviderID:     input.ProviderID,
		PriceCents:     input.PriceCents,
		IdempotencyKey: input.IdempotencyKey,
		ReservationID:  ledgerEntry.ReservationID,
	})
	if err != nil {
		_, _ = s.Wallet.Rollback(ctx, ledgerEntry.ReservationID, reserveKey)
		return ports.PurchaseResult{ErrCode: ports.ErrCodeSystemError, Message: err.Error()}
	}

	if activation.State != ports.StateReserved {
		// Idempotent replay of an already-progressed purchase: hand back its
		// current identity without repeating any side effect.
		return ports.PurchaseResult{
			OK:           true,
			ActivationID: activation.ActivationID,
			Phone:        activation.PhoneNumber,
			UpstreamID:   activation.UpstreamID,
		}
	}

	// Step 3: acquisition, driven synchronously — no provider_request event
	// is enqueued here since nothing dispatches that event type and a
	// second, async-driven acquisition would race this one.
	acquisition, err := s.Providers.Acquire(ctx, input.ProviderID, input.CountryCode, input.ServiceCode, input.PriceCents, input.OperatorID)
	if err != nil {
		_, _ = s.Wallet.Rollback(ctx, ledgerEntry.ReservationID, reserveKey)
		if _, tErr := s.Kernel.Transition(ctx, activation.ActivationID, ports.StateFailed, "provider acquisition failed", nil, input.TraceID); tErr != nil {
			s.logError("saga_transition_after_provider_error_failed", tErr, activation.ActivationID)
		}
		return ports.PurchaseResult{ErrCode: ports.ErrCodeProviderError, Message: err.Error()}
	}

	// Step 4: saga commit — the critical atomic boundary.
	if err := s.commit(ctx, activation.ActivationID, ledgerEntry.ReservationID, acquisition, input, reserveKey); err != nil {
		// Step 5: saga failure. A number has been bought but not captured.
		s.compensate(ctx, input.ProviderID, acquisition.UpstreamID, activation.ActivationID, input.TraceID)
		return ports.PurchaseResult{
			ErrCode: ports.ErrCodeSystemError,
			Message: "purchase could not be completed; the acquired number will be auto-cancelled",
		}
	}

	// Step 6: schedule the first poll.
	if s.DueIndex != nil {
		if err := s.DueIndex.ScheduleFirstPoll(ctx, activation.ActivationID, initialPollDelay); err != nil {
			s.logError("saga_schedule_poll_failed", err, activation.ActivationID)
		}
	}

	return ports.PurchaseResult{
		OK:           true,
		ActivationID: activation.ActivationID,
		Phone:        acquisition.Phone,
		UpstreamID:   acquisition.UpstreamID,
	}
}

func (s Saga) commit(ctx context.Context, activationID, reservationID string, acquisition ports.Acquisition, input ports.PurchaseInput, reserveKey string) error {
	if _, err := s.Kernel.Transition(ctx, activationID, ports.StateActive, "number acquired", map[string]string{
		"upstream_id": acquisition.UpstreamID,
	}, input.TraceID); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if _, err := s.Wallet.Commit(ctx, reservationID, reserveKey); err != nil {
		return fmt.Errorf("commit wallet reservation: %w", err)
	}
	if err := s.Kernel.BindNumber(ctx, activationID, acquisition.UpstreamID, acquisition.Phone, acquisition.PriceCents, acquisition.ExpiresAt, input.ServiceName, input.CountryName); err != nil {
		return fmt.Errorf("bind number: %w", err)
	}
	return nil
}

// compensate is the safety net of spec.md §4.3 step 5: queue the
// cancellation compensation, best-effort transition to FAILED, and never
// surface success.
func (s Saga) compensate(ctx context.Context, providerID, upstreamID, activationID, traceID string) {
	if err := s.Outbox.Enqueue(ctx, "saga.compensate.cancel_number", activationID, map[string]any{
		"provider_id":            providerID,
		"provider_activation_id": upstreamID,
	}); err != nil {
		s.logError("saga_compensate_enqueue_failed", err, activationID)
	}
	if _, err := s.Kernel.Transition(ctx, activationID, ports.StateFailed, "saga commit failed after acquisition", nil, traceID); err != nil {
		s.logError("saga_compensate_transition_failed", err, activationID)
	}
}

// Cancel is allowed from {RESERVED, ACTIVE}: best-effort upstream cancel,
// transition to CANCELLED, then the refund path.
func (s Saga) Cancel(ctx context.Context, activationID, userID, traceID string) error {
	activation, err := s.Kernel.GetActivation(ctx, activationID)
	if err != nil {
		return err
	}
	if activation.UserID != userID {
		return domainerrors.ErrActivationConflict
	}
	if activation.State != ports.StateReserved && activation.State != ports.StateActive {
		return domainerrors.ErrActivationConflict
	}

	if activation.UpstreamID != "" {
		if err := s.Providers.Cancel(ctx, activation.ProviderID, activation.UpstreamID); err != nil {
			s.logError("saga_cancel_upstream_failed", err, activationID)
		}
	}
	if _, err := s.Kernel.Transition(ctx, activationID, ports.StateCancelled, "user requested cancel", nil, traceID); err != nil {
		return err
	}
	return s.refund(ctx, activation, traceID)
}

func (s Saga) refund(ctx context.Context, activation ports.Activation, traceID string) error {
	if _, err := s.Kernel.Transition(ctx, activation.ActivationID, ports.StateRefunded, "refund after terminal failure/expiry/cancel", nil, traceID); err != nil {
		return err
	}
	if activation.ReservationID != "" {
		if _, err := s.Wallet.Rollback(ctx, activation.ReservationID, ""); err != nil {
			s.logError("saga_refund_rollback_failed", err, activation.ActivationID)
		}
		return nil
	}
	_, err := s.Wallet.Refund(ctx, activation.UserID, activation.PriceCents, "activation refund", activation.ActivationID, "")
	return err
}

// ResendSms is allowed only from ACTIVE with at least one SMS received.
func (s Saga) ResendSms(ctx context.Context, activationID, userID string) error {
	activation, err := s.Kernel.GetActivation(ctx, activationID)
	if err != nil {
		return err
	}
	if activation.UserID != userID || activation.State != ports.StateActive {
		return domainerrors.ErrActivationConflict
	}
	if activation.SmsCount < 1 {
		return domainerrors.ErrActivationConflict
	}
	if !s.Providers.SupportsResend(activation.ProviderID) {
		return domainerrors.ErrNotSupported
	}
	return s.Providers.RequestResend(ctx, activation.ProviderID, activation.UpstreamID)
}

func (s Saga) insufficientOrSystemError(err error) ports.PurchaseResult {
	if err == nil {
		return ports.PurchaseResult{}
	}
	if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
		return ports.PurchaseResult{ErrCode: ports.ErrCodeInsufficientBal, Message: err.Error()}
	}
	return ports.PurchaseResult{ErrCode: ports.ErrCodeSystemError, Message: err.Error()}
}

func (s Saga) logError(event string, err error, activationID string) {
	ResolveLogger(s.Logger).Error("order orchestrator operation failed",
		"event", event,
		"module", "number-marketplace/order-orchestrator-service",
		"layer", "application",
		"activation_id", activationID,
		"error", err.Error(),
	)
}

// ResolveLogger returns the provided logger or falls back to slog default.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
