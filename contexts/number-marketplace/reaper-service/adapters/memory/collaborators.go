package memory

import (
	"context"
	"time"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	activationstatemachine "solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	activationports "solomon/contexts/number-marketplace/activation-service/ports"
	catalogservice "solomon/contexts/number-marketplace/catalog-service"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
	"solomon/contexts/number-marketplace/reaper-service/ports"
	walletservice "solomon/contexts/number-marketplace/wallet-service"
	walletports "solomon/contexts/number-marketplace/wallet-service/ports"
)

// ReservationAdapter satisfies ports.ReservationStore against
// catalog-service.
type ReservationAdapter struct {
	Module catalogservice.Module
}

func (r ReservationAdapter) ExpireDueReservations(ctx context.Context, limit int) (int, error) {
	return r.Module.Service.ExpireDueReservations(ctx, limit)
}

func (r ReservationAdapter) PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	return r.Module.Service.PurgeReservations(ctx, olderThan, limit)
}

// NumberAdapter satisfies ports.NumberStore and ports.ZombieStore against
// activation-service.
type NumberAdapter struct {
	Module activationservice.Module
}

func (n NumberAdapter) ListExpirableNumbers(ctx context.Context, limit int) ([]ports.ExpirableNumber, error) {
	numbers, err := n.Module.Service.ListExpirableNumbers(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ports.ExpirableNumber, 0, len(numbers))
	for _, number := range numbers {
		reservationID := ""
		if activation, actErr := n.Module.Service.GetActivation(ctx, number.ActivationID); actErr == nil {
			reservationID = activation.ReservationID
		}
		out = append(out, ports.ExpirableNumber{
			NumberID:      number.NumberID,
			ActivationID:  number.ActivationID,
			ProviderID:    number.ProviderID,
			UpstreamID:    number.UpstreamID,
			ExpiresAt:     number.ExpiresAt,
			ReservationID: reservationID,
			UserID:        number.UserID,
			PriceCents:    number.PriceCents,
		})
	}
	return out, nil
}

func (n NumberAdapter) HasStoredMessages(ctx context.Context, numberID string) (bool, error) {
	messages, err := n.Module.Service.ListSmsMessages(ctx, numberID)
	if err != nil {
		return false, err
	}
	return len(messages) > 0, nil
}

func (n NumberAdapter) MarkNumberCompleted(ctx context.Context, numberID string) error {
	return n.Module.Service.MarkNumberCompleted(ctx, numberID)
}

func (n NumberAdapter) MarkNumberExpired(ctx context.Context, numberID string) error {
	return n.Module.Service.MarkNumberExpired(ctx, numberID)
}

func (n NumberAdapter) ListZombieActivations(ctx context.Context, limit int) ([]ports.ZombieActivation, error) {
	activations, err := n.Module.Service.ListZombieActivations(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ports.ZombieActivation, 0, len(activations))
	for _, activation := range activations {
		out = append(out, ports.ZombieActivation{
			ActivationID:  activation.ActivationID,
			ReservationID: activation.ReservationID,
			UserID:        activation.UserID,
			PriceCents:    activation.PriceCents,
		})
	}
	return out, nil
}

// KernelAdapter satisfies ports.ActivationKernel against
// activation-service's Kernel.
type KernelAdapter struct {
	Module activationservice.Module
}

func (k KernelAdapter) TransitionToReceived(ctx context.Context, activationID string) error {
	_, err := k.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.Received,
		Reason:       "late sms recovered by reaper",
	})
	return err
}

func (k KernelAdapter) TransitionToExpired(ctx context.Context, activationID string) error {
	_, err := k.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.Expired,
		Reason:       "number expired with no sms",
	})
	return err
}

func (k KernelAdapter) TransitionToFailed(ctx context.Context, activationID, reason string) error {
	_, err := k.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.Failed,
		Reason:       reason,
	})
	return err
}

func (k KernelAdapter) TransitionToRefunded(ctx context.Context, activationID string) error {
	_, err := k.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.Refunded,
		Reason:       "refund after number expiry",
	})
	return err
}

// WalletAdapter satisfies ports.WalletGateway against wallet-service.
type WalletAdapter struct {
	Module walletservice.Module
}

func (w WalletAdapter) Rollback(ctx context.Context, reservationID, idempotencyKey string) error {
	_, err := w.Module.Service.Rollback(ctx, walletports.SettleInput{
		ReservationID:  reservationID,
		IdempotencyKey: idempotencyKey,
	})
	return err
}

func (w WalletAdapter) Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) error {
	_, err := w.Module.Service.Refund(ctx, walletports.RefundInput{
		UserID:         userID,
		Amount:         float64(amountCents) / 100.0,
		Reason:         reason,
		Memo:           memo,
		IdempotencyKey: idempotencyKey,
	})
	return err
}

// ProviderAdapter satisfies ports.ProviderGateway against the provider
// registry's mandatory status/cancel capabilities.
type ProviderAdapter struct {
	Registry *providerregistry.Registry
}

func (p ProviderAdapter) FinalStatus(ctx context.Context, providerID, upstreamID string) (ports.ProviderStatusResult, error) {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return ports.ProviderStatusResult{}, err
	}
	status, err := adapter.Status(ctx, upstreamID)
	if err != nil {
		return ports.ProviderStatusResult{}, err
	}
	return ports.ProviderStatusResult{HasMessage: len(status.Messages) > 0}, nil
}

func (p ProviderAdapter) Cancel(ctx context.Context, providerID, upstreamID string) error {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return err
	}
	return adapter.Cancel(ctx, upstreamID)
}
