// Package memory adapts the in-memory modules of the sibling
// number-marketplace services into the orchestrator's narrow collaborator
// ports, so the saga never imports another service's ports package
// directly and bootstrap wiring stays the only place that knows about all
// of them at once.
package memory

import (
	"context"
	"sync"
	"time"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	activationstatemachine "solomon/contexts/number-marketplace/activation-service/domain/statemachine"
	activationports "solomon/contexts/number-marketplace/activation-service/ports"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
	providerports "solomon/contexts/number-marketplace/provider-adapter/ports"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
	walletservice "solomon/contexts/number-marketplace/wallet-service"
	walletports "solomon/contexts/number-marketplace/wallet-service/ports"
)

// WalletAdapter satisfies ports.WalletGateway against the wallet-service
// module, converting integer cents to the ledger's float64 currency unit.
type WalletAdapter struct {
	Module walletservice.Module
}

func (w WalletAdapter) Reserve(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (ports.LedgerEntry, error) {
	entry, err := w.Module.Service.Reserve(ctx, walletports.ReserveInput{
		UserID:         userID,
		Amount:         centsToAmount(amountCents),
		Reason:         reason,
		Memo:           memo,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	return ports.LedgerEntry{EntryID: entry.EntryID, ReservationID: entry.ReservationID}, nil
}

func (w WalletAdapter) Commit(ctx context.Context, reservationID, idempotencyKey string) (ports.LedgerEntry, error) {
	entry, err := w.Module.Service.Commit(ctx, walletports.SettleInput{ReservationID: reservationID, IdempotencyKey: idempotencyKey})
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	return ports.LedgerEntry{EntryID: entry.EntryID, ReservationID: entry.ReservationID}, nil
}

func (w WalletAdapter) Rollback(ctx context.Context, reservationID, idempotencyKey string) (ports.LedgerEntry, error) {
	entry, err := w.Module.Service.Rollback(ctx, walletports.SettleInput{ReservationID: reservationID, IdempotencyKey: idempotencyKey})
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	return ports.LedgerEntry{EntryID: entry.EntryID, ReservationID: entry.ReservationID}, nil
}

func (w WalletAdapter) Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (ports.LedgerEntry, error) {
	entry, err := w.Module.Service.Refund(ctx, walletports.RefundInput{
		UserID:         userID,
		Amount:         centsToAmount(amountCents),
		Reason:         reason,
		Memo:           memo,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return ports.LedgerEntry{}, err
	}
	return ports.LedgerEntry{EntryID: entry.EntryID, ReservationID: entry.ReservationID}, nil
}

func centsToAmount(cents int64) float64 { return float64(cents) / 100.0 }

// ProviderAdapter satisfies ports.ProviderRegistry against the
// provider-adapter registry.
type ProviderAdapter struct {
	Registry *providerregistry.Registry
}

func (p ProviderAdapter) Acquire(ctx context.Context, providerID, countryCode, serviceCode string, maxPriceCents int64, operatorID string) (ports.Acquisition, error) {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return ports.Acquisition{}, err
	}
	result, err := adapter.Acquire(ctx, countryCode, serviceCode, providerports.AcquireOptions{
		MaxPriceCents: maxPriceCents,
		OperatorID:    operatorID,
	})
	if err != nil {
		return ports.Acquisition{}, err
	}
	return ports.Acquisition{
		UpstreamID: result.UpstreamID,
		Phone:      result.Phone,
		ExpiresAt:  result.ExpiresAt,
		PriceCents: result.PriceCents,
	}, nil
}

func (p ProviderAdapter) Cancel(ctx context.Context, providerID, upstreamID string) error {
	adapter, err := p.Registry.Get(providerID)
	if err != nil {
		return err
	}
	return adapter.Cancel(ctx, upstreamID)
}

func (p ProviderAdapter) SupportsResend(providerID string) bool {
	return p.Registry.SupportsResend(providerID)
}

func (p ProviderAdapter) RequestResend(ctx context.Context, providerID, upstreamID string) error {
	return p.Registry.RequestResend(ctx, providerID, upstreamID)
}

// ActivationAdapter satisfies ports.ActivationKernel against the
// activation-service module.
type ActivationAdapter struct {
	Module activationservice.Module
}

func (a ActivationAdapter) CreateActivation(ctx context.Context, input ports.CreateActivationInput) (ports.Activation, error) {
	activation, err := a.Module.Service.CreateActivation(ctx, activationports.CreateActivationInput{
		UserID:         input.UserID,
		ProviderID:     input.ProviderID,
		PriceCents:     input.PriceCents,
		IdempotencyKey: input.IdempotencyKey,
		ReservationID:  input.ReservationID,
	})
	if err != nil {
		return ports.Activation{}, err
	}
	return toOrchestratorActivation(activation), nil
}

func (a ActivationAdapter) Transition(ctx context.Context, activationID string, to ports.ActivationState, reason string, metadata map[string]string, traceID string) (ports.Activation, error) {
	activation, err := a.Module.Kernel.Transition(ctx, activationports.TransitionRequest{
		ActivationID: activationID,
		ToState:      activationstatemachine.State(to),
		Reason:       reason,
		Metadata:     metadata,
		TraceID:      traceID,
	})
	if err != nil {
		return ports.Activation{}, err
	}
	return toOrchestratorActivation(activation), nil
}

func (a ActivationAdapter) GetActivation(ctx context.Context, activationID string) (ports.Activation, error) {
	activation, err := a.Module.Service.GetActivation(ctx, activationID)
	if err != nil {
		return ports.Activation{}, err
	}
	out := toOrchestratorActivation(activation)
	if number, found, _ := a.Module.Service.GetNumberByActivation(ctx, activationID); found {
		if messages, err := a.Module.Service.ListSmsMessages(ctx, number.NumberID); err == nil {
			out.SmsCount = len(messages)
		}
	}
	return out, nil
}

func (a ActivationAdapter) BindNumber(ctx context.Context, activationID, upstreamID, phone string, priceCents int64, expiresAt time.Time, serviceName, countryName string) error {
	activation, err := a.Module.Service.GetActivation(ctx, activationID)
	if err != nil {
		return err
	}
	return a.Module.Service.BindNumber(ctx, nil, activationports.Number{
		ActivationID: activationID,
		PhoneNumber:  phone,
		UpstreamID:   upstreamID,
		UserID:       activation.UserID,
		ServiceName:  serviceName,
		CountryName:  countryName,
		ProviderID:   activation.ProviderID,
		PriceCents:   priceCents,
		ExpiresAt:    expiresAt,
		CreatedAt:    activation.CreatedAt,
	})
}

func (a ActivationAdapter) ListMessages(ctx context.Context, activationID string) ([]ports.Message, error) {
	number, found, err := a.Module.Service.GetNumberByActivation(ctx, activationID)
	if err != nil || !found {
		return nil, err
	}
	rows, err := a.Module.Service.ListSmsMessages(ctx, number.NumberID)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.Message{Code: row.Code, Content: row.Content, ReceivedAt: row.ReceivedAt})
	}
	return out, nil
}

func toOrchestratorActivation(a activationports.Activation) ports.Activation {
	return ports.Activation{
		ActivationID:   a.ActivationID,
		UserID:         a.UserID,
		ProviderID:     a.ProviderID,
		PriceCents:     a.PriceCents,
		State:          ports.ActivationState(a.State),
		UpstreamID:     a.UpstreamID,
		PhoneNumber:    a.PhoneNumber,
		CreatedAt:      a.CreatedAt,
		ExpiresAt:      a.ExpiresAt,
		IdempotencyKey: a.IdempotencyKey,
		ReservationID:  a.ReservationID,
	}
}

// InProcessOutbox is a minimal OutboxWriter used by the in-memory module;
// the postgres-backed wiring instead uses adapters/outbox.Writer over the
// shared outbox engine's in-memory store, so in neither wiring do these
// events survive a process restart.
type InProcessOutbox struct {
	mu     sync.Mutex
	Events []QueuedEvent
}

type QueuedEvent struct {
	EventType   string
	AggregateID string
	Payload     map[string]any
}

func (o *InProcessOutbox) Enqueue(ctx context.Context, eventType, aggregateID string, payload map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, QueuedEvent{EventType: eventType, AggregateID: aggregateID, Payload: payload})
	return nil
}

func (o *InProcessOutbox) List() []QueuedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]QueuedEvent, len(o.Events))
	copy(out, o.Events)
	return out
}

// InProcessDueIndex is a minimal DueIndex used by the in-memory module; the
// redis-backed due-index of poll-manager-service implements the same
// contract for production wiring.
type InProcessDueIndex struct {
	mu    sync.Mutex
	Due   map[string]time.Time
	clock func() time.Time
}

func NewInProcessDueIndex() *InProcessDueIndex {
	return &InProcessDueIndex{Due: make(map[string]time.Time), clock: time.Now}
}

func (d *InProcessDueIndex) ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Due[activationID] = d.clock().UTC().Add(delay)
	return nil
}
