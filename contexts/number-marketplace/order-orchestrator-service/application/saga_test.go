package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"solomon/contexts/number-marketplace/order-orchestrator-service/application"
	domainerrors "solomon/contexts/number-marketplace/order-orchestrator-service/domain/errors"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
)

type fakeWallet struct {
	reserveErr    error
	commitErr     error
	reserveCalls  int
	rollbackCalls int
	commitCalls   int
	refundCalls   int
}

func (w *fakeWallet) Reserve(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (ports.LedgerEntry, error) {
	w.reserveCalls++
	if w.reserveErr != nil {
		return ports.LedgerEntry{}, w.reserveErr
	}
	return ports.LedgerEntry{EntryID: "entry-1", ReservationID: "res-1"}, nil
}

func (w *fakeWallet) Commit(ctx context.Context, reservationID, idempotencyKey string) (ports.LedgerEntry, error) {
	w.commitCalls++
	if w.commitErr != nil {
		return ports.LedgerEntry{}, w.commitErr
	}
	return ports.LedgerEntry{EntryID: "entry-2", ReservationID: reservationID}, nil
}

func (w *fakeWallet) Rollback(ctx context.Context, reservationID, idempotencyKey string) (ports.LedgerEntry, error) {
	w.rollbackCalls++
	return ports.LedgerEntry{EntryID: "entry-3", ReservationID: reservationID}, nil
}

func (w *fakeWallet) Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) (ports.LedgerEntry, error) {
	w.refundCalls++
	return ports.LedgerEntry{EntryID: "entry-4"}, nil
}

type fakeProviders struct {
	acquireErr    error
	acquisition   ports.Acquisition
	resendSupport bool
	cancelCalls   int
}

func (p *fakeProviders) Acquire(ctx context.Context, providerID, countryCode, serviceCode string, maxPriceCents int64, operatorID string) (ports.Acquisition, error) {
	if p.acquireErr != nil {
		return ports.Acquisition{}, p.acquireErr
	}
	return p.acquisition, nil
}

func (p *fakeProviders) Cancel(ctx context.Context, providerID, upstreamID string) error {
	p.cancelCalls++
	return nil
}

func (p *fakeProviders) SupportsResend(providerID string) bool { return p.resendSupport }

func (p *fakeProviders) RequestResend(ctx context.Context, providerID, upstreamID string) error {
	return nil
}

type fakeKernel struct {
	existing        map[string]ports.Activation
	created         ports.Activation
	bindErr         error
	transitions     []ports.ActivationState
	boundNumbers    int
	state           map[string]ports.ActivationState
	lastCreateInput ports.CreateActivationInput
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{existing: map[string]ports.Activation{}, state: map[string]ports.ActivationState{}}
}

func (k *fakeKernel) CreateActivation(ctx context.Context, input ports.CreateActivationInput) (ports.Activation, error) {
	k.lastCreateInput = input
	if existing, ok := k.existing[input.IdempotencyKey]; ok {
		return existing, nil
	}
	created := ports.Activation{
		ActivationID:  "act-1",
		UserID:        input.UserID,
		ProviderID:    input.ProviderID,
		PriceCents:    input.PriceCents,
		State:         ports.StateReserved,
		ReservationID: input.ReservationID,
	}
	k.created = created
	k.state[created.ActivationID] = ports.StateReserved
	return created, nil
}

func (k *fakeKernel) Transition(ctx context.Context, activationID string, to ports.ActivationState, reason string, metadata map[string]string, traceID string) (ports.Activation, error) {
	k.transitions = append(k.transitions, to)
	k.state[activationID] = to
	activation := k.created
	activation.State = to
	return activation, nil
}

func (k *fakeKernel) GetActivation(ctx context.Context, activationID string) (ports.Activation, error) {
	activation := k.created
	activation.State = k.state[activationID]
	return activation, nil
}

func (k *fakeKernel) BindNumber(ctx context.Context, activationID, upstreamID, phone string, priceCents int64, expiresAt time.Time, serviceName, countryName string) error {
	if k.bindErr != nil {
		return k.bindErr
	}
	k.boundNumbers++
	return nil
}

func (k *fakeKernel) ListMessages(ctx context.Context, activationID string) ([]ports.Message, error) {
	return nil, nil
}

type fakeOutbox struct {
	events []string
}

func (o *fakeOutbox) Enqueue(ctx context.Context, eventType, aggregateID string, payload map[string]any) error {
	o.events = append(o.events, eventType)
	return nil
}

type fakeDueIndex struct {
	scheduled int
}

func (d *fakeDueIndex) ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error {
	d.scheduled++
	return nil
}

func newSaga(wallet *fakeWallet, providers *fakeProviders, kernel *fakeKernel, outbox *fakeOutbox, due *fakeDueIndex) application.Saga {
	return application.Saga{
		Wallet:    wallet,
		Providers: providers,
		Kernel:    kernel,
		Outbox:    outbox,
		DueIndex:  due,
	}
}

func samplePurchaseInput() ports.PurchaseInput {
	return ports.PurchaseInput{
		UserID:         "user-1",
		ProviderID:     "smsactivate",
		CountryCode:    "0",
		ServiceCode:    "tg",
		PriceCents:     500,
		IdempotencyKey: "idem-1",
	}
}

func TestPurchaseHappyPath(t *testing.T) {
	wallet := &fakeWallet{}
	providers := &fakeProviders{acquisition: ports.Acquisition{UpstreamID: "up-1", Phone: "+1555", PriceCents: 500, ExpiresAt: time.Now().Add(10 * time.Minute)}}
	kernel := newFakeKernel()
	outbox := &fakeOutbox{}
	due := &fakeDueIndex{}
	saga := newSaga(wallet, providers, kernel, outbox, due)

	result := saga.Purchase(context.Background(), samplePurchaseInput())

	if !result.OK {
		t.Fatalf("expected purchase to succeed, got err code %q msg %q", result.ErrCode, result.Message)
	}
	if result.Phone != "+1555" || result.UpstreamID != "up-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if wallet.commitCalls != 1 || wallet.rollbackCalls != 0 {
		t.Fatalf("expected exactly one wallet commit and zero rollbacks, got commit=%d rollback=%d", wallet.commitCalls, wallet.rollbackCalls)
	}
	if kernel.boundNumbers != 1 {
		t.Fatalf("expected number to be bound exactly once")
	}
	if due.scheduled != 1 {
		t.Fatalf("expected first poll to be scheduled")
	}
	if kernel.lastCreateInput.ReservationID != "res-1" {
		t.Fatalf("expected the reservation id from Reserve to be persisted onto the activation, got %q", kernel.lastCreateInput.ReservationID)
	}
}

func TestPurchaseProviderNoNumbersRollsBackAndFails(t *testing.T) {
	wallet := &fakeWallet{}
	providers := &fakeProviders{acquireErr: errors.New("provider has no numbers available for this service/country")}
	kernel := newFakeKernel()
	outbox := &fakeOutbox{}
	due := &fakeDueIndex{}
	saga := newSaga(wallet, providers, kernel, outbox, due)

	result := saga.Purchase(context.Background(), samplePurchaseInput())

	if result.OK {
		t.Fatalf("expected purchase to fail")
	}
	if result.ErrCode != ports.ErrCodeProviderError {
		t.Fatalf("expected PROVIDER_ERROR, got %q", result.ErrCode)
	}
	if wallet.rollbackCalls != 1 {
		t.Fatalf("expected the reservation to be rolled back, got %d rollbacks", wallet.rollbackCalls)
	}
	if len(kernel.transitions) != 1 || kernel.transitions[0] != ports.StateFailed {
		t.Fatalf("expected a single transition to FAILED, got %v", kernel.transitions)
	}
}

func TestPurchaseCommitFailureCompensates(t *testing.T) {
	wallet := &fakeWallet{}
	providers := &fakeProviders{acquisition: ports.Acquisition{UpstreamID: "up-2", Phone: "+1777", PriceCents: 500}}
	kernel := newFakeKernel()
	kernel.bindErr = errors.New("bind number failed")
	outbox := &fakeOutbox{}
	due := &fakeDueIndex{}
	saga := newSaga(wallet, providers, kernel, outbox, due)

	result := saga.Purchase(context.Background(), samplePurchaseInput())

	if result.OK {
		t.Fatalf("expected purchase to fail")
	}
	if result.ErrCode != ports.ErrCodeSystemError {
		t.Fatalf("expected SYSTEM_ERROR, got %q", result.ErrCode)
	}
	found := false
	for _, event := range outbox.events {
		if event == "saga.compensate.cancel_number" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a compensation event to be queued, got %v", outbox.events)
	}
	if len(kernel.transitions) == 0 || kernel.transitions[len(kernel.transitions)-1] != ports.StateFailed {
		t.Fatalf("expected the activation to end up FAILED, got %v", kernel.transitions)
	}
}

func TestPurchaseIsIdempotentOnExistingActivation(t *testing.T) {
	wallet := &fakeWallet{}
	providers := &fakeProviders{}
	kernel := newFakeKernel()
	kernel.existing["idem-1"] = ports.Activation{
		ActivationID: "act-existing",
		State:        ports.StateActive,
		PhoneNumber:  "+1999",
		UpstreamID:   "up-existing",
	}
	outbox := &fakeOutbox{}
	due := &fakeDueIndex{}
	saga := newSaga(wallet, providers, kernel, outbox, due)

	result := saga.Purchase(context.Background(), samplePurchaseInput())

	if !result.OK || result.ActivationID != "act-existing" {
		t.Fatalf("expected the replay to return the existing activation, got %+v", result)
	}
	if len(outbox.events) != 0 {
		t.Fatalf("expected no side effects on replay, got %v", outbox.events)
	}
	if due.scheduled != 0 {
		t.Fatalf("expected no poll to be scheduled on replay")
	}
}

func TestResendSmsNotSupportedByProvider(t *testing.T) {
	wallet := &fakeWallet{}
	providers := &fakeProviders{resendSupport: false}
	kernel := newFakeKernel()
	kernel.created = ports.Activation{ActivationID: "act-1", UserID: "user-1", State: ports.StateActive, SmsCount: 1}
	kernel.state["act-1"] = ports.StateActive
	outbox := &fakeOutbox{}
	due := &fakeDueIndex{}
	saga := newSaga(wallet, providers, kernel, outbox, due)

	err := saga.ResendSms(context.Background(), "act-1", "user-1")

	if !errors.Is(err, domainerrors.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
