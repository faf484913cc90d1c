package application_test

import (
	"context"
	"testing"
	"time"

	"solomon/contexts/number-marketplace/reaper-service/application"
	"solomon/contexts/number-marketplace/reaper-service/ports"
)

type fakeReservations struct {
	dueCount   int
	dueErr     error
	purged     int
	purgeErr   error
	purgeCalls int
}

func (r *fakeReservations) ExpireDueReservations(ctx context.Context, limit int) (int, error) {
	return r.dueCount, r.dueErr
}

func (r *fakeReservations) PurgeReservations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	r.purgeCalls++
	return r.purged, r.purgeErr
}

type fakeNumbers struct {
	expirable []ports.ExpirableNumber
	stored    map[string]bool
	completed []string
	expired   []string
	zombies   []ports.ZombieActivation
}

func (n *fakeNumbers) ListExpirableNumbers(ctx context.Context, limit int) ([]ports.ExpirableNumber, error) {
	return n.expirable, nil
}

func (n *fakeNumbers) HasStoredMessages(ctx context.Context, numberID string) (bool, error) {
	return n.stored[numberID], nil
}

func (n *fakeNumbers) MarkNumberCompleted(ctx context.Context, numberID string) error {
	n.completed = append(n.completed, numberID)
	return nil
}

func (n *fakeNumbers) MarkNumberExpired(ctx context.Context, numberID string) error {
	n.expired = append(n.expired, numberID)
	return nil
}

func (n *fakeNumbers) ListZombieActivations(ctx context.Context, limit int) ([]ports.ZombieActivation, error) {
	return n.zombies, nil
}

type fakeKernel struct {
	received []string
	expiredT []string
	failed   []string
	refunded []string
}

func (k *fakeKernel) TransitionToReceived(ctx context.Context, activationID string) error {
	k.received = append(k.received, activationID)
	return nil
}

func (k *fakeKernel) TransitionToExpired(ctx context.Context, activationID string) error {
	k.expiredT = append(k.expiredT, activationID)
	return nil
}

func (k *fakeKernel) TransitionToFailed(ctx context.Context, activationID, reason string) error {
	k.failed = append(k.failed, activationID)
	return nil
}

func (k *fakeKernel) TransitionToRefunded(ctx context.Context, activationID string) error {
	k.refunded = append(k.refunded, activationID)
	return nil
}

type fakeWallet struct {
	rolledBack []string
	refunded   []string
}

func (w *fakeWallet) Rollback(ctx context.Context, reservationID, idempotencyKey string) error {
	w.rolledBack = append(w.rolledBack, reservationID)
	return nil
}

func (w *fakeWallet) Refund(ctx context.Context, userID string, amountCents int64, reason, memo, idempotencyKey string) error {
	w.refunded = append(w.refunded, userID)
	return nil
}

type fakeProviders struct {
	statusByUpstream map[string]ports.ProviderStatusResult
	cancelled        []string
}

func (p *fakeProviders) FinalStatus(ctx context.Context, providerID, upstreamID string) (ports.ProviderStatusResult, error) {
	return p.statusByUpstream[upstreamID], nil
}

func (p *fakeProviders) Cancel(ctx context.Context, providerID, upstreamID string) error {
	p.cancelled = append(p.cancelled, upstreamID)
	return nil
}

type fixedRandom struct{ value float64 }

func (f fixedRandom) Float64() float64 { return f.value }

func newReaper(numbers *fakeNumbers, kernel *fakeKernel, wallet *fakeWallet, providers *fakeProviders, reservations *fakeReservations) application.Reaper {
	return application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       kernel,
		Wallet:       wallet,
		Providers:    providers,
		Random:       fixedRandom{value: 1},
	}
}

func TestRunCycleExpiresDueReservations(t *testing.T) {
	reservations := &fakeReservations{dueCount: 3}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	reaper := newReaper(numbers, &fakeKernel{}, &fakeWallet{}, &fakeProviders{}, reservations)

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReservationsExpired != 3 {
		t.Fatalf("expected 3 reservations expired, got %d", result.ReservationsExpired)
	}
}

func TestRunCycleTimeoutNoSmsExpiresNumberAndCancelsUpstream(t *testing.T) {
	numbers := &fakeNumbers{
		stored: map[string]bool{"num-1": false},
		expirable: []ports.ExpirableNumber{
			{NumberID: "num-1", ActivationID: "act-1", ProviderID: "smsactivate", UpstreamID: "up-1", ExpiresAt: time.Now().Add(-time.Minute), ReservationID: "res-1", UserID: "user-1", PriceCents: 500},
		},
	}
	kernel := &fakeKernel{}
	wallet := &fakeWallet{}
	providers := &fakeProviders{statusByUpstream: map[string]ports.ProviderStatusResult{"up-1": {HasMessage: false}}}
	reaper := newReaper(numbers, kernel, wallet, providers, &fakeReservations{})

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NumbersExpired != 1 {
		t.Fatalf("expected one number expired, got %d", result.NumbersExpired)
	}
	if len(providers.cancelled) != 1 || providers.cancelled[0] != "up-1" {
		t.Fatalf("expected the upstream number to be cancelled, got %v", providers.cancelled)
	}
	if len(kernel.expiredT) != 1 || kernel.expiredT[0] != "act-1" {
		t.Fatalf("expected the activation to transition to EXPIRED, got %v", kernel.expiredT)
	}
	if len(numbers.expired) != 1 {
		t.Fatalf("expected the number row to be marked expired")
	}
	if len(wallet.rolledBack) != 1 || wallet.rolledBack[0] != "res-1" {
		t.Fatalf("expected the committed reservation to be rolled back, got %v", wallet.rolledBack)
	}
	if len(kernel.refunded) != 1 || kernel.refunded[0] != "act-1" {
		t.Fatalf("expected the activation to transition to REFUNDED, got %v", kernel.refunded)
	}
}

func TestRunCycleExpiryWithoutReservationIDFallsBackToDirectRefund(t *testing.T) {
	numbers := &fakeNumbers{
		stored: map[string]bool{"num-1": false},
		expirable: []ports.ExpirableNumber{
			{NumberID: "num-1", ActivationID: "act-1", ProviderID: "smsactivate", UpstreamID: "up-1", ExpiresAt: time.Now().Add(-time.Minute), UserID: "user-1", PriceCents: 500},
		},
	}
	kernel := &fakeKernel{}
	wallet := &fakeWallet{}
	providers := &fakeProviders{statusByUpstream: map[string]ports.ProviderStatusResult{"up-1": {HasMessage: false}}}
	reaper := newReaper(numbers, kernel, wallet, providers, &fakeReservations{})

	if _, err := reaper.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wallet.rolledBack) != 0 {
		t.Fatalf("did not expect Rollback to be called without a reservation id, got %v", wallet.rolledBack)
	}
	if len(wallet.refunded) != 1 || wallet.refunded[0] != "user-1" {
		t.Fatalf("expected a direct refund to the user, got %v", wallet.refunded)
	}
	if len(kernel.refunded) != 1 || kernel.refunded[0] != "act-1" {
		t.Fatalf("expected the activation to transition to REFUNDED, got %v", kernel.refunded)
	}
}

func TestRunCycleLateSmsWinsRaceAgainstExpiry(t *testing.T) {
	numbers := &fakeNumbers{
		stored: map[string]bool{"num-1": true},
		expirable: []ports.ExpirableNumber{
			{NumberID: "num-1", ActivationID: "act-1", ProviderID: "smsactivate", UpstreamID: "up-1", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	kernel := &fakeKernel{}
	providers := &fakeProviders{}
	reaper := newReaper(numbers, kernel, &fakeWallet{}, providers, &fakeReservations{})

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NumbersCompleted != 1 {
		t.Fatalf("expected one number completed via the late-sms race, got %d", result.NumbersCompleted)
	}
	if len(kernel.received) != 1 || kernel.received[0] != "act-1" {
		t.Fatalf("expected the activation to transition to RECEIVED, got %v", kernel.received)
	}
	if len(providers.cancelled) != 0 {
		t.Fatalf("did not expect cancel to be called when an sms already arrived")
	}
	if len(numbers.completed) != 1 {
		t.Fatalf("expected the number row to be marked completed")
	}
}

func TestRunCycleRollsBackZombieReservations(t *testing.T) {
	numbers := &fakeNumbers{
		stored: map[string]bool{},
		zombies: []ports.ZombieActivation{
			{ActivationID: "act-9", ReservationID: "res-9", UserID: "user-1", PriceCents: 1000},
		},
	}
	kernel := &fakeKernel{}
	wallet := &fakeWallet{}
	reaper := newReaper(numbers, kernel, wallet, &fakeProviders{}, &fakeReservations{})

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ZombiesRolledBack != 1 {
		t.Fatalf("expected one zombie rolled back, got %d", result.ZombiesRolledBack)
	}
	if len(wallet.rolledBack) != 1 || wallet.rolledBack[0] != "res-9" {
		t.Fatalf("expected the reservation to be rolled back, got %v", wallet.rolledBack)
	}
	if len(kernel.failed) != 1 || kernel.failed[0] != "act-9" {
		t.Fatalf("expected the activation to transition to FAILED, got %v", kernel.failed)
	}
}

func TestRunCycleSkipsHousekeepingWhenCoinFlipMisses(t *testing.T) {
	reservations := &fakeReservations{purged: 5}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	reaper := application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       &fakeKernel{},
		Wallet:       &fakeWallet{},
		Providers:    &fakeProviders{},
		Random:       fixedRandom{value: 0.5},
	}

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HousekeepingRan {
		t.Fatalf("expected housekeeping to be skipped above the 1%% threshold")
	}
	if reservations.purgeCalls != 0 {
		t.Fatalf("did not expect PurgeReservations to be called")
	}
}

func TestRunCycleRunsHousekeepingWhenCoinFlipHits(t *testing.T) {
	reservations := &fakeReservations{purged: 5}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	reaper := application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       &fakeKernel{},
		Wallet:       &fakeWallet{},
		Providers:    &fakeProviders{},
		Random:       fixedRandom{value: 0},
	}

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HousekeepingRan || result.ReservationsPurged != 5 {
		t.Fatalf("expected housekeeping to run and report the purge count, got %+v", result)
	}
}

type fakeOutboxPurger struct {
	purged int
	calls  int
}

func (f *fakeOutboxPurger) PurgeTerminal(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	f.calls++
	return f.purged, nil
}

func TestRunCycleSkipsOutboxPurgeWhenNoPurgerWired(t *testing.T) {
	reservations := &fakeReservations{purged: 5}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	reaper := application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       &fakeKernel{},
		Wallet:       &fakeWallet{},
		Providers:    &fakeProviders{},
		Random:       fixedRandom{value: 0},
	}

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OutboxRowsPurged != 0 {
		t.Fatalf("expected no outbox rows purged without a wired OutboxPurger, got %d", result.OutboxRowsPurged)
	}
}

func TestRunCyclePurgesOutboxRowsWhenHousekeepingRuns(t *testing.T) {
	reservations := &fakeReservations{purged: 5}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	outbox := &fakeOutboxPurger{purged: 12}
	reaper := application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       &fakeKernel{},
		Wallet:       &fakeWallet{},
		Providers:    &fakeProviders{},
		Outbox:       outbox,
		Random:       fixedRandom{value: 0},
	}

	result, err := reaper.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outbox.calls != 1 {
		t.Fatalf("expected PurgeTerminal to be called once, got %d calls", outbox.calls)
	}
	if result.OutboxRowsPurged != 12 {
		t.Fatalf("expected 12 outbox rows reported purged, got %d", result.OutboxRowsPurged)
	}
}

func TestRunCycleSkipsOutboxPurgeWhenCoinFlipMisses(t *testing.T) {
	reservations := &fakeReservations{purged: 5}
	numbers := &fakeNumbers{stored: map[string]bool{}}
	outbox := &fakeOutboxPurger{purged: 12}
	reaper := application.Reaper{
		Reservations: reservations,
		Numbers:      numbers,
		Zombies:      numbers,
		Kernel:       &fakeKernel{},
		Wallet:       &fakeWallet{},
		Providers:    &fakeProviders{},
		Outbox:       outbox,
		Random:       fixedRandom{value: 0.5},
	}

	if _, err := reaper.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outbox.calls != 0 {
		t.Fatalf("did not expect PurgeTerminal to be called above the housekeeping threshold")
	}
}
