package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"solomon/contexts/number-marketplace/poll-manager-service/application"
	"solomon/contexts/number-marketplace/poll-manager-service/ports"
)

type fakeLock struct{ held bool }

func (l *fakeLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, key string) error {
	l.held = false
	return nil
}

type fakeDueIndex struct {
	mu          sync.Mutex
	due         map[string]time.Time
	removed     []string
	rescheduled map[string]time.Duration
}

func newFakeDueIndex(ids ...string) *fakeDueIndex {
	due := make(map[string]time.Time)
	for _, id := range ids {
		due[id] = time.Now().UTC().Add(-time.Second)
	}
	return &fakeDueIndex{due: due, rescheduled: map[string]time.Duration{}}
}

func (d *fakeDueIndex) ScheduleFirstPoll(ctx context.Context, activationID string, delay time.Duration) error {
	return d.Reschedule(ctx, activationID, delay)
}

func (d *fakeDueIndex) Reschedule(ctx context.Context, activationID string, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rescheduled[activationID] = delay
	return nil
}

func (d *fakeDueIndex) FetchDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for id, at := range d.due {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *fakeDueIndex) Remove(ctx context.Context, activationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, activationID)
	delete(d.due, activationID)
	return nil
}

type fakeKernel struct {
	pollable []ports.PollableActivation
	ingested int
	received []string
	extended []string
}

func (k *fakeKernel) LoadPollable(ctx context.Context, ids []string) ([]ports.PollableActivation, error) {
	return k.pollable, nil
}

func (k *fakeKernel) IngestMessage(ctx context.Context, activationID, numberID, code, content string) (bool, error) {
	k.ingested++
	return true, nil
}

func (k *fakeKernel) TransitionToReceived(ctx context.Context, activationID string) error {
	k.received = append(k.received, activationID)
	return nil
}

func (k *fakeKernel) ExtendNumberExpiry(ctx context.Context, activationID string) error {
	k.extended = append(k.extended, activationID)
	return nil
}

type fakeProviders struct {
	result        ports.ProviderStatusResult
	err           error
	batchResult   map[string]ports.ProviderStatusResult
	supportsBatch bool
}

func (p *fakeProviders) Status(ctx context.Context, providerID, upstreamID string) (ports.ProviderStatusResult, error) {
	return p.result, p.err
}

func (p *fakeProviders) StatusBatch(ctx context.Context, providerID string, upstreamIDs []string) (map[string]ports.ProviderStatusResult, error) {
	return p.batchResult, p.err
}

func (p *fakeProviders) SupportsBatchStatus(providerID string) bool { return p.supportsBatch }

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	lock := &fakeLock{held: true}
	poller := application.Poller{Lock: lock, DueIndex: newFakeDueIndex(), Kernel: &fakeKernel{}, Providers: &fakeProviders{}}
	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("expected no error when the lock is contended, got %v", err)
	}
}

func TestRunCycleIngestsMessagesAndReschedules(t *testing.T) {
	due := newFakeDueIndex("act-1")
	kernel := &fakeKernel{pollable: []ports.PollableActivation{
		{ActivationID: "act-1", ProviderID: "smsactivate", UpstreamID: "up-1", NumberID: "num-1", State: ports.StateActive, CreatedAt: time.Now().Add(-time.Minute)},
	}}
	providers := &fakeProviders{result: ports.ProviderStatusResult{Messages: []ports.ProviderMessage{{Code: "123456"}}}}
	poller := application.Poller{Lock: &fakeLock{}, DueIndex: due, Kernel: kernel, Providers: providers}

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kernel.ingested != 1 {
		t.Fatalf("expected one message to be ingested, got %d", kernel.ingested)
	}
	if len(kernel.received) != 1 {
		t.Fatalf("expected a transition to RECEIVED, got %v", kernel.received)
	}
	if len(kernel.extended) != 1 {
		t.Fatalf("expected the number's expiry to be extended")
	}
	if _, rescheduled := due.rescheduled["act-1"]; !rescheduled {
		t.Fatalf("expected the item to be rescheduled for the next poll")
	}
}

func TestRunCycleRemovesItemsNoLongerPollable(t *testing.T) {
	due := newFakeDueIndex("act-gone")
	kernel := &fakeKernel{}
	poller := application.Poller{Lock: &fakeLock{}, DueIndex: due, Kernel: kernel, Providers: &fakeProviders{}}

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due.removed) != 1 || due.removed[0] != "act-gone" {
		t.Fatalf("expected the stale id to be removed from the due-index, got %v", due.removed)
	}
}

func TestRunCycleReschedulesOnEmptyResult(t *testing.T) {
	due := newFakeDueIndex("act-1")
	kernel := &fakeKernel{pollable: []ports.PollableActivation{
		{ActivationID: "act-1", ProviderID: "fivesim", UpstreamID: "up-1", NumberID: "num-1", State: ports.StateActive, CreatedAt: time.Now()},
	}}
	poller := application.Poller{Lock: &fakeLock{}, DueIndex: due, Kernel: kernel, Providers: &fakeProviders{}}

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, rescheduled := due.rescheduled["act-1"]; !rescheduled {
		t.Fatalf("expected the item to be rescheduled after an empty status result")
	}
	if len(due.removed) != 0 {
		t.Fatalf("did not expect the item to be removed on an empty, non-terminal result")
	}
}
