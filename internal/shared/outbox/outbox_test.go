package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	contractsv1 "solomon/contracts/gen/events/v1"
	"solomon/internal/shared/outbox"
	"solomon/internal/shared/outbox/memory"
)

func TestNextBackoffCapsAtFiveMinutes(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{20, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := outbox.NextBackoff(tc.retryCount); got != tc.want {
			t.Fatalf("NextBackoff(%d) = %v, want %v", tc.retryCount, got, tc.want)
		}
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newRow(t *testing.T, store *memory.Store, eventType string, now time.Time) {
	t.Helper()
	if _, err := store.Append(context.Background(), eventType, "activation", "act-1", contractsv1.Envelope{EventType: eventType}, now); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestRunOnceMarksPublishedOnSuccess(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	newRow(t, store, "offer.updated", now)

	delivered := 0
	dispatcher := outbox.Dispatcher{
		Store: store,
		Handlers: map[string]outbox.Handler{
			"offer.updated": func(ctx context.Context, row outbox.Row) error {
				delivered++
				return nil
			},
		},
	}

	n, err := dispatcher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || delivered != 1 {
		t.Fatalf("expected one row delivered, got dispatched=%d delivered=%d", n, delivered)
	}

	again, err := dispatcher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second cycle: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected the published row not to be reclaimed, got %d", again)
	}
}

func TestRunOnceRetriesWithBackoffOnFailure(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	newRow(t, store, "saga.compensate.cancel_number", now)

	dispatcher := outbox.Dispatcher{
		Store: store,
		Clock: &fakeClock{now: now},
		Handlers: map[string]outbox.Handler{
			"saga.compensate.cancel_number": func(ctx context.Context, row outbox.Row) error {
				return errors.New("upstream unavailable")
			},
		},
	}

	if _, err := dispatcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The row is pending again with NextAttemptAt in the future; it must
	// not be reclaimed before then.
	reclaimed, err := store.ClaimBatch(context.Background(), now, 30*time.Second, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("expected the row to wait out its backoff, got %d claimable", len(reclaimed))
	}

	later, err := store.ClaimBatch(context.Background(), now.Add(2*time.Second), 30*time.Second, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(later) != 1 || later[0].RetryCount != 1 {
		t.Fatalf("expected the row to be claimable again with retryCount=1, got %+v", later)
	}
}

func TestRunOnceFailsRowAfterRetryBudgetExhausted(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	newRow(t, store, "refund", now)

	clock := &fakeClock{now: now}
	dispatcher := outbox.Dispatcher{
		Store: store,
		Clock: clock,
		Handlers: map[string]outbox.Handler{
			"refund": func(ctx context.Context, row outbox.Row) error {
				return errors.New("still failing")
			},
		},
	}

	for i := 0; i < 5; i++ {
		if _, err := dispatcher.RunOnce(context.Background()); err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i, err)
		}
		clock.now = clock.now.Add(10 * time.Minute)
		claimed, err := store.ClaimBatch(context.Background(), clock.now, 30*time.Second, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i < 4 {
			if len(claimed) != 1 {
				t.Fatalf("expected the row still claimable before the retry budget is exhausted, attempt %d", i)
			}
			// Step past the probe's own claim lease so the next RunOnce
			// can reclaim the row.
			clock.now = clock.now.Add(time.Minute)
			continue
		}
		if len(claimed) != 0 {
			t.Fatalf("expected the row to be FAILED and no longer claimable after 5 attempts")
		}
	}
}

func TestRunOnceLeavesUnknownEventTypeClaimedForReclaim(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	newRow(t, store, "no.such.handler", now)

	dispatcher := outbox.Dispatcher{Store: store, Clock: &fakeClock{now: now}, Handlers: map[string]outbox.Handler{}}

	if _, err := dispatcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stillClaimed, err := store.ClaimBatch(context.Background(), now.Add(time.Second), 30*time.Second, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stillClaimed) != 0 {
		t.Fatalf("expected the row to stay claimed within the lease window")
	}

	reclaimed, err := store.ClaimBatch(context.Background(), now.Add(31*time.Second), 30*time.Second, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected the row to reclaim once its lease expires, got %d", len(reclaimed))
	}
}
