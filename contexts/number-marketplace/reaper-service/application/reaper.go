package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"solomon/contexts/number-marketplace/reaper-service/ports"
)

const (
	defaultBatchSize        = 100
	housekeepingProbability = 0.01
	housekeepingAge         = 7 * 24 * time.Hour
)

// Reaper runs the four periodic sweeps of spec.md §4.7, each independently
// bounded by BatchSize so one slow sweep never starves the others in the
// same tick.
type Reaper struct {
	Reservations ports.ReservationStore
	Numbers      ports.NumberStore
	Zombies      ports.ZombieStore
	Kernel       ports.ActivationKernel
	Wallet       ports.WalletGateway
	Providers    ports.ProviderGateway
	Outbox       ports.OutboxPurger
	Clock        ports.Clock
	Random       ports.Random
	BatchSize    int
	Logger       *slog.Logger
}

// outboxRetention is how long a PUBLISHED/FAILED outbox row survives
// before the housekeeping sweep purges it (spec.md §4.7 #4).
const outboxRetention = 7 * 24 * time.Hour

// SweepResult tallies what each sub-sweep touched, for logging and tests.
type SweepResult struct {
	ReservationsExpired int
	NumbersCompleted    int
	NumbersExpired      int
	ZombiesRolledBack   int
	ReservationsPurged  int
	OutboxRowsPurged    int
	HousekeepingRan     bool
}

// RunCycle executes all four sweeps in sequence. A failure in one sweep is
// logged and does not prevent the remaining sweeps from running; the first
// error encountered is returned after every sweep has had a turn.
func (r Reaper) RunCycle(ctx context.Context) (SweepResult, error) {
	logger := ResolveLogger(r.Logger)
	var result SweepResult
	var firstErr error

	note := func(stage string, err error) {
		if err == nil {
			return
		}
		if firstErr == nil {
			firstErr = err
		}
		logger.Error("reaper sweep failed",
			"event", "reaper_sweep_failed",
			"module", "number-marketplace/reaper-service",
			"layer", "application",
			"sweep", stage,
			"error", err.Error(),
		)
	}

	expired, err := r.sweepReservationExpiry(ctx)
	result.ReservationsExpired = expired
	note("reservation_expiry", err)

	completed, numExpired, err := r.sweepNumberExpiry(ctx)
	result.NumbersCompleted = completed
	result.NumbersExpired = numExpired
	note("number_expiry", err)

	rolledBack, err := r.sweepZombieFunds(ctx)
	result.ZombiesRolledBack = rolledBack
	note("zombie_funds", err)

	if r.rollHousekeeping() {
		result.HousekeepingRan = true
		purged, err := r.sweepHousekeeping(ctx)
		result.ReservationsPurged = purged
		note("housekeeping", err)

		outboxPurged, err := r.sweepOutboxHousekeeping(ctx)
		result.OutboxRowsPurged = outboxPurged
		note("outbox_housekeeping", err)
	}

	logger.Debug("reaper cycle completed",
		"event", "reaper_cycle_completed",
		"module", "number-marketplace/reaper-service",
		"layer", "application",
		"reservations_expired", result.ReservationsExpired,
		"numbers_completed", result.NumbersCompleted,
		"numbers_expired", result.NumbersExpired,
		"zombies_rolled_back", result.ZombiesRolledBack,
		"housekeeping_ran", result.HousekeepingRan,
		"reservations_purged", result.ReservationsPurged,
	)
	return result, firstErr
}

// sweepReservationExpiry is spec.md §4.7 #1: PENDING reservations past
// expiry are expired and restore stock; catalog-service owns the
// stock-restore and the offer.updated projection internally.
func (r Reaper) sweepReservationExpiry(ctx context.Context) (int, error) {
	return r.Reservations.ExpireDueReservations(ctx, r.batchSize())
}

// sweepNumberExpiry is spec.md §4.7 #2: before expiring an active/received
// number, probe the upstream one more time and check locally stored
// messages; a late SMS wins the race and the activation completes instead
// of expiring.
func (r Reaper) sweepNumberExpiry(ctx context.Context) (completed int, expired int, err error) {
	numbers, err := r.Numbers.ListExpirableNumbers(ctx, r.batchSize())
	if err != nil {
		return 0, 0, err
	}
	for _, number := range numbers {
		hasMessage, probeErr := r.lateMessageExists(ctx, number)
		if probeErr != nil {
			err = firstNonNil(err, probeErr)
			continue
		}
		if hasMessage {
			if markErr := r.Numbers.MarkNumberCompleted(ctx, number.NumberID); markErr != nil {
				err = firstNonNil(err, markErr)
				continue
			}
			if transErr := r.Kernel.TransitionToReceived(ctx, number.ActivationID); transErr != nil {
				err = firstNonNil(err, transErr)
				continue
			}
			completed++
			continue
		}

		// Best-effort cancel: the upstream having already released the
		// number does not block expiring it locally.
		_ = r.Providers.Cancel(ctx, number.ProviderID, number.UpstreamID)
		if markErr := r.Numbers.MarkNumberExpired(ctx, number.NumberID); markErr != nil {
			err = firstNonNil(err, markErr)
			continue
		}
		if transErr := r.Kernel.TransitionToExpired(ctx, number.ActivationID); transErr != nil {
			err = firstNonNil(err, transErr)
			continue
		}
		if refundErr := r.refundExpiredNumber(ctx, number); refundErr != nil {
			err = firstNonNil(err, refundErr)
			continue
		}
		expired++
	}
	return completed, expired, err
}

// refundExpiredNumber closes S4's ACTIVE → EXPIRED → REFUNDED loop: the
// reservation was already committed to the wallet at acquisition time
// (saga.go's RESERVED → ACTIVE step), so expiring the number without a
// delivered SMS must return those funds before the activation reaches its
// terminal REFUNDED state. ReservationID is the normal path; the Refund
// fallback only fires for activations created before reservation linkage
// was persisted.
func (r Reaper) refundExpiredNumber(ctx context.Context, number ports.ExpirableNumber) error {
	idempotencyKey := fmt.Sprintf("reaper_expiry_refund_%s", number.ActivationID)
	if number.ReservationID != "" {
		if err := r.Wallet.Rollback(ctx, number.ReservationID, idempotencyKey); err != nil {
			return err
		}
	} else if err := r.Wallet.Refund(ctx, number.UserID, number.PriceCents, "number expired with no sms", number.ActivationID, idempotencyKey); err != nil {
		return err
	}
	return r.Kernel.TransitionToRefunded(ctx, number.ActivationID)
}

func (r Reaper) lateMessageExists(ctx context.Context, number ports.ExpirableNumber) (bool, error) {
	stored, err := r.Numbers.HasStoredMessages(ctx, number.NumberID)
	if err != nil {
		return false, err
	}
	if stored {
		return true, nil
	}
	status, err := r.Providers.FinalStatus(ctx, number.ProviderID, number.UpstreamID)
	if err != nil {
		return false, nil
	}
	return status.HasMessage, nil
}

// sweepZombieFunds is spec.md §4.7 #3: an activation stuck in RESERVED past
// the zombie window never made it past the saga's first step. Roll the
// reservation back and fail the activation so the funds are freed.
func (r Reaper) sweepZombieFunds(ctx context.Context) (int, error) {
	zombies, err := r.Zombies.ListZombieActivations(ctx, r.batchSize())
	if err != nil {
		return 0, err
	}
	rolledBack := 0
	for _, zombie := range zombies {
		idempotencyKey := fmt.Sprintf("reaper_zombie_%s", zombie.ActivationID)
		if err := r.Wallet.Rollback(ctx, zombie.ReservationID, idempotencyKey); err != nil {
			return rolledBack, err
		}
		if err := r.Kernel.TransitionToFailed(ctx, zombie.ActivationID, "zombie reservation"); err != nil {
			return rolledBack, err
		}
		rolledBack++
	}
	return rolledBack, nil
}

// sweepHousekeeping is spec.md §4.7 #4: a probabilistic purge of old
// terminal reservations.
func (r Reaper) sweepHousekeeping(ctx context.Context) (int, error) {
	return r.Reservations.PurgeReservations(ctx, r.now().Add(-housekeepingAge), r.batchSize())
}

// sweepOutboxHousekeeping is the outbox-row-aging half of sweep #4: once an
// OutboxPurger is wired in, PUBLISHED/FAILED rows older than the retention
// window are deleted on the same coin flip as the reservation purge.
func (r Reaper) sweepOutboxHousekeeping(ctx context.Context) (int, error) {
	if r.Outbox == nil {
		return 0, nil
	}
	return r.Outbox.PurgeTerminal(ctx, r.now().Add(-outboxRetention), r.batchSize())
}

func (r Reaper) rollHousekeeping() bool {
	if r.Random == nil {
		return rand.Float64() < housekeepingProbability
	}
	return r.Random.Float64() < housekeepingProbability
}

func (r Reaper) batchSize() int {
	if r.BatchSize <= 0 {
		return defaultBatchSize
	}
	return r.BatchSize
}

func (r Reaper) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now()
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
