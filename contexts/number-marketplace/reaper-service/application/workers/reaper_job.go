package workers

import (
	"context"
	"log/slog"

	"solomon/contexts/number-marketplace/reaper-service/application"
)

// ReaperJob runs one reaper cycle per tick for the worker process's ticker
// loop (~30s interval per spec.md §4.7).
type ReaperJob struct {
	Reaper application.Reaper
	Logger *slog.Logger
}

func (j ReaperJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Reaper.RunCycle(ctx)
	if err != nil {
		logger.Error("reaper cycle failed",
			"event", "reaper_cycle_failed",
			"module", "number-marketplace/reaper-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("reaper cycle completed",
		"event", "reaper_cycle_completed",
		"module", "number-marketplace/reaper-service",
		"layer", "worker",
		"reservations_expired", result.ReservationsExpired,
		"numbers_completed", result.NumbersCompleted,
		"numbers_expired", result.NumbersExpired,
		"zombies_rolled_back", result.ZombiesRolledBack,
	)
	return nil
}
