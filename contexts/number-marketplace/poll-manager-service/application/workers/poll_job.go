package workers

import (
	"context"
	"log/slog"

	"solomon/contexts/number-marketplace/poll-manager-service/application"
)

// PollJob runs one poll cycle per tick for the worker process's ticker loop.
type PollJob struct {
	Poller application.Poller
	Logger *slog.Logger
}

func (j PollJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	if err := j.Poller.RunCycle(ctx); err != nil {
		logger.Error("poll cycle failed",
			"event", "poll_cycle_failed",
			"module", "number-marketplace/poll-manager-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("poll cycle completed",
		"event", "poll_cycle_completed",
		"module", "number-marketplace/poll-manager-service",
		"layer", "worker",
	)
	return nil
}
