package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"solomon/contexts/number-marketplace/poll-manager-service/domain/schedule"
	"solomon/contexts/number-marketplace/poll-manager-service/ports"
)

const (
	pollCycleLockKey  = "poll_cycle_lock"
	pollCycleLockTTL  = 30 * time.Second
	batchChunkSize    = 20
	maxParallelChunks = 3
	batchGroupMinSize = 5
	perChunkTimeout   = 10 * time.Second
	perCallTimeout    = 5 * time.Second
	defaultCycleBatch = 200
)

// Poller drives one poll cycle of §4.5: acquire the lock, fetch due ids,
// group by provider, poll (batched or parallel), then either run the
// SMS-received sub-protocol or reschedule/remove each item.
type Poller struct {
	Lock       ports.DistributedLock
	DueIndex   ports.DueIndex
	Kernel     ports.ActivationKernel
	Providers  ports.ProviderRegistry
	Breaker    ports.CircuitBreaker
	Clock      ports.Clock
	BatchLimit int
	Logger     *slog.Logger
}

// RunCycle executes step (a) through (f) once. It returns nil both when the
// lock couldn't be acquired (another writer owns this cycle) and when the
// cycle runs cleanly; only unexpected infrastructure errors are returned.
func (p Poller) RunCycle(ctx context.Context) error {
	logger := ResolveLogger(p.Logger)
	acquired, err := p.Lock.TryAcquire(ctx, pollCycleLockKey, pollCycleLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Debug("poll cycle lock held elsewhere",
			"event", "poll_cycle_lock_contended",
			"module", "number-marketplace/poll-manager-service",
			"layer", "application",
		)
		return nil
	}
	defer p.Lock.Release(ctx, pollCycleLockKey)

	limit := p.BatchLimit
	if limit <= 0 {
		limit = defaultCycleBatch
	}
	ids, err := p.DueIndex.FetchDue(ctx, p.now(), limit)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	items, err := p.Kernel.LoadPollable(ctx, ids)
	if err != nil {
		return err
	}
	loaded := make(map[string]bool, len(items))
	for _, item := range items {
		loaded[item.ActivationID] = true
	}
	for _, id := range ids {
		if !loaded[id] {
			// no longer ACTIVE/RECEIVED (or resolved out from under us) — drop
			// from the index per §4.5 step (c).
			_ = p.DueIndex.Remove(ctx, id)
		}
	}

	byProvider := make(map[string][]ports.PollableActivation)
	for _, item := range items {
		byProvider[item.ProviderID] = append(byProvider[item.ProviderID], item)
	}

	for providerID, group := range byProvider {
		p.pollProviderGroup(ctx, providerID, group, logger)
	}
	return nil
}

func (p Poller) pollProviderGroup(ctx context.Context, providerID string, group []ports.PollableActivation, logger *slog.Logger) {
	circuitOpen := p.Breaker != nil && p.Breaker.IsOpen(providerID)
	useBatch := !circuitOpen && p.Providers.SupportsBatchStatus(providerID) && len(group) >= batchGroupMinSize

	if useBatch {
		p.pollBatched(ctx, providerID, group, logger)
		return
	}
	for _, item := range group {
		result, err := p.pollOne(ctx, providerID, item.UpstreamID, circuitOpen)
		p.handleResult(ctx, item, result, err, circuitOpen, logger)
	}
}

func (p Poller) pollBatched(ctx context.Context, providerID string, group []ports.PollableActivation, logger *slog.Logger) {
	byUpstream := make(map[string]ports.PollableActivation, len(group))
	upstreamIDs := make([]string, 0, len(group))
	for _, item := range group {
		byUpstream[item.UpstreamID] = item
		upstreamIDs = append(upstreamIDs, item.UpstreamID)
	}

	sem := semaphore.NewWeighted(maxParallelChunks)
	for start := 0; start < len(upstreamIDs); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(upstreamIDs) {
			end = len(upstreamIDs)
		}
		chunk := upstreamIDs[start:end]
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(chunk []string) {
			defer sem.Release(1)
			p.pollChunk(ctx, providerID, chunk, byUpstream, logger)
		}(chunk)
	}
	_ = sem.Acquire(ctx, maxParallelChunks)
}

func (p Poller) pollChunk(ctx context.Context, providerID string, upstreamIDs []string, byUpstream map[string]ports.PollableActivation, logger *slog.Logger) {
	chunkCtx, cancel := context.WithTimeout(ctx, perChunkTimeout)
	defer cancel()

	var results map[string]ports.ProviderStatusResult
	call := func() error {
		var err error
		results, err = p.Providers.StatusBatch(chunkCtx, providerID, upstreamIDs)
		return err
	}
	var err error
	if p.Breaker != nil {
		err = p.Breaker.Execute(providerID, call)
	} else {
		err = call()
	}
	if err != nil {
		logger.Warn("poll manager batch status call failed",
			"event", "poll_batch_status_failed",
			"module", "number-marketplace/poll-manager-service",
			"layer", "application",
			"provider_id", providerID,
			"error", err.Error(),
		)
		for _, upstreamID := range upstreamIDs {
			p.handleResult(ctx, byUpstream[upstreamID], ports.ProviderStatusResult{}, err, false, logger)
		}
		return
	}
	for _, upstreamID := range upstreamIDs {
		result := results[upstreamID]
		p.handleResult(ctx, byUpstream[upstreamID], result, nil, false, logger)
	}
}

func (p Poller) pollOne(ctx context.Context, providerID, upstreamID string, circuitOpen bool) (ports.ProviderStatusResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	var result ports.ProviderStatusResult
	call := func() error {
		var err error
		result, err = p.Providers.Status(callCtx, providerID, upstreamID)
		return err
	}
	if circuitOpen || p.Breaker == nil {
		return result, call()
	}
	err := p.Breaker.Execute(providerID, call)
	return result, err
}

// handleResult implements §4.5 step (f): route to the SMS-received
// sub-protocol on a fresh message, else reschedule per §4.5.1, else remove
// terminal/error-exhausted items.
func (p Poller) handleResult(ctx context.Context, item ports.PollableActivation, result ports.ProviderStatusResult, err error, circuitOpen bool, logger *slog.Logger) {
	if err != nil {
		if result.Terminal {
			_ = p.DueIndex.Remove(ctx, item.ActivationID)
			return
		}
		p.reschedule(ctx, item, circuitOpen)
		return
	}

	if len(result.Messages) > 0 {
		p.handleMessages(ctx, item, result.Messages, logger)
		return
	}
	if result.Terminal {
		_ = p.DueIndex.Remove(ctx, item.ActivationID)
		return
	}
	p.reschedule(ctx, item, circuitOpen)
}

// handleMessages is the SMS-received sub-protocol of §4.5.2.
func (p Poller) handleMessages(ctx context.Context, item ports.PollableActivation, messages []ports.ProviderMessage, logger *slog.Logger) {
	anyFresh := false
	for _, message := range messages {
		fresh, err := p.Kernel.IngestMessage(ctx, item.ActivationID, item.NumberID, message.Code, message.Content)
		if err != nil {
			logger.Error("poll manager sms ingestion failed",
				"event", "poll_sms_ingestion_failed",
				"module", "number-marketplace/poll-manager-service",
				"layer", "application",
				"activation_id", item.ActivationID,
				"error", err.Error(),
			)
			continue
		}
		if fresh {
			anyFresh = true
		}
	}
	if anyFresh {
		if err := p.Kernel.TransitionToReceived(ctx, item.ActivationID); err != nil {
			logger.Error("poll manager received transition failed",
				"event", "poll_received_transition_failed",
				"module", "number-marketplace/poll-manager-service",
				"layer", "application",
				"activation_id", item.ActivationID,
				"error", err.Error(),
			)
		}
		if err := p.Kernel.ExtendNumberExpiry(ctx, item.ActivationID); err != nil {
			logger.Error("poll manager expiry extension failed",
				"event", "poll_expiry_extension_failed",
				"module", "number-marketplace/poll-manager-service",
				"layer", "application",
				"activation_id", item.ActivationID,
				"error", err.Error(),
			)
		}
	}
	item.SmsCount += len(messages)
	p.reschedule(ctx, item, false)
}

func (p Poller) reschedule(ctx context.Context, item ports.PollableActivation, circuitOpen bool) {
	decision := schedule.Next(schedule.Input{
		OrderAgeSeconds:     int(p.now().Sub(item.CreatedAt).Seconds()),
		SmsCount:            item.SmsCount,
		SecondsSinceLastSms: int(p.now().Sub(item.LastSmsAt).Seconds()),
		CircuitOpen:         circuitOpen,
	})
	_ = p.DueIndex.Reschedule(ctx, item.ActivationID, decision.Delay)
}

func (p Poller) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}

// ResolveLogger returns the provided logger or falls back to slog default.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
