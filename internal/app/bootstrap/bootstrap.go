// Package bootstrap is the composition root: it is the only place in the
// module allowed to know about every bounded context's concrete adapters
// at once, so the application/ports layers stay framework-agnostic.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	activationevents "solomon/contexts/number-marketplace/activation-service/adapters/events"
	activationmetrics "solomon/contexts/number-marketplace/activation-service/adapters/metrics"
	activationpostgres "solomon/contexts/number-marketplace/activation-service/adapters/postgres"

	catalogservice "solomon/contexts/number-marketplace/catalog-service"
	catalogoutboxadapter "solomon/contexts/number-marketplace/catalog-service/adapters/outbox"
	catalogpostgres "solomon/contexts/number-marketplace/catalog-service/adapters/postgres"
	catalogsearch "solomon/contexts/number-marketplace/catalog-service/adapters/search"

	orderorchestratorservice "solomon/contexts/number-marketplace/order-orchestrator-service"
	orderorchestratormemory "solomon/contexts/number-marketplace/order-orchestrator-service/adapters/memory"
	orderorchestratoroutboxadapter "solomon/contexts/number-marketplace/order-orchestrator-service/adapters/outbox"

	pollmanagerservice "solomon/contexts/number-marketplace/poll-manager-service"
	pollmanagerbreaker "solomon/contexts/number-marketplace/poll-manager-service/adapters/breaker"
	pollmanagermemory "solomon/contexts/number-marketplace/poll-manager-service/adapters/memory"
	pollmanagerredis "solomon/contexts/number-marketplace/poll-manager-service/adapters/redis"

	reaperservice "solomon/contexts/number-marketplace/reaper-service"
	reapermemory "solomon/contexts/number-marketplace/reaper-service/adapters/memory"

	walletservice "solomon/contexts/number-marketplace/wallet-service"
	walletpostgres "solomon/contexts/number-marketplace/wallet-service/adapters/postgres"

	providerfivesim "solomon/contexts/number-marketplace/provider-adapter/adapters/fivesim"
	providersmsactivate "solomon/contexts/number-marketplace/provider-adapter/adapters/smsactivate"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"

	"solomon/internal/platform/cache"
	"solomon/internal/platform/config"
	"solomon/internal/platform/db"
	"solomon/internal/platform/httpserver"
	"solomon/internal/shared/clock"
	"solomon/internal/shared/idgen"
	sharedoutbox "solomon/internal/shared/outbox"
	outboxmemory "solomon/internal/shared/outbox/memory"
)

// services bundles every number-marketplace module this composition root
// wires, plus the infrastructure handles both app kinds need to shut down
// cleanly.
type services struct {
	cfg    config.Config
	logger *slog.Logger

	wallet            walletservice.Module
	catalog           catalogservice.Module
	activation        activationservice.Module
	orderOrchestrator orderorchestratorservice.Module
	pollManager       pollmanagerservice.Module
	reaper            reaperservice.Module

	outboxDispatcher sharedoutbox.Dispatcher

	closers []func() error
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// build wires every adapter and module shared by the API and worker
// processes: postgres/redis connections, the provider registry, the
// shared outbox dispatcher, and every service module built against them.
func build(ctx context.Context, logger *slog.Logger) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}

	redisClient, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}

	searchIndex := catalogsearch.NewIndex(cfg.MeilisearchHost, cfg.MeilisearchAPIKey)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	registry := providerregistry.New(
		providersmsactivate.New(cfg.SmsActivateBaseURL, cfg.SmsActivateAPIKey, httpClient),
		providerfivesim.New(cfg.FiveSimBaseURL, cfg.FiveSimAPIKey, httpClient),
	)

	sharedStore := outboxmemory.NewStore()

	systemClock := clock.System{}

	walletRepo := walletpostgres.NewRepository(gormDB, logger)
	walletModule := walletservice.NewModule(walletservice.Dependencies{
		Repository:     walletRepo,
		Idempotency:    walletRepo,
		Clock:          systemClock,
		IDGenerator:    idgen.UUIDCtx{},
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})

	catalogRepo := catalogpostgres.NewRepository(gormDB, logger)
	catalogOutbox := catalogoutboxadapter.Writer{Appender: sharedStore, Clock: systemClock}
	catalogModule := catalogservice.NewModule(catalogservice.Dependencies{
		Repository:     catalogRepo,
		Outbox:         catalogOutbox,
		Clock:          systemClock,
		IDGenerator:    idgen.UUIDCtx{},
		ReservationTTL: 5 * time.Minute,
		Logger:         logger,
	})

	activationRepo := activationpostgres.NewRepository(gormDB, logger)
	activationCounters := activationmetrics.NewCounters()
	activationModule := activationservice.NewModule(activationservice.Dependencies{
		Repository:  activationRepo,
		Outbox:      activationRepo,
		Metrics:     activationCounters,
		Publisher:   activationevents.LoggingPublisher{Logger: logger},
		Clock:       systemClock,
		IDGenerator: idgen.UUID{},
		Logger:      logger,
	})
	activationModule.Metrics = activationCounters

	// ScheduleFirstPoll (order-orchestrator) and FetchDue/Reschedule/Remove
	// (poll-manager) share one redis ZSET so a number acquired by the saga
	// is visible to the very next poll cycle (spec.md §4.3 step 6, §4.5).
	dueIndex := pollmanagerredis.NewDueIndex(redisClient, "")

	orderOutbox := orderorchestratoroutboxadapter.Writer{
		Appender:      sharedStore,
		SourceService: cfg.ServiceName,
		IDGen:         idgen.UUID{},
		Clock:         systemClock,
	}
	orderOrchestratorModule := orderorchestratorservice.NewModule(orderorchestratorservice.Dependencies{
		Wallet:     orderorchestratormemory.WalletAdapter{Module: walletModule},
		Providers:  orderorchestratormemory.ProviderAdapter{Registry: registry},
		Activation: orderorchestratormemory.ActivationAdapter{Module: activationModule},
		Outbox:     orderOutbox,
		DueIndex:   dueIndex,
		Clock:      systemClock,
		IDGen:      idgen.UUID{},
		Logger:     logger,
	})

	pollManagerModule := pollmanagerservice.NewModule(pollmanagerservice.Dependencies{
		Lock:       pollmanagerredis.NewLock(redisClient),
		DueIndex:   dueIndex,
		Kernel:     pollmanagermemory.ActivationAdapter{Module: activationModule},
		Providers:  pollmanagermemory.ProviderAdapter{Registry: registry},
		Breaker:    pollmanagerbreaker.NewRegistry(),
		Clock:      systemClock,
		BatchLimit: cfg.PollBatchLimit,
		Logger:     logger,
	})

	reaperNumbers := reapermemory.NumberAdapter{Module: activationModule}
	reaperModule := reaperservice.NewModule(reaperservice.Dependencies{
		Reservations: reapermemory.ReservationAdapter{Module: catalogModule},
		Numbers:      reaperNumbers,
		Zombies:      reaperNumbers,
		Kernel:       reapermemory.KernelAdapter{Module: activationModule},
		Wallet:       reapermemory.WalletAdapter{Module: walletModule},
		Providers:    reapermemory.ProviderAdapter{Registry: registry},
		Outbox:       sharedStore,
		Clock:        systemClock,
		BatchSize:    cfg.ReaperBatchSize,
		Logger:       logger,
	})

	dispatcher := sharedoutbox.Dispatcher{
		Store: sharedStore,
		Handlers: map[string]sharedoutbox.Handler{
			"saga.compensate.cancel_number": orderorchestratoroutboxadapter.CancelNumberHandler{
				Providers: orderorchestratormemory.ProviderAdapter{Registry: registry},
			}.AsHandler(),
			"offer.created": catalogoutboxadapter.OfferProjectionHandler{Search: searchIndex}.AsHandler(),
			"offer.updated": catalogoutboxadapter.OfferProjectionHandler{Search: searchIndex}.AsHandler(),
		},
		BatchSize:  100,
		ClaimLease: 30 * time.Second,
		Clock:      systemClock,
		Logger:     logger,
	}

	return &services{
		cfg:               cfg,
		logger:            logger,
		wallet:            walletModule,
		catalog:           catalogModule,
		activation:        activationModule,
		orderOrchestrator: orderOrchestratorModule,
		pollManager:       pollManagerModule,
		reaper:            reaperModule,
		outboxDispatcher:  dispatcher,
		closers: []func() error{
			func() error { return redisClient.Close() },
			func() error {
				sqlDB, sqlErr := gormDB.DB()
				if sqlErr != nil {
					return sqlErr
				}
				return sqlDB.Close()
			},
		},
	}, nil
}

func (s *services) close() error {
	var firstErr error
	for _, closer := range s.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// APIApp runs the number-marketplace HTTP surface (spec.md §6).
type APIApp struct {
	svc    *services
	server *httpserver.Server
}

func BuildAPI() (*APIApp, error) {
	svc, err := build(context.Background(), newLogger())
	if err != nil {
		return nil, err
	}
	server := httpserver.New(
		svc.wallet,
		svc.catalog,
		svc.activation,
		svc.orderOrchestrator,
		svc.logger,
		":"+svc.cfg.HTTPPort,
	)
	return &APIApp{svc: svc, server: server}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if err := a.server.Shutdown(context.Background()); err != nil {
		a.svc.logger.Error("http server shutdown failed", "event", "http_shutdown_failed", "error", err.Error())
	}
	return a.svc.close()
}

// WorkerApp runs the background loops (spec.md §4.5 poll cycle, §4.6 outbox
// dispatch, §4.7 reaper sweeps) on their own tickers.
type WorkerApp struct {
	svc *services
}

func BuildWorker() (*WorkerApp, error) {
	svc, err := build(context.Background(), newLogger())
	if err != nil {
		return nil, err
	}
	return &WorkerApp{svc: svc}, nil
}

// Run blocks, driving the poll/reaper/outbox loops on independent tickers
// until ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(w.svc.cfg.PollInterval)
	defer pollTicker.Stop()
	reaperTicker := time.NewTicker(w.svc.cfg.ReaperInterval)
	defer reaperTicker.Stop()
	outboxTicker := time.NewTicker(w.svc.cfg.OutboxInterval)
	defer outboxTicker.Stop()

	logger := w.svc.logger
	logger.Info("worker loops starting",
		"event", "worker_started",
		"module", "internal/app/bootstrap",
		"layer", "worker",
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			_ = w.svc.pollManager.Job.RunOnce(ctx)
		case <-reaperTicker.C:
			_ = w.svc.reaper.Job.RunOnce(ctx)
		case <-outboxTicker.C:
			if _, err := w.svc.outboxDispatcher.RunOnce(ctx); err != nil {
				logger.Error("outbox dispatch failed", "event", "outbox_dispatch_failed", "error", err.Error())
			}
		}
	}
}

func (w *WorkerApp) Close() error {
	return w.svc.close()
}
