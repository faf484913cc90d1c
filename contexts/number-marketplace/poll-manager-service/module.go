package pollmanagerservice

import (
	"log/slog"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	"solomon/contexts/number-marketplace/poll-manager-service/adapters/breaker"
	"solomon/contexts/number-marketplace/poll-manager-service/adapters/memory"
	"solomon/contexts/number-marketplace/poll-manager-service/application"
	"solomon/contexts/number-marketplace/poll-manager-service/application/workers"
	"solomon/contexts/number-marketplace/poll-manager-service/ports"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
)

type Module struct {
	Poller application.Poller
	Job    workers.PollJob
}

type Dependencies struct {
	Lock       ports.DistributedLock
	DueIndex   ports.DueIndex
	Kernel     ports.ActivationKernel
	Providers  ports.ProviderRegistry
	Breaker    ports.CircuitBreaker
	Clock      ports.Clock
	BatchLimit int
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	poller := application.Poller{
		Lock:       deps.Lock,
		DueIndex:   deps.DueIndex,
		Kernel:     deps.Kernel,
		Providers:  deps.Providers,
		Breaker:    deps.Breaker,
		Clock:      deps.Clock,
		BatchLimit: deps.BatchLimit,
		Logger:     deps.Logger,
	}
	return Module{
		Poller: poller,
		Job:    workers.PollJob{Poller: poller, Logger: deps.Logger},
	}
}

// NewInMemoryModule composes the poller against in-process sibling modules
// and an in-memory due-index/lock, for local dev runs and tests without
// redis.
func NewInMemoryModule(logger *slog.Logger, activationModule activationservice.Module, registry *providerregistry.Registry) Module {
	return NewModule(Dependencies{
		Lock:       memory.NewLock(),
		DueIndex:   memory.NewDueIndex(),
		Kernel:     memory.ActivationAdapter{Module: activationModule},
		Providers:  memory.ProviderAdapter{Registry: registry},
		Breaker:    breaker.NewRegistry(),
		Clock:      activationModule.Store,
		BatchLimit: 200,
		Logger:     logger,
	})
}
