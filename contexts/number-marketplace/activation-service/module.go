package activationservice

import (
	"log/slog"

	httpadapter "solomon/contexts/number-marketplace/activation-service/adapters/http"

	"solomon/contexts/number-marketplace/activation-service/adapters/events"
	"solomon/contexts/number-marketplace/activation-service/adapters/memory"
	"solomon/contexts/number-marketplace/activation-service/adapters/metrics"
	"solomon/contexts/number-marketplace/activation-service/application"
	"solomon/contexts/number-marketplace/activation-service/ports"
)

type Module struct {
	Kernel  application.Kernel
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
	Metrics *metrics.Counters
}

type Dependencies struct {
	Repository  ports.Repository
	Outbox      ports.OutboxWriter
	Metrics     ports.MetricsSink
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	kernel := application.Kernel{
		Repo:      deps.Repository,
		Outbox:    deps.Outbox,
		Metrics:   deps.Metrics,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Logger:    deps.Logger,
	}
	service := application.Service{
		Kernel: kernel,
		Repo:   deps.Repository,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
	}
	return Module{
		Kernel:  kernel,
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	counters := metrics.NewCounters()
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Metrics:     counters,
		Publisher:   events.LoggingPublisher{Logger: logger},
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	module.Metrics = counters
	return module
}
