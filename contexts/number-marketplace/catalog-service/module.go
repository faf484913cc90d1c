package catalogservice

import (
	"log/slog"
	"time"

	httpadapter "solomon/contexts/number-marketplace/catalog-service/adapters/http"
	"solomon/contexts/number-marketplace/catalog-service/adapters/memory"
	"solomon/contexts/number-marketplace/catalog-service/application"
	"solomon/contexts/number-marketplace/catalog-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository     ports.Repository
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	ReservationTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repository,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		ReservationTTL: deps.ReservationTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		ReservationTTL: 5 * time.Minute,
		Logger:         logger,
	})
	module.Store = store
	return module
}
