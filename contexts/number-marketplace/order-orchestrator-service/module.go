package orderorchestratorservice

import (
	"log/slog"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	httpadapter "solomon/contexts/number-marketplace/order-orchestrator-service/adapters/http"
	"solomon/contexts/number-marketplace/order-orchestrator-service/adapters/memory"
	"solomon/contexts/number-marketplace/order-orchestrator-service/application"
	"solomon/contexts/number-marketplace/order-orchestrator-service/ports"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
	walletservice "solomon/contexts/number-marketplace/wallet-service"
)

// Module wires the purchase saga and order queries against whichever
// collaborator adapters Dependencies supplies.
type Module struct {
	Saga    application.Saga
	Queries application.Queries
	Handler httpadapter.Handler
}

type Dependencies struct {
	Wallet     ports.WalletGateway
	Providers  ports.ProviderRegistry
	Activation ports.ActivationKernel
	Outbox     ports.OutboxWriter
	DueIndex   ports.DueIndex
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	saga := application.Saga{
		Wallet:    deps.Wallet,
		Providers: deps.Providers,
		Kernel:    deps.Activation,
		Outbox:    deps.Outbox,
		DueIndex:  deps.DueIndex,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	queries := application.Queries{
		Kernel:    deps.Activation,
		Providers: deps.Providers,
	}
	return Module{
		Saga:    saga,
		Queries: queries,
		Handler: httpadapter.Handler{
			Saga:    saga,
			Queries: queries,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule composes the orchestrator against in-process sibling
// modules, the way a single test binary or a local dev run exercises the
// full purchase saga without a database or message broker.
func NewInMemoryModule(logger *slog.Logger, registry *providerregistry.Registry) Module {
	walletModule := walletservice.NewInMemoryModule(logger)
	activationModule := activationservice.NewInMemoryModule(logger)

	return NewModule(Dependencies{
		Wallet:     memory.WalletAdapter{Module: walletModule},
		Providers:  memory.ProviderAdapter{Registry: registry},
		Activation: memory.ActivationAdapter{Module: activationModule},
		Outbox:     &memory.InProcessOutbox{},
		DueIndex:   memory.NewInProcessDueIndex(),
		Clock:      activationModule.Store,
		IDGen:      activationModule.Store,
		Logger:     logger,
	})
}
