package reaperservice

import (
	"log/slog"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	catalogservice "solomon/contexts/number-marketplace/catalog-service"
	providerregistry "solomon/contexts/number-marketplace/provider-adapter/registry"
	"solomon/contexts/number-marketplace/reaper-service/adapters/memory"
	"solomon/contexts/number-marketplace/reaper-service/application"
	"solomon/contexts/number-marketplace/reaper-service/application/workers"
	"solomon/contexts/number-marketplace/reaper-service/ports"
	walletservice "solomon/contexts/number-marketplace/wallet-service"
)

type Module struct {
	Reaper application.Reaper
	Job    workers.ReaperJob
}

type Dependencies struct {
	Reservations ports.ReservationStore
	Numbers      ports.NumberStore
	Zombies      ports.ZombieStore
	Kernel       ports.ActivationKernel
	Wallet       ports.WalletGateway
	Providers    ports.ProviderGateway
	Outbox       ports.OutboxPurger
	Clock        ports.Clock
	BatchSize    int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	reaper := application.Reaper{
		Reservations: deps.Reservations,
		Numbers:      deps.Numbers,
		Zombies:      deps.Zombies,
		Kernel:       deps.Kernel,
		Wallet:       deps.Wallet,
		Providers:    deps.Providers,
		Outbox:       deps.Outbox,
		Clock:        deps.Clock,
		BatchSize:    deps.BatchSize,
		Logger:       deps.Logger,
	}
	return Module{
		Reaper: reaper,
		Job:    workers.ReaperJob{Reaper: reaper, Logger: deps.Logger},
	}
}

// NewInMemoryModule composes the reaper against the in-process catalog,
// activation, and wallet modules for local dev runs and tests.
func NewInMemoryModule(
	logger *slog.Logger,
	catalogModule catalogservice.Module,
	activationModule activationservice.Module,
	walletModule walletservice.Module,
	registry *providerregistry.Registry,
) Module {
	numberAdapter := memory.NumberAdapter{Module: activationModule}
	return NewModule(Dependencies{
		Reservations: memory.ReservationAdapter{Module: catalogModule},
		Numbers:      numberAdapter,
		Zombies:      numberAdapter,
		Kernel:       memory.KernelAdapter{Module: activationModule},
		Wallet:       memory.WalletAdapter{Module: walletModule},
		Providers:    memory.ProviderAdapter{Registry: registry},
		Clock:        activationModule.Store,
		BatchSize:    100,
		Logger:       logger,
	})
}
