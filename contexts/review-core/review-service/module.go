package reviewservice

import (
	"log/slog"
	"time"

	ledgermemory "agegate/contexts/finance-core/ledger-service/adapters/memory"
	httpadapter "agegate/contexts/review-core/review-service/adapters/http"
	"agegate/contexts/review-core/review-service/adapters/memory"
	"agegate/contexts/review-core/review-service/application"
	"agegate/contexts/review-core/review-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository            ports.Repository
	Directory             ports.ActorDirectory
	Notifier              ports.Notifier
	Clock                 ports.Clock
	IDGenerator           ports.IDGenerator
	RequestFee            int64
	DefaultSessionSeconds float64
	InactivityThreshold   time.Duration
	Logger                *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:                  deps.Repository,
		Directory:             deps.Directory,
		Notifier:              deps.Notifier,
		Clock:                 deps.Clock,
		IDGenerator:           deps.IDGenerator,
		RequestFee:            deps.RequestFee,
		DefaultSessionSeconds: deps.DefaultSessionSeconds,
		InactivityThreshold:   deps.InactivityThreshold,
		Logger:                deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the coordinator over the in-memory store, with the
// store also serving as clock, id generator, actor directory, and
// notification sink. The ledger store is owned by the review store so fee
// movements stay atomic with request writes.
func NewInMemoryModule(ledger *ledgermemory.Store, logger *slog.Logger) Module {
	if ledger == nil {
		ledger = ledgermemory.NewStore()
	}
	store := memory.NewStore(ledger)
	module := NewModule(Dependencies{
		Repository:  store,
		Directory:   store,
		Notifier:    store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
