package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	ledgerservice "agegate/contexts/finance-core/ledger-service"
	ledgerpostgres "agegate/contexts/finance-core/ledger-service/adapters/postgres"
	accountsservice "agegate/contexts/identity-access/accounts-service"
	accountspostgres "agegate/contexts/identity-access/accounts-service/adapters/postgres"
	reviewservice "agegate/contexts/review-core/review-service"
	accountsadapter "agegate/contexts/review-core/review-service/adapters/accounts"
	reviewpostgres "agegate/contexts/review-core/review-service/adapters/postgres"
	reviewworkers "agegate/contexts/review-core/review-service/application/workers"
	"agegate/internal/platform/config"
	"agegate/internal/platform/db"
	"agegate/internal/platform/httpserver"
	"agegate/internal/platform/messaging"
	"agegate/internal/shared/events"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	bus      *messaging.Bus
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	sweeper       reviewworkers.InactivitySweeper
	bus           *messaging.Bus
	sweepInterval time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	ledger, accounts, review := buildModules(pg, bus, cfg, logger)

	server := httpserver.New(ledger, accounts, review, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		bus:      bus,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	_, _, review := buildModules(pg, bus, cfg, logger)
	reviewRepo := reviewpostgres.NewRepository(pg.DB, cfg.LockWait, logger)

	return &WorkerApp{
		postgres: pg,
		sweeper: reviewworkers.InactivitySweeper{
			Service:   review.Service,
			Repo:      reviewRepo,
			Clock:     reviewpostgres.SystemClock{},
			Threshold: cfg.InactivityThreshold,
			Logger:    logger,
		},
		bus:           bus,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
	}, nil
}

func buildModules(pg *db.Postgres, bus *messaging.Bus, cfg config.Config, logger *slog.Logger) (ledgerservice.Module, accountsservice.Module, reviewservice.Module) {
	ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)
	ledger := ledgerservice.NewModule(ledgerservice.Dependencies{
		Repository: ledgerRepo,
		Clock:      ledgerpostgres.SystemClock{},
		Logger:     logger,
	})

	accountsRepo := accountspostgres.NewRepository(pg.DB, logger)
	accounts := accountsservice.NewModule(accountsservice.Dependencies{
		Repository: accountsRepo,
		Clock:      accountspostgres.SystemClock{},
		Logger:     logger,
	})

	reviewRepo := reviewpostgres.NewRepository(pg.DB, cfg.LockWait, logger)
	review := reviewservice.NewModule(reviewservice.Dependencies{
		Repository:            reviewRepo,
		Directory:             accountsadapter.Directory{Accounts: accounts.Service},
		Notifier:              messaging.BusNotifier{Bus: bus, SourceService: cfg.ServiceName},
		Clock:                 reviewpostgres.SystemClock{},
		IDGenerator:           reviewpostgres.UUIDGenerator{},
		RequestFee:            cfg.RequestFee,
		DefaultSessionSeconds: cfg.DefaultSessionSeconds,
		InactivityThreshold:   cfg.InactivityThreshold,
		Logger:                logger,
	})
	return ledger, accounts, review
}

func (a *APIApp) Run(ctx context.Context) error {
	// The bus is in-process, so API-emitted notifications need their
	// delivery sink in this process too.
	if err := subscribeNotificationSink(ctx, a.bus, a.logger); err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := subscribeNotificationSink(ctx, w.bus, w.logger); err != nil {
		return err
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", w.sweepInterval.String(),
	)

	for {
		if err := w.sweeper.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// subscribeNotificationSink attaches the notification delivery consumer to
// the process-local bus. External channels hook in here.
func subscribeNotificationSink(ctx context.Context, bus *messaging.Bus, logger *slog.Logger) error {
	return bus.Subscribe(ctx, messaging.NotificationsTopic, "review-notifications-cg", func(_ context.Context, event events.Envelope) error {
		logger.Info("notification delivered",
			"event", "notification_delivered",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"event_type", event.EventType,
			"account_id", event.EntityID,
		)
		return nil
	})
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
