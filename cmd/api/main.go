package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/firm-roster/internal/api/http"
	"github.com/spec-kit/firm-roster/internal/api/http/handlers"
	"github.com/spec-kit/firm-roster/internal/auth"
	"github.com/spec-kit/firm-roster/internal/config"
	"github.com/spec-kit/firm-roster/internal/events"
	"github.com/spec-kit/firm-roster/internal/observability"
	"github.com/spec-kit/firm-roster/internal/persistence"
	"github.com/spec-kit/firm-roster/internal/platform"
	"github.com/spec-kit/firm-roster/internal/repository"
	"github.com/spec-kit/firm-roster/internal/service"
	"github.com/spec-kit/firm-roster/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	hierarchy, err := cfg.Engine.Hierarchy()
	if err != nil {
		logger.Fatal("invalid staff role configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("postgres is required for staff records")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	session, err := platform.NewDiscordSession(cfg.Discord)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	discord := platform.NewDiscordPlatform(session, cfg.Discord, logger)

	dispatcher := events.NewInMemoryDispatcher()
	var publisher *events.NATSPublisher
	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS)
		if err != nil {
			logger.Warn("nats unavailable; events stay in process", zap.Error(err))
		} else {
			publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, logger)
			defer publisher.Close() //nolint:errcheck
		}
	}

	staffRepo := repository.NewStaffRepository(pool)
	caseRepo := repository.NewCaseRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	history, syncState := service.NewStateStores(*cfg, redis.Client)

	engine := service.NewEngine(*cfg, service.EngineDependencies{
		Hierarchy:  hierarchy,
		StaffRepo:  staffRepo,
		CaseRepo:   caseRepo,
		AuditRepo:  auditRepo,
		Platform:   discord,
		History:    history,
		SyncState:  syncState,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartNotificationWorker(engine.Notifications, dispatcher, publisher)

	gateway := platform.NewGateway(session, cfg.Discord.GuildIDs, 0, engine.Lifecycle.OnMemberUpdate, logger)
	if err := gateway.Start(); err != nil {
		logger.Fatal("failed to open discord gateway", zap.Error(err))
	}
	defer gateway.Close() //nolint:errcheck

	var scheduler *worker.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = worker.NewScheduler(worker.SchedulerConfig{
			GuildIDs: cfg.Discord.GuildIDs,
			SyncSpec: cfg.Scheduler.SyncCron,
			ScanSpec: cfg.Scheduler.ScanCron,
			Timeout:  cfg.App.BatchTimeout(),
		}, engine.Lifecycle, engine.Conflicts, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(engine.Auth.TokenManager(), staffRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pool,
			"redis":    redis,
		}),
		Conflicts:        handlers.NewConflictsHandler(engine.Conflicts, cfg.App.BatchTimeout()),
		Sync:             handlers.NewSyncHandler(engine.Lifecycle, cfg.App.BatchTimeout()),
		Audit:            handlers.NewAuditHandler(auditRepo),
		Metrics:          observability.Handler(registry),
		AuthMiddleware:   authMiddleware.Handle,
		Hierarchy:        hierarchy,
		SeniorStaffLevel: cfg.Engine.SeniorStaffLevel,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
