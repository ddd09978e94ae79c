package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-ledger/internal/api/http"
	"github.com/spec-kit/ticket-ledger/internal/api/http/handlers"
	"github.com/spec-kit/ticket-ledger/internal/auth"
	"github.com/spec-kit/ticket-ledger/internal/config"
	"github.com/spec-kit/ticket-ledger/internal/events"
	"github.com/spec-kit/ticket-ledger/internal/observability"
	"github.com/spec-kit/ticket-ledger/internal/persistence"
	"github.com/spec-kit/ticket-ledger/internal/repository"
	"github.com/spec-kit/ticket-ledger/internal/service"
	"github.com/spec-kit/ticket-ledger/internal/timeline"
	"github.com/spec-kit/ticket-ledger/internal/worker"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	pool := pg.PoolHandle()

	ticketRepo := repository.NewTicketRepository(pool)
	transitionRepo := repository.NewTransitionRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	ledger := service.NewLedgerService(cfg.Ledger, logger, metrics)
	timelineOpts := timeline.Options{
		SkewCompensationSeconds: cfg.Ledger.SkewCompensationSeconds,
		SkewWindowSeconds:       cfg.Ledger.SkewWindowSeconds,
		UnassignedLabel:         cfg.Ledger.UnassignedLabel,
	}
	timelineService := service.NewTimelineService(ticketRepo, transitionRepo, redis, timelineOpts, cfg.Ledger.TimelineCacheTTL(), logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Tx:             pg,
		TicketRepo:     ticketRepo,
		TransitionRepo: transitionRepo,
		CategoryRepo:   categoryRepo,
		Ledger:         ledger,
		Timelines:      timelineService,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})

	authService := service.NewAuthService(cfg.Auth, agentRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), agentRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Timeline:       handlers.NewTimelineHandler(timelineService),
		Categories:     handlers.NewCategoriesHandler(categoryRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
