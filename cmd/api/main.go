package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/mq"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
	"github.com/spec-kit/helpdesk-service/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

type repositories struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	messages   repository.TicketMessageRepository
	workflows  repository.WorkflowRepository
	staff      repository.StaffRepository
	rules      repository.RuleRepository
	roundRobin repository.RoundRobinRepository
	policies   repository.SLAPolicyRepository
	metrics    repository.SLAMetricRepository
	breaches   repository.SLABreachRepository
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		tickets:    repository.NewTicketRepository(pool),
		history:    repository.NewTicketHistoryRepository(pool),
		messages:   repository.NewTicketMessageRepository(pool),
		workflows:  repository.NewWorkflowRepository(pool),
		staff:      repository.NewStaffRepository(pool),
		rules:      repository.NewRuleRepository(pool),
		roundRobin: repository.NewRoundRobinRepository(pool),
		policies:   repository.NewSLAPolicyRepository(pool),
		metrics:    repository.NewSLAMetricRepository(pool),
		breaches:   repository.NewSLABreachRepository(pool),
	}
}

func memoryRepositories() repositories {
	history := memory.NewHistoryRepository()
	return repositories{
		tickets:    memory.NewTicketRepository(history),
		history:    history,
		messages:   memory.NewMessageRepository(),
		workflows:  memory.NewWorkflowRepository(),
		staff:      memory.NewStaffRepository(),
		rules:      memory.NewRuleRepository(),
		roundRobin: memory.NewRoundRobinRepository(),
		policies:   memory.NewSLAPolicyRepository(),
		metrics:    memory.NewSLAMetricRepository(),
		breaches:   memory.NewSLABreachRepository(),
	}
}

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

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresRepositories(pool)
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		repos = memoryRepositories()
		pg = nil
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	var locker persistence.Locker
	if client := rdb.ClientHandle(); client != nil {
		repos.roundRobin = repository.NewRedisRoundRobinRepository(client, "helpdesk:rr")
		locker = persistence.NewRedisLocker(client)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewRabbitPublisher(cfg.MQ.URL, cfg.MQ.Exchange, logger)
		if err != nil {
			logger.Error("rabbitmq unavailable; events stay in-process", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			events.SubscribeAll(dispatcher, mq.Forward(publisher, 5*time.Second))
		}
	}

	adminRole := domain.StaffRole(cfg.Auth.AdminRole)
	locks := service.NewKeyedMutex()

	automationService := service.NewAutomationService(service.AutomationDependencies{
		TicketRepo:     repos.tickets,
		RuleRepo:       repos.rules,
		StaffRepo:      repos.staff,
		RoundRobinRepo: repos.roundRobin,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		Locks:          locks,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		PolicyRepo:              repos.policies,
		MetricRepo:              repos.metrics,
		BreachRepo:              repos.breaches,
		TicketRepo:              repos.tickets,
		Dispatcher:              dispatcher,
		Metrics:                 metrics,
		Logger:                  logger,
		Locks:                   locks,
		DefaultWarningThreshold: cfg.SLA.WarningDefaults,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.tickets,
		MessageRepo:  repos.messages,
		HistoryRepo:  repos.history,
		WorkflowRepo: repos.workflows,
		Machine:      workflow.NewMachine(adminRole),
		Automation:   automationService,
		SLA:          slaService,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Locks:        locks,
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		WorkflowRepo: repos.workflows,
		RuleRepo:     repos.rules,
		StaffRepo:    repos.staff,
		AdminRole:    adminRole,
		Logger:       logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(repos.staff, tokens)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, metrics)
	notificationService.RegisterHandlers()
	notificationWorker := worker.NewNotificationWorker(notificationService.Queue(), cfg.Notification, logger, metrics)
	notificationWorker.Start(ctx)

	if admin, err := adminService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail); err != nil {
		logger.Error("failed to bootstrap admin", zap.Error(err))
	} else if admin != nil {
		token, expiresAt, err := authService.IssueStaffToken(ctx, admin.ID)
		if err != nil {
			logger.Error("failed to issue bootstrap token", zap.Error(err))
		} else {
			announceBootstrapToken(os.Stderr, logger, admin.ID, token, expiresAt)
		}
	}

	var sweeper *worker.SLASweeper
	if !cfg.SLA.DisableSweeper {
		sweeper = worker.NewSLASweeper(worker.SweeperDependencies{
			MetricRepo: repos.metrics,
			Processor:  slaService,
			Escalator:  automationService,
			Locker:     locker,
			Config:     cfg.SLA,
			Metrics:    metrics,
			Logger:     logger,
		})
		if err := sweeper.Start(); err != nil {
			logger.Fatal("failed to start sla sweeper", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Metrics:        handlers.Metrics(prometheus.DefaultGatherer),
		Tickets:        handlers.NewTicketsHandler(ticketService, slaService),
		SLA:            handlers.NewSLAHandler(slaService),
		Admin:          handlers.NewAdminHandler(adminService, authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.staff),
		AdminRole:      adminRole,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	cancel()
	notificationWorker.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// announceBootstrapToken prints the bootstrap admin token once to w. The log
// entry only records that a token was issued.
func announceBootstrapToken(w io.Writer, logger *zap.Logger, staffID, token string, expiresAt time.Time) {
	fmt.Fprintf(w, "bootstrap admin token (expires %s): %s\n", expiresAt.UTC().Format(time.RFC3339), token)
	logger.Info("bootstrap admin token issued",
		zap.String("staff_id", staffID),
		zap.Time("expires_at", expiresAt))
}
