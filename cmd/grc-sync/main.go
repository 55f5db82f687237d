package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IlyaTsupryk/ggrc-core/internal/config"
	apierrors "github.com/IlyaTsupryk/ggrc-core/internal/errors"
	"github.com/IlyaTsupryk/ggrc-core/internal/handler"
	"github.com/IlyaTsupryk/ggrc-core/internal/health"
	"github.com/IlyaTsupryk/ggrc-core/internal/indexer"
	"github.com/IlyaTsupryk/ggrc-core/internal/jobs"
	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/permission"
	"github.com/IlyaTsupryk/ggrc-core/internal/server"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	syncsvc "github.com/IlyaTsupryk/ggrc-core/internal/sync"
	"github.com/IlyaTsupryk/ggrc-core/internal/taskqueue"
	"github.com/IlyaTsupryk/ggrc-core/internal/tracker"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting GRC sync service")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.String("tracker_base_url", cfg.Tracker.BaseURL))

	// Initialize metrics
	m := metrics.New()
	logger.Info("Metrics initialized")

	// Initialize PostgreSQL pool and stores
	pool, err := store.NewPool(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
	)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	peopleStore := store.NewPostgresPeopleStore(pool, logger)
	objectStore := store.NewPostgresObjectStore(pool, logger)
	ticketStore := store.NewPostgresTicketStore(pool, logger)
	auditLogStore := store.NewPostgresAuditLogStore(pool, logger)
	indexStore := store.NewPostgresIndexStore(pool, logger)
	jobStore := store.NewPostgresJobStore(pool, logger)
	logger.Info("PostgreSQL stores initialized")

	// Initialize idempotency store (Redis)
	idemStore, err := store.NewRedisIdempotencyStore(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer idemStore.Close()
	logger.Info("Idempotency store initialized")

	// Ticket tracker client
	trackerClient := tracker.NewHTTPClient(
		cfg.Tracker.BaseURL,
		cfg.Tracker.Token,
		cfg.Tracker.Timeout,
		logger,
	)

	// Integration handlers and permission oracle
	registry := syncsvc.NewHandlerRegistry()
	registry.Register("Assessment", syncsvc.NewAssessmentHandler(objectStore, peopleStore, cfg.Tracker.AppBaseURL))
	registry.Register("Issue", syncsvc.NewIssueHandler(cfg.Tracker.AppBaseURL))
	registry.RegisterTracked("Audit")
	oracle := permission.NewACLOracle(peopleStore, cfg.Superusers)

	deps := syncsvc.Deps{
		Objects:       objectStore,
		Tickets:       ticketStore,
		AuditLog:      auditLogStore,
		People:        peopleStore,
		Oracle:        oracle,
		Registry:      registry,
		Client:        trackerClient,
		MaxAttempts:   cfg.Tracker.MaxAttempts,
		RetryInterval: cfg.Tracker.RetryInterval,
		IssueURLTmpl:  cfg.Tracker.IssueURLTmpl,
		Metrics:       m,
		Logger:        logger,
	}
	creator := syncsvc.NewBulkCreator(deps)
	updater := syncsvc.NewBulkUpdater(deps)
	childCreator := syncsvc.NewBulkChildCreator(deps)
	logger.Info("Bulk synchronizers initialized")

	// Full-text indexer
	idx := indexer.New(
		indexer.DefaultRegistry(),
		peopleStore,
		objectStore,
		indexStore,
		cfg.Indexing.ChunkSize,
		m,
		logger,
	)

	// Background job sweeper
	queueLister := taskqueue.NewHTTPLister(cfg.TaskQueue.BaseURL, cfg.TaskQueue.Timeout, logger)
	sweeper := jobs.NewSweeper(
		jobStore,
		queueLister,
		jobs.NewLogNotifier(logger),
		cfg.TaskQueue.Queue,
		cfg.TaskQueue.SweepInterval,
		m,
		logger,
	)

	// HTTP server
	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(
		creator, updater, childCreator,
		idx, peopleStore, errorHandler, logger,
		cfg.Server.WriteTimeout,
	)
	healthCheck := health.NewHealthCheck(pool, idemStore, logger)
	srv := server.NewServer(cfg, handlers, healthCheck, idemStore, errorHandler, logger)
	srv.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start()
	})

	group.Go(func() error {
		err := sweeper.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Metrics.Enabled {
		group.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("Service exited with error", zap.Error(err))
	}
	logger.Info("GRC sync service stopped")
}
