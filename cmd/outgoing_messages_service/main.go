package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/edigateway/golang_services/internal/outgoing_messages/adapters/http"
	natsadapter "github.com/edigateway/golang_services/internal/outgoing_messages/adapters/nats"
	"github.com/edigateway/golang_services/internal/outgoing_messages/app"
	"github.com/edigateway/golang_services/internal/outgoing_messages/documents"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
	"github.com/edigateway/golang_services/internal/outgoing_messages/repository/postgres"
	"github.com/edigateway/golang_services/internal/outgoing_messages/repository/sqlite"
	"github.com/edigateway/golang_services/internal/platform/config"
	"github.com/edigateway/golang_services/internal/platform/database"
	"github.com/edigateway/golang_services/internal/platform/filestorage"
	"github.com/edigateway/golang_services/internal/platform/logger"
	"github.com/edigateway/golang_services/internal/platform/messagebroker"
	"github.com/edigateway/golang_services/internal/platform/telemetry"
)

const serviceName = "outgoing_messages_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel, cfg.ServiceName)
	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Outgoing messages service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Outgoing messages service shut down successfully.")
}

func run(cfg *config.Config, appLogger *slog.Logger) error {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	shutdownTracing, err := telemetry.Setup(mainCtx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			appLogger.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	store, files, closeStorage, err := openStorage(mainCtx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStorage()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		return err
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS", "url", cfg.NATSUrl)

	factory, err := documents.NewDefaultDocumentFactory()
	if err != nil {
		return fmt.Errorf("register document writers: %w", err)
	}

	clock := domain.SystemClock{}
	sizes := app.NewBundleSizes(cfg.MaxBundleSize, cfg.MaxBundleSizes())
	enqueueService := app.NewEnqueueService(store, files, sizes, clock, appLogger)
	materializer := app.NewMaterializer(store, files, factory, natsClient, cfg.NATSDocumentSubject, clock, appLogger)
	peekService := app.NewPeekService(store, materializer, clock, appLogger)
	dequeueService := app.NewDequeueService(store, clock, appLogger)

	handler := httpadapter.NewMessageHandler(enqueueService, peekService, dequeueService, appLogger)
	router := httpadapter.NewRouter(handler, map[string]httpadapter.HealthCheck{
		"nats": func() error {
			if !natsClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		},
	}, appLogger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	listener := natsadapter.NewListener(enqueueService, appLogger)
	g.Go(func() error {
		return listener.Run(groupCtx, natsClient, cfg.NATSEnqueueSubject, cfg.NATSQueueGroup)
	})

	if cfg.RetentionEnabled {
		sweeper, err := app.NewRetentionSweeper(store, files, app.RetentionConfig{
			Cron:      cfg.RetentionCron,
			Period:    cfg.RetentionPeriod,
			BatchSize: cfg.RetentionBatchSize,
		}, clock, appLogger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(groupCtx) })
	}

	// --- Graceful Shutdown Handling ---
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stopSignal)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	appLogger.Info("Outgoing messages service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStorage opens the configured metadata store and file storage, running migrations first.
func openStorage(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (domain.Store, domain.FileStorage, func(), error) {
	var (
		store   domain.Store
		files   domain.FileStorage
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StorageDriver {
	case "postgres":
		dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN, database.PoolOptions{})
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, dbPool.Close)
		if err := postgres.Migrate(ctx, dbPool); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		appLogger.Info("Connected to PostgreSQL database")
		store = postgres.NewStore(dbPool, appLogger)
		if cfg.FileStorageDriver == "postgres" {
			files = filestorage.NewPostgresStorage(dbPool)
		}
	case "sqlite":
		sqliteStore, err := sqlite.Open(ctx, cfg.SQLitePath, appLogger)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = sqliteStore.Close() })
		appLogger.Info("Opened SQLite database", "path", cfg.SQLitePath)
		store = sqliteStore
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.FileStorageDriver == "pebble" {
		pebbleStorage, err := filestorage.OpenPebble(cfg.PebblePath)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = pebbleStorage.Close() })
		appLogger.Info("Opened Pebble file storage", "path", cfg.PebblePath)
		files = pebbleStorage
	}
	if files == nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("file storage driver %q is not available with storage driver %q", cfg.FileStorageDriver, cfg.StorageDriver)
	}
	if cfg.FileStorageCompression {
		files = filestorage.NewCompressingStorage(files)
	}
	return store, files, closeAll, nil
}
