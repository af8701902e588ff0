package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/thea-app/thea/internal/app"
	"github.com/thea-app/thea/internal/auth"
	"github.com/thea-app/thea/internal/invoices"
	"github.com/thea-app/thea/internal/masterdata"
	"github.com/thea-app/thea/internal/observability"
	"github.com/thea-app/thea/internal/platform/cache"
	"github.com/thea-app/thea/internal/platform/db"
	"github.com/thea-app/thea/internal/platform/objstore"
	"github.com/thea-app/thea/internal/platform/queue"
	"github.com/thea-app/thea/internal/shared"
	"github.com/thea-app/thea/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := objstore.New(ctx, objstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	if err != nil {
		logger.Error("connect object store", slog.Any("error", err))
		os.Exit(1)
	}
	if err := store.EnsureBuckets(ctx, cfg.MinioBucket); err != nil {
		logger.Error("ensure bucket", slog.Any("error", err))
		os.Exit(1)
	}

	broker, err := queue.New(ctx, cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("connect message broker", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("broker close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(broker, logger)

	sessions := auth.NewSessionStore(redisClient, cfg.SessionTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessions, cfg.IsProduction())

	statusStore := invoices.NewStatusStore(redisClient)
	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, store, broker, statusStore, auditLogger, metrics, logger, invoices.ServiceConfig{
		Bucket: cfg.MinioBucket,
	})
	invoiceHandler := invoices.NewHandler(logger, invoiceService, invoices.HandlerConfig{
		TempDir:      cfg.UploadTempDir,
		MaxFileSize:  cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedFileTypes,
	})

	masterDataHandler := masterdata.NewHandler(logger, masterdata.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	health := app.NewHealth(
		app.HealthCheck{Name: "postgres", Probe: func(ctx context.Context) error { return pool.Ping(ctx) }},
		app.HealthCheck{Name: "redis", Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		app.HealthCheck{Name: "object-store", Probe: store.Ping},
		app.HealthCheck{Name: "queue", Probe: broker.Ping},
	)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthHandler:       authHandler,
		AuthMiddleware:    auth.Middleware(sessions),
		InvoiceHandler:    invoiceHandler,
		MasterDataHandler: masterDataHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
		Health:            health,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
