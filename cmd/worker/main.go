package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockline/backoffice/internal/app"
	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/observability"
	"github.com/stockline/backoffice/internal/platform/cache"
	"github.com/stockline/backoffice/internal/platform/db"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/shared"
	"github.com/stockline/backoffice/internal/stock"
	"github.com/stockline/backoffice/internal/uploads"
	"github.com/stockline/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	stockService := stock.NewService(stock.NewRepository(pool))

	layout := reconcile.DefaultLayout()
	layout.Sheet = cfg.ReconcileSheet
	engine, err := reconcile.NewEngine(catalogService, catalogService, stockService, auditLogger, logger, reconcile.Config{
		Layout:              layout,
		Workers:             cfg.ReconcileWorkers,
		AutoCreateProducts:  cfg.ReconcileAutoCreate,
		AllowUnassignedShop: cfg.ReconcileAllowUnassignedShop,
	})
	if err != nil {
		logger.Error("init reconcile engine", slog.Any("error", err))
		os.Exit(1)
	}

	storage, err := uploads.NewStorage(cfg.UploadDir)
	if err != nil {
		logger.Error("init upload storage", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer queue.Close()

	uploadService := uploads.NewService(uploads.Deps{
		Repo:   uploads.NewRepository(pool),
		Files:  storage,
		Shops:  catalogService,
		Engine: engine,
		Queue:  queue,
		Audit:  auditLogger,
		Logger: logger,
	}, uploads.ServiceConfig{RequeueAfter: cfg.UploadRequeueAfter})

	reconcileJob := jobs.NewStockReconcileJob(uploadService, cache.NewLocker(redisClient), cfg.ReconcileLockTTL, logger, metrics.Jobs())
	requeueJob := jobs.NewUploadsRequeueJob(uploadService, logger, metrics.Jobs())

	requeueTask, err := jobs.NewUploadsRequeueTask()
	if err != nil {
		logger.Error("build requeue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskUploadsRequeue, Handler: requeueJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: requeueTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	opsServer := &http.Server{
		Addr: cfg.OpsAddr,
		Handler: app.NewRouter(app.RouterParams{
			Logger:     logger,
			Config:     cfg,
			Metrics:    metrics,
			JobHandler: jobs.NewHandler(inspector, logger),
			Checks: map[string]app.Pinger{
				"postgres": pool,
				"redis": app.PingFunc(func(ctx context.Context) error {
					return redisClient.Ping(ctx).Err()
				}),
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops listener started", slog.String("addr", cfg.OpsAddr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops listener", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
