package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stockline/backoffice/cmd/backoffice/cli"
	"github.com/stockline/backoffice/internal/app"
	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/platform/cache"
	"github.com/stockline/backoffice/internal/platform/db"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/shared"
	"github.com/stockline/backoffice/internal/stock"
	"github.com/stockline/backoffice/internal/uploads"
	"github.com/stockline/backoffice/jobs"
)

const usage = `usage: backoffice <command> [flags]

commands:
  register --file <path> [--shop <uuid>]   store an export and queue it
  process  --upload <uuid>                 reconcile an upload now
  list     [--shop <uuid>] [--limit n]     show recent uploads
  queue                                    show queue statistics
  requeue                                  queue stale pending uploads now
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping backoffice cli")
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register", "process", "list", "queue", "requeue":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return 2
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "print JSON")
	file := fs.String("file", "", "workbook path")
	shop := fs.String("shop", "", "shop id")
	upload := fs.String("upload", "", "upload id")
	limit := fs.Int("limit", 20, "rows to list")
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	out := cli.Output{JSONOutput: *jsonOut, Stdout: stdout, Stderr: stderr}

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	switch cmd {
	case "queue", "requeue":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
			return 1
		}
		defer jobsCLI.Close()
		if cmd == "queue" {
			return jobsCLI.QueueCommand(ctx, out)
		}
		return jobsCLI.RequeueCommand(ctx, out)
	}

	// command output owns stdout
	logger := app.NewLoggerTo(cfg, stderr)
	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	defer deps.close()

	uploadsCLI, err := cli.NewUploadsCLI(deps.uploads, deps.runner)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	uploadsCLI.UseShops(deps.catalog)
	switch cmd {
	case "register":
		return uploadsCLI.RegisterCommand(ctx, cli.RegisterOptions{File: *file, Shop: *shop, Output: out})
	case "process":
		return uploadsCLI.ProcessCommand(ctx, cli.ProcessOptions{Upload: *upload, Output: out})
	default:
		return uploadsCLI.ListCommand(ctx, cli.ListOptions{Shop: *shop, Limit: *limit, Output: out})
	}
}

type deps struct {
	catalog *catalog.Service
	pool    *pgxpool.Pool
	redis   *redis.Client
	queue   *jobs.Client
	uploads *uploads.Service
	runner  *jobs.StockReconcileJob
}

func (d *deps) close() {
	if d.queue != nil {
		_ = d.queue.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func connect(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	var err error
	if d.pool, err = db.New(ctx, cfg.PGDSN); err != nil {
		return nil, err
	}
	if d.redis, err = cache.New(ctx, cfg.RedisAddr); err != nil {
		d.close()
		return nil, err
	}
	if d.queue, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}); err != nil {
		d.close()
		return nil, err
	}

	auditLogger := shared.NewAuditLogger(d.pool)
	catalogService := catalog.NewService(catalog.NewRepository(d.pool))
	d.catalog = catalogService
	layout := reconcile.DefaultLayout()
	layout.Sheet = cfg.ReconcileSheet
	engine, err := reconcile.NewEngine(catalogService, catalogService, stock.NewService(stock.NewRepository(d.pool)), auditLogger, logger, reconcile.Config{
		Layout:              layout,
		Workers:             cfg.ReconcileWorkers,
		AutoCreateProducts:  cfg.ReconcileAutoCreate,
		AllowUnassignedShop: cfg.ReconcileAllowUnassignedShop,
	})
	if err != nil {
		d.close()
		return nil, err
	}
	storage, err := uploads.NewStorage(cfg.UploadDir)
	if err != nil {
		d.close()
		return nil, err
	}
	d.uploads = uploads.NewService(uploads.Deps{
		Repo:   uploads.NewRepository(d.pool),
		Files:  storage,
		Shops:  catalogService,
		Engine: engine,
		Queue:  d.queue,
		Audit:  auditLogger,
		Logger: logger,
	}, uploads.ServiceConfig{RequeueAfter: cfg.UploadRequeueAfter})
	d.runner = jobs.NewStockReconcileJob(d.uploads, cache.NewLocker(d.redis), cfg.ReconcileLockTTL, logger, nil)
	return d, nil
}
