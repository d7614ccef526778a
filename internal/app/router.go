package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/backoffice/internal/observability"
	"github.com/stockline/backoffice/internal/platform/httpx"
	"github.com/stockline/backoffice/jobs"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the ops router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
	// Checks are pinged by /healthz, keyed by component name.
	Checks map[string]Pinger
}

// NewRouter constructs the ops chi.Router served next to the worker.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Logger, params.Checks))
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok"}
		code := http.StatusOK
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			for name, check := range checks {
				if err := check.Ping(ctx); err != nil {
					logger.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
					report.Checks[name] = "down"
					report.Status = "degraded"
					code = http.StatusServiceUnavailable
					continue
				}
				report.Checks[name] = "ok"
			}
		}
		httpx.JSON(w, code, report)
	}
}
