package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stockline/backoffice/internal/jobs"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := metrics.Jobs()
	require.NotNil(t, jobs)

	_ = jobs.Track("stock:reconcile").End(errors.New("boom"))
	jobs.AddRows(jobmetrics.OutcomeUpserted, 3)
	jobs.AddProductsCreated(1)
	jobs.IncLockContention()

	body := scrape(t, metrics)
	require.Contains(t, body, `backoffice_jobs_total{job="stock:reconcile",status="failure"} 1`)
	require.Contains(t, body, `backoffice_jobs_failures_total{job="stock:reconcile"} 1`)
	require.Contains(t, body, `backoffice_reconcile_rows_total{outcome="upserted"} 3`)
	require.Contains(t, body, "backoffice_reconcile_products_created_total 1")
	require.Contains(t, body, "backoffice_reconcile_lock_contention_total 1")
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `backoffice_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `backoffice_http_request_duration_seconds_bucket{route="/test"`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	require.Nil(t, metrics.Jobs())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))
}
