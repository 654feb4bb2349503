// Package httptransport is the thin HTTP layer over the report service. It
// delegates to the service without embedding pipeline logic so transport
// concerns remain isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clusterreport/internal/bookings"
	"clusterreport/internal/cluster"
	"clusterreport/internal/credential"
	"clusterreport/internal/platform/health"
	"clusterreport/internal/platform/middleware"
	"clusterreport/internal/report"
)

// ReportService is the slice of the report service the handlers need.
type ReportService interface {
	Connect(ctx context.Context, apiKey, clusterName, domain string) (*credential.Credential, error)
	Companies(ctx context.Context, cred *credential.Credential) ([]cluster.Company, error)
	Start(ctx context.Context, params report.Params, cb report.Callbacks) (string, error)
	Generate(ctx context.Context, params report.Params, cb report.Callbacks) (*report.Run, error)
	Run(ctx context.Context, id string) (*report.Run, error)
	Runs(ctx context.Context) ([]*report.Run, error)
}

// Handler serves the report API.
type Handler struct {
	svc    ReportService
	hub    *ProgressHub
	logger *slog.Logger
	now    func() time.Time
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithNow overrides the clock used for export filenames, for tests.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(svc ReportService, hub *ProgressHub, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:    svc,
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(h *Handler, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	healthHandler.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The websocket route stays outside the timeout group: progress streams
	// outlive any sane request deadline and TimeoutHandler forbids hijacking.
	r.Get("/api/runs/{id}/ws", h.handleRunSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/api/companies", h.handleCompanies)
		r.Post("/api/runs", h.handleStartRun)
		r.Get("/api/runs", h.handleListRuns)
		r.Get("/api/runs/{id}", h.handleGetRun)
		r.Get("/api/runs/{id}/export", h.handleExportRun)
	})

	return r
}

// connectRequest carries cluster credentials for endpoints that talk to the
// cluster API directly.
type connectRequest struct {
	APIKey  string `json:"api_key"`
	Cluster string `json:"cluster"`
	Domain  string `json:"domain"`
}

// startRunRequest is the payload for POST /api/runs.
type startRunRequest struct {
	connectRequest
	Companies []string        `json:"companies"`
	Filter    bookings.Filter `json:"filter"`
}
