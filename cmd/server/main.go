package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"clusterreport/internal/bookings"
	"clusterreport/internal/cluster"
	"clusterreport/internal/credential"
	"clusterreport/internal/platform/config"
	"clusterreport/internal/platform/health"
	"clusterreport/internal/platform/httpserver"
	"clusterreport/internal/platform/logger"
	"clusterreport/internal/report"
	reportmetrics "clusterreport/internal/report/metrics"
	"clusterreport/internal/tracer"
	httptransport "clusterreport/internal/transport/http"
	"clusterreport/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Pipeline logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing clusterreport",
		"addr", cfg.Addr,
		"domain", cfg.Domain,
		"state_dir", cfg.StateDir,
	)

	creds := credential.NewFileStore(cfg.StateDir)

	clusterClient := cluster.New(cluster.BaseURL(cfg.Domain), cfg.ClientTimeout,
		cluster.WithInvalidator(creds),
	)
	bookingsClient := bookings.NewClient(bookings.UserBaseURL(cfg.Domain), cfg.ClientTimeout,
		bookings.WithInvalidator(creds),
	)
	collector := bookings.NewCollector(bookingsClient,
		bookings.WithLogger(log),
		bookings.WithBreaker(circuit.New("bookings-direct")),
		bookings.WithPoller(bookings.NewPoller(bookingsClient,
			bookings.WithInterval(cfg.PollInterval),
			bookings.WithMaxAttempts(cfg.PollAttempts),
			bookings.WithPollerLogger(log),
		)),
	)

	svc := report.New(clusterClient, collector, creds, report.NewInMemoryRunStore(),
		report.WithLogger(log),
		report.WithMetrics(reportmetrics.New()),
		report.WithTracer(tracer.NewOTel()),
	)

	hub := httptransport.NewProgressHub()
	handler := httptransport.NewHandler(svc, hub, log)
	router := httptransport.NewRouter(handler, health.New(), log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
