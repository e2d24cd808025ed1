package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aura/internal/logging"
	"aura/internal/session"
)

// serveMetrics starts a background HTTP server exposing sess's counters at
// /metrics and returns a func that shuts it down.
func serveMetrics(addr string, sess *session.Session) func() {
	reg := prometheus.NewRegistry()
	sess.RegisterMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.For(logging.CategoryOrchestrator).Warnw("metrics server stopped", "error", err)
		}
	}()

	return func() {
		_ = srv.Shutdown(context.Background())
	}
}
