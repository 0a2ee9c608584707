package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/event-counter/internal/adapter/api/handler"
)

// NewAdminRouter creates the HTTP router for operational endpoints.
func NewAdminRouter(adminHandler *handler.AdminHandler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.HandleFunc("GET /admin/ids/{id}", adminHandler.DecodeID)

	return mux
}
