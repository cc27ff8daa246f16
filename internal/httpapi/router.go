// Package httpapi serves a read-only HTTP view of the index next to the MCP
// server: health, Prometheus metrics and clone reports.
package httpapi

import (
	"log/slog"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/storage"
)

// New sets up the application routes and required middleware.
// gatherer backs /metrics; nil uses the default registry.
func New(logger *slog.Logger, store storage.Storage, det *detector.Detector, gatherer prometheus.Gatherer) *mux.Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &handler{l: logger, store: store, detector: det}

	r := mux.NewRouter()
	r.Use(h.Log)

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/projects/{id:[0-9]+}", h.GetStatus)
	get.HandleFunc("/projects/{id:[0-9]+}/duplicates", h.GetDuplicates)
	get.HandleFunc("/projects/{id:[0-9]+}/blocks/{hash:[0-9a-fA-F]{16}}", h.GetBlocks)

	return r
}
