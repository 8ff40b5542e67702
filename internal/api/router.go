package api

import (
	"log/slog"

	"github.com/tariproject/payment-processor/internal/api/handlers"
	"github.com/tariproject/payment-processor/internal/api/middleware"
	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router for the admission API
// (spec.md §1 "admission endpoint") plus health and metrics.
func NewRouter(database *db.DB, cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)

	slog.Info("router initialized", "middleware", []string{"requestLogging"})

	r.Get("/health", handlers.HealthHandler(cfg, Version))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", handlers.CreatePayment(database))
		r.Get("/{id}", handlers.GetPayment(database))
	})

	return r
}
