package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tariproject/payment-processor/internal/config"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	DBPath  string `json:"dbPath"`
}

// HealthHandler returns a handler for GET /health.
func HealthHandler(cfg *config.Config, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Version: version,
			DBPath:  cfg.DBPath,
		})
	}
}
