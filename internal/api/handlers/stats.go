package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	reports store.ReportStore
	log     zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(reports store.ReportStore, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{reports: reports, log: log}
}

// Get handles GET /api/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Stats(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to load stats")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats)
}
