package handlers

import (
	"encoding/csv"
	"net/http"

	"vulnwatch/application"
	"vulnwatch/domain/analytics"
	"vulnwatch/logging"
)

// AnalyticsHandlers exposes aggregate statistics and tabular exports over
// completed audits.
type AnalyticsHandlers struct {
	analytics *application.AnalyticsService
	logger    *logging.Logger
}

// NewAnalyticsHandlers creates analytics HTTP handlers.
func NewAnalyticsHandlers(analytics *application.AnalyticsService) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		analytics: analytics,
		logger:    logging.Default().WithComponent("analytics_handlers"),
	}
}

// Summary handles GET /api/analytics/summary?owner=...&window=30d.
func (h *AnalyticsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	window := r.URL.Query().Get("window")

	stats, err := h.analytics.Summary(r.Context(), ownerID, window)
	if err != nil {
		h.logger.Error("Failed to compute summary", "error", err, "owner_id", ownerID)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Export handles GET /api/analytics/export?owner=...&window=30d and streams
// the rows as CSV.
func (h *AnalyticsHandlers) Export(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	window := r.URL.Query().Get("window")

	rows, err := h.analytics.ExportRows(r.Context(), ownerID, window)
	if err != nil {
		h.logger.Error("Failed to build export", "error", err, "owner_id", ownerID)
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)

	writer := csv.NewWriter(w)
	if err := writer.Write(analytics.ExportHeader); err != nil {
		h.logger.Error("Failed to write export header", "error", err)
		return
	}
	for _, row := range rows {
		if err := writer.Write(row.Record()); err != nil {
			h.logger.Error("Failed to write export row", "error", err, "audit_id", row.AuditID)
			return
		}
	}
	writer.Flush()
}
