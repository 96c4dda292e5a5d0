package handlers

import (
	"fmt"
	"net/http"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// DashboardHandler returns the cached dashboard summary.
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to fetch dashboard data", err)
		return
	}
	h.audit(r, "dashboard_accessed", "Dashboard data retrieved")
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetAuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, defaultAuditLimit, maxAuditLimit)
	logs, err := h.Store.ListAuditLogs(r.Context(), params.Limit)
	if err != nil {
		h.serverError(w, r, "Failed to fetch audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) GetAlertsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, defaultAlertLimit, maxAlertLimit)
	alerts, err := h.Store.ListAlerts(r.Context(), params.Limit)
	if err != nil {
		h.serverError(w, r, "Failed to fetch alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) MarkAlertReadHandler(w http.ResponseWriter, r *http.Request) {
	alertID, ok := pathID(r, "alertId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid alertId")
		return
	}
	if err := h.Store.MarkAlertRead(r.Context(), alertID); err != nil {
		h.lookupError(w, r, "Alert", err)
		return
	}
	h.audit(r, "alert_read", fmt.Sprintf("Alert %d marked as read", alertID))
	writeJSON(w, http.StatusOK, map[string]any{"alert_id": alertID, "message": "Alert marked as read"})
}
