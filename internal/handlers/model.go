package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"actms/internal/nlp"
)

type analyzeRequest struct {
	Text string `json:"text" validate:"max=20000"`
}

// TrainModelHandler refits the fraud model on the stored bids.
func (h *Handler) TrainModelHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Scorer.Train(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to train model", err)
		return
	}
	h.audit(r, "model_training",
		fmt.Sprintf("Model trained on %s data (%d samples, %d outliers)", res.Source, res.Samples, res.OutliersDetected))
	if h.svc.Alerts != nil {
		if _, err := h.svc.Alerts.ModelTrained(r.Context(), res.Source, res.Samples, res.OutliersDetected); err != nil {
			h.log.Error("raising alert failed", zap.String("type", "model"), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ModelMetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Scorer.Metrics())
}

// FeatureAnalysisHandler compares feature statistics of flagged and normal bids.
func (h *Handler) FeatureAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Scorer.FeatureAnalysis(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to analyze features", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AnalyzeProposalHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	writeJSON(w, http.StatusOK, nlp.Analyze(req.Text))
}
