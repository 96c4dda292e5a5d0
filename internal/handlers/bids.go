package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"actms/db"
	"actms/internal/auth"
	"actms/internal/fraud"
	"actms/internal/nlp"
	"actms/internal/validate"
	"actms/models"
)

const suspiciousListLimit = 50

// actor recorded for entries written by the scoring pipeline
const systemActor = "ml_system"

// BidResponse is returned by POST /api/bids.
type BidResponse struct {
	BidID           int             `json:"bid_id"`
	Message         string          `json:"message"`
	AnomalyAnalysis *fraud.Analysis `json:"anomaly_analysis,omitempty"`
	ScoringError    string          `json:"scoring_error,omitempty"`
	NLPAnalysis     nlp.Result      `json:"nlp_analysis"`
	AlertID         *int            `json:"alert_id,omitempty"`
}

// GetBidsHandler lists bids, or only those of ?tender_id=.
func (h *Handler) GetBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, defaultListLimit, maxListLimit)

	var (
		bids []models.Bid
		err  error
	)
	if raw := r.URL.Query().Get("tender_id"); raw != "" {
		tenderID, convErr := strconv.Atoi(raw)
		if convErr != nil || tenderID <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid tender_id")
			return
		}
		bids, err = h.Store.ListBidsForTender(r.Context(), tenderID, params.Limit, params.Offset)
	} else {
		bids, err = h.Store.ListBids(r.Context(), params.Limit, params.Offset)
	}
	if err != nil {
		h.serverError(w, r, "Failed to get bids", err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// CreateBidHandler stores a bid, runs the proposal analysis and the fraud
// model on it, and raises an alert when the bid is flagged.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateBidRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tender, err := h.Store.GetTender(ctx, req.TenderID)
	if err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}
	if tender.Status != models.TenderActive {
		writeError(w, http.StatusConflict, fmt.Sprintf("Tender is %s and no longer accepts bids", tender.Status))
		return
	}
	if !tender.Deadline.After(time.Now()) {
		writeError(w, http.StatusConflict, "Tender deadline has passed")
		return
	}

	bid := &models.Bid{
		TenderID:     req.TenderID,
		CompanyName:  req.CompanyName,
		BidAmount:    req.BidAmount,
		ProposalText: req.ProposalText,
		CompanyInfo:  req.CompanyInfo,
		ContactEmail: req.ContactEmail,
	}
	bid.CompanyInfo.Mobile = validate.FormatIndianMobile(bid.CompanyInfo.Mobile)

	if req.FileHash != "" {
		upload, err := h.Store.GetUploadByHash(ctx, req.FileHash)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "file_hash does not match an uploaded file")
			return
		}
		if err != nil {
			h.serverError(w, r, "Failed to look up upload", err)
			return
		}
		bid.FileHash = upload.SHA256
		bid.FilePath = upload.SavedFilename
	}

	analysis := nlp.Analyze(req.ProposalText)
	bid.NLPScore = analysis.QualityScore

	if err := h.Store.CreateBid(ctx, bid); err != nil {
		h.serverError(w, r, "Failed to create bid", err)
		return
	}

	resp := BidResponse{
		BidID:       bid.ID,
		Message:     "Bid submitted successfully",
		NLPAnalysis: analysis,
	}

	score, err := h.svc.Scorer.Score(ctx, models.ScoringRow{
		BidID:          bid.ID,
		TenderID:       bid.TenderID,
		CompanyName:    bid.CompanyName,
		BidAmount:      bid.BidAmount,
		ProposalText:   bid.ProposalText,
		NLPScore:       bid.NLPScore,
		CreatedAt:      bid.CreatedAt,
		TenderBudget:   tender.Budget,
		TenderDeadline: tender.Deadline,
	})
	if err != nil {
		// the bid is kept; it can be rescored after the model recovers
		h.log.Error("bid scoring failed", zap.Int("bid_id", bid.ID), zap.Error(err))
		resp.ScoringError = "Anomaly analysis unavailable"
	} else {
		resp.AnomalyAnalysis = &score
		if err := h.Store.UpdateBidAnomaly(ctx, bid.ID, score.AnomalyScore, score.IsSuspicious); err != nil {
			h.log.Error("storing bid score failed", zap.Int("bid_id", bid.ID), zap.Error(err))
		}
		if score.IsSuspicious {
			h.flagBid(r, bid.ID, score.AnomalyScore, &resp)
		}
	}

	h.audit(r, "bid_submitted", fmt.Sprintf("Bid %d submitted for tender %d", bid.ID, bid.TenderID))
	h.invalidateDashboard(ctx)

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) flagBid(r *http.Request, bidID int, score float64, resp *BidResponse) {
	if h.svc.Alerts != nil {
		alert, err := h.svc.Alerts.SuspiciousBid(r.Context(), bidID, score)
		if err != nil {
			h.log.Error("raising alert failed", zap.Int("bid_id", bidID), zap.Error(err))
		} else {
			resp.AlertID = &alert.ID
		}
	}
	h.auditAs(r.Context(), systemActor, "suspicious_bid_detected",
		fmt.Sprintf("Suspicious bid %d detected with score %.3f", bidID, score))
}

// GetSuspiciousBidsHandler lists flagged bids, riskiest first.
func (h *Handler) GetSuspiciousBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, suspiciousListLimit, maxListLimit)
	bids, err := h.Store.ListSuspiciousBids(r.Context(), params.Limit)
	if err != nil {
		h.serverError(w, r, "Failed to get suspicious bids", err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *Handler) GetBidHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid bidId")
		return
	}
	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.lookupError(w, r, "Bid", err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func validBidStatus(s string) bool {
	switch s {
	case models.BidSubmitted, models.BidUnderReview, models.BidAccepted, models.BidRejected:
		return true
	}
	return false
}

// accepted and rejected bids take no further status changes or reviews
func isFinal(status string) bool {
	return status == models.BidAccepted || status == models.BidRejected
}

// UpdateBidStatusHandler changes the review status of a bid. Accepted and
// rejected bids are final.
func (h *Handler) UpdateBidStatusHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid bidId")
		return
	}
	status := r.URL.Query().Get("status")
	if !validBidStatus(status) {
		writeError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.lookupError(w, r, "Bid", err)
		return
	}
	if isFinal(bid.Status) {
		writeError(w, http.StatusConflict, fmt.Sprintf("Bid is already %s", bid.Status))
		return
	}

	if err := h.Store.UpdateBidStatus(r.Context(), bidID, status); err != nil {
		h.serverError(w, r, "Failed to update bid status", err)
		return
	}
	h.audit(r, "bid_status_changed", fmt.Sprintf("Bid %d status changed from %s to %s", bidID, bid.Status, status))
	h.invalidateDashboard(r.Context())

	bid.Status = status
	writeJSON(w, http.StatusOK, bid)
}

// CreateBidReviewHandler records a reviewer verdict. A confirmed bid is
// rejected, a cleared one loses its flag. Both happen in the same write.
func (h *Handler) CreateBidReviewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bidID, ok := pathID(r, "bidId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid bidId")
		return
	}

	var req models.CreateReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	bid, err := h.Store.GetBid(ctx, bidID)
	if err != nil {
		h.lookupError(w, r, "Bid", err)
		return
	}

	if isFinal(bid.Status) {
		writeError(w, http.StatusConflict, fmt.Sprintf("Bid is already %s", bid.Status))
		return
	}

	review := &models.BidReview{
		BidID:    bidID,
		Reviewer: auth.Actor(ctx),
		Verdict:  req.Verdict,
		Note:     req.Note,
	}
	if err := h.Store.CreateBidReview(ctx, review); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bid not found")
			return
		}
		h.serverError(w, r, "Failed to create review", err)
		return
	}

	h.audit(r, "bid_reviewed", fmt.Sprintf("Bid %d reviewed: %s", bidID, req.Verdict))
	h.invalidateDashboard(ctx)

	writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) GetBidReviewsHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid bidId")
		return
	}
	if _, err := h.Store.GetBid(r.Context(), bidID); err != nil {
		h.lookupError(w, r, "Bid", err)
		return
	}
	reviews, err := h.Store.ListBidReviews(r.Context(), bidID)
	if err != nil {
		h.serverError(w, r, "Failed to get reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
