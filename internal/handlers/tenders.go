package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"actms/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// tenderTransitions lists the statuses each status may move to.
var tenderTransitions = map[string][]string{
	models.TenderActive: {models.TenderClosed, models.TenderAwarded, models.TenderCancelled},
	models.TenderClosed: {models.TenderAwarded},
}

func canTransition(from, to string) bool {
	for _, s := range tenderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validTenderStatus(s string) bool {
	switch s {
	case models.TenderActive, models.TenderClosed, models.TenderAwarded, models.TenderCancelled:
		return true
	}
	return false
}

// GetTendersHandler lists tenders, optionally filtered by status, department and region.
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, defaultListLimit, maxListLimit)
	q := r.URL.Query()
	filter := models.TenderFilter{
		Status:     q.Get("status"),
		Department: q.Get("department"),
		Region:     q.Get("region"),
	}
	if filter.Status != "" && !validTenderStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	tenders, err := h.Store.ListTenders(r.Context(), filter, params.Limit, params.Offset)
	if err != nil {
		h.serverError(w, r, "Failed to get tenders", err)
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// CreateTenderHandler handles POST /api/tenders.
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTenderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	deadline, err := models.ParseDeadline(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tender := &models.Tender{
		Title:        req.Title,
		Description:  req.Description,
		Department:   req.Department,
		Region:       req.Region,
		Budget:       req.Budget,
		Deadline:     deadline,
		Requirements: req.Requirements,
	}
	if err := h.Store.CreateTender(r.Context(), tender); err != nil {
		h.serverError(w, r, "Failed to create tender", err)
		return
	}

	h.audit(r, "tender_created", fmt.Sprintf("Tender %d created", tender.ID))
	h.invalidateDashboard(r.Context())

	writeJSON(w, http.StatusCreated, map[string]any{
		"tender_id": tender.ID,
		"message":   "Tender created successfully",
		"tender":    tender,
	})
}

func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := pathID(r, "tenderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tenderId")
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}

// EditTenderHandler applies a partial update and stores it as a new version.
func (h *Handler) EditTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := pathID(r, "tenderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tenderId")
		return
	}

	var req models.UpdateTenderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}
	if tender.Status != models.TenderActive {
		writeError(w, http.StatusConflict, "Only active tenders can be edited")
		return
	}

	if req.Title != nil {
		tender.Title = *req.Title
	}
	if req.Description != nil {
		tender.Description = *req.Description
	}
	if req.Department != nil {
		tender.Department = *req.Department
	}
	if req.Region != nil {
		tender.Region = *req.Region
	}
	if req.Requirements != nil {
		tender.Requirements = *req.Requirements
	}
	if req.Budget != nil {
		if !req.Budget.IsPositive() {
			writeError(w, http.StatusBadRequest, "budget must be greater than 0")
			return
		}
		tender.Budget = *req.Budget
	}
	if req.Deadline != nil {
		deadline, err := models.ParseDeadline(*req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tender.Deadline = deadline
	}

	if err := h.Store.UpdateTender(r.Context(), tender); err != nil {
		h.serverError(w, r, "Failed to update tender", err)
		return
	}
	h.audit(r, "tender_updated", fmt.Sprintf("Tender %d updated to version %d", tender.ID, tender.Version))
	h.invalidateDashboard(r.Context())

	writeJSON(w, http.StatusOK, tender)
}

// ChangeTenderStatusHandler moves a tender along its lifecycle:
// active to closed, awarded or cancelled, and closed to awarded.
func (h *Handler) ChangeTenderStatusHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := pathID(r, "tenderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tenderId")
		return
	}
	newStatus := r.URL.Query().Get("status")
	if !validTenderStatus(newStatus) {
		writeError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}
	if !canTransition(tender.Status, newStatus) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("Invalid status transition from %s to %s", tender.Status, newStatus))
		return
	}

	previous := tender.Status
	tender.Status = newStatus
	if err := h.Store.UpdateTender(r.Context(), tender); err != nil {
		h.serverError(w, r, "Failed to update tender status", err)
		return
	}
	h.audit(r, "tender_status_changed",
		fmt.Sprintf("Tender %d status changed from %s to %s", tender.ID, previous, newStatus))
	h.invalidateDashboard(r.Context())

	writeJSON(w, http.StatusOK, tender)
}

// RollbackTenderHandler restores the content of an earlier version as a new
// version. The lifecycle status is left as it is.
func (h *Handler) RollbackTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := pathID(r, "tenderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tenderId")
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "Invalid version number")
		return
	}

	current, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}
	snapshot, err := h.Store.GetTenderVersion(r.Context(), tenderID, version)
	if err != nil {
		h.lookupError(w, r, "Version", err)
		return
	}

	current.Title = snapshot.Title
	current.Description = snapshot.Description
	current.Department = snapshot.Department
	current.Region = snapshot.Region
	current.Budget = snapshot.Budget
	current.Deadline = snapshot.Deadline
	current.Requirements = snapshot.Requirements

	if err := h.Store.UpdateTender(r.Context(), current); err != nil {
		h.serverError(w, r, "Failed to update tender", err)
		return
	}
	h.audit(r, "tender_rollback",
		fmt.Sprintf("Tender %d rolled back to version %d as version %d", current.ID, version, current.Version))
	h.invalidateDashboard(r.Context())

	writeJSON(w, http.StatusOK, current)
}

// GetBidsForTenderHandler lists the bids placed on one tender.
func (h *Handler) GetBidsForTenderHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r, defaultListLimit, maxListLimit)

	tenderID, ok := pathID(r, "tenderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tenderId")
		return
	}
	if _, err := h.Store.GetTender(r.Context(), tenderID); err != nil {
		h.lookupError(w, r, "Tender", err)
		return
	}

	bids, err := h.Store.ListBidsForTender(r.Context(), tenderID, params.Limit, params.Offset)
	if err != nil {
		h.serverError(w, r, "Failed to get bids for tender", err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}
