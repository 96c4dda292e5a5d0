package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"actms/db"
	"actms/internal/auth"
	"actms/internal/chat"
	"actms/internal/fraud"
	"actms/internal/uploads"
	"actms/internal/validate"
	"actms/models"
)

// maxJSONBody limits every JSON request body.
const maxJSONBody = 1 << 20

// Scorer is the fraud detector as seen by the API.
type Scorer interface {
	Score(ctx context.Context, row models.ScoringRow) (fraud.Analysis, error)
	Train(ctx context.Context) (fraud.TrainResult, error)
	Metrics() fraud.ModelMetrics
	FeatureAnalysis(ctx context.Context) (fraud.FeatureReport, error)
}

type ChatService interface {
	Reply(ctx context.Context, message string) chat.Response
	AddFAQ(question, answer string, confidence float64)
}

type Uploader interface {
	Process(ctx context.Context, filename string, r io.Reader) (*uploads.Result, error)
	MaxSize() int64
}

type DashboardService interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
	Invalidate(ctx context.Context)
}

type AlertRaiser interface {
	SuspiciousBid(ctx context.Context, bidID int, score float64) (*models.Alert, error)
	ModelTrained(ctx context.Context, source string, samples, outliers int) (*models.Alert, error)
}

// Services groups the components the handlers delegate to.
type Services struct {
	Scorer    Scorer
	Chat      ChatService
	Uploads   Uploader
	Dashboard DashboardService
	Alerts    AlertRaiser
}

// Handler serves the JSON API on top of the storage and the services.
type Handler struct {
	Store    StorageInterface
	svc      Services
	validate *validate.Validator
	log      *zap.Logger
}

func NewHandler(store StorageInterface, svc Services, log *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		svc:      svc,
		validate: validate.New(),
		log:      log.Named("api"),
	}
}

// PingHandler answers "ok" while the process is up.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size limited JSON body into dst and validates it.
// It writes the 400 itself and reports whether the handler may go on.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// serverError logs err and answers 500 with msg.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg,
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

// lookupError maps a failed lookup to 404 or 500.
func (h *Handler) lookupError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	h.serverError(w, r, "Failed to load "+what, err)
}

// audit records an action. Failures are logged and never fail the request.
func (h *Handler) audit(r *http.Request, action, details string) {
	entry := &models.AuditLog{
		Action:    action,
		Actor:     auth.Actor(r.Context()),
		Details:   details,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.Store.LogAudit(r.Context(), entry); err != nil {
		h.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// auditAs records an action on behalf of a system component.
func (h *Handler) auditAs(ctx context.Context, actor, action, details string) {
	if err := h.Store.LogAudit(ctx, &models.AuditLog{Action: action, Actor: actor, Details: details}); err != nil {
		h.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from the query. Out of range
// values fall back to the defaults.
func parsePaginationParams(r *http.Request, defLimit, maxLimit int) PaginationParams {
	params := PaginationParams{Limit: defLimit}

	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		params.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	return params
}

func (h *Handler) invalidateDashboard(ctx context.Context) {
	if h.svc.Dashboard != nil {
		h.svc.Dashboard.Invalidate(ctx)
	}
}
