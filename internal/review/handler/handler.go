// Package handler wires the review endpoints. Handlers parse, authenticate
// against context claims, call the service, and translate results; no workflow
// rules live here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bursary/internal/review/evaluator"
	"bursary/internal/review/models"
	"bursary/internal/review/reporting"
	"bursary/internal/review/service"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
	"bursary/pkg/platform/httputil"
	"bursary/pkg/requestcontext"
)

// Service defines the review operations the handler depends on.
type Service interface {
	Intake(ctx context.Context, input service.IntakeInput) (*models.Application, error)
	SubmitStageDecision(ctx context.Context, appID id.ApplicationID, role id.Role, sub evaluator.Submission) (*service.DecisionResult, error)
	Withdraw(ctx context.Context, appID id.ApplicationID, reviewerID id.ReviewerID, notes string) (*models.Application, error)
	Reopen(ctx context.Context, appID id.ApplicationID, stage id.Stage, role id.Role, reviewerID id.ReviewerID, notes string) (*service.DecisionResult, error)
	Get(ctx context.Context, appID id.ApplicationID) (*service.Detail, error)
	List(ctx context.Context, statuses ...models.OverallStatus) ([]models.Summary, error)
	Ledger(ctx context.Context, filter models.LedgerFilter) ([]models.StageDecision, error)
	QueueForRole(ctx context.Context, role id.Role) ([]models.Summary, error)
}

// Reports defines the read-only projections the handler exposes.
type Reports interface {
	DecisionHistory(ctx context.Context, appID id.ApplicationID) (*reporting.History, error)
	Checklist(ctx context.Context, appID id.ApplicationID) (*reporting.ChecklistView, error)
}

// Handler wires review endpoints to the review service and projector.
type Handler struct {
	service Service
	reports Reports
	logger  *slog.Logger
}

// New constructs a review handler with its dependencies.
func New(service Service, reports Reports, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		reports: reports,
		logger:  logger,
	}
}

// Register mounts review endpoints on the router. Authentication middleware is
// applied by the caller; the admin group carries its own role check.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.HandleIntake)
	r.Get("/applications", h.HandleList)
	r.Get("/applications/{applicationID}/stages", h.HandleStages)
	r.Get("/applications/{applicationID}/checklist", h.HandleChecklist)
	r.Get("/applications/{applicationID}/history", h.HandleHistory)
	r.Post("/applications/{applicationID}/decisions", h.HandleDecision)
	r.Post("/applications/{applicationID}/withdraw", h.HandleWithdraw)
	r.Post("/admin/applications/{applicationID}/stages/{stage}/reopen", h.HandleReopen)
	r.Get("/queue", h.HandleQueue)
	r.Get("/decisions", h.HandleLedger)
}

// claims returns the authenticated reviewer and role, or writes 401.
func (h *Handler) claims(w http.ResponseWriter, ctx context.Context) (id.ReviewerID, id.Role, bool) {
	reviewerID := requestcontext.ReviewerID(ctx)
	role := requestcontext.Role(ctx)
	if reviewerID.IsNil() || role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.ReviewerID{}, "", false
	}
	return reviewerID, role, true
}

// pathApplicationID parses the {applicationID} path segment, or writes the
// validation error.
func (h *Handler) pathApplicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}

// HandleIntake handles POST /applications.
func (h *Handler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IntakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.Intake(ctx, service.IntakeInput{
		Category:             req.Category,
		Subcategory:          req.Subcategory,
		RequestedAmountCents: req.RequestedAmountCents,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "intake failed",
			"request_id", requestID,
			"category", req.Category,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application registered",
		"request_id", requestID,
		"application_number", app.Number,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromApplication(app))
}

// HandleList handles GET /applications. An optional status query narrows the
// list.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}

	var statuses []models.OverallStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		switch status := models.OverallStatus(raw); status {
		case models.StatusDraft, models.StatusSubmitted, models.StatusUnderReview,
			models.StatusApproved, models.StatusRejected, models.StatusWithdrawn:
			statuses = append(statuses, status)
		default:
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status: %q", raw))
			return
		}
	}

	summaries, err := h.service.List(ctx, statuses...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummaries(summaries))
}

// HandleStages handles GET /applications/{applicationID}/stages.
func (h *Handler) HandleStages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(ctx, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDetail(detail))
}

// HandleChecklist handles GET /applications/{applicationID}/checklist.
func (h *Handler) HandleChecklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}

	view, err := h.reports.Checklist(ctx, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleHistory handles GET /applications/{applicationID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}

	history, err := h.reports.DecisionHistory(ctx, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

// HandleDecision handles POST /applications/{applicationID}/decisions.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	reviewerID, role, ok := h.claims(w, ctx)
	if !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.SubmitStageDecision(ctx, appID, role, evaluator.Submission{
		Stage:      req.ParsedStage(),
		Outcome:    req.ParsedOutcome(),
		Payload:    req.Payload,
		Notes:      req.Notes,
		ReviewerID: reviewerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "stage decision rejected",
			"request_id", requestID,
			"application_id", appID.String(),
			"stage", req.Stage,
			"reviewer_id", reviewerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stage decision accepted",
		"request_id", requestID,
		"application_id", appID.String(),
		"stage", req.Stage,
		"outcome", req.Outcome,
		"reviewer_id", reviewerID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDecisionResult(result))
}

// HandleWithdraw handles POST /applications/{applicationID}/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reviewerID, _, ok := h.claims(w, ctx)
	if !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[WithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.Withdraw(ctx, appID, reviewerID, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application withdrawn",
		"request_id", requestID,
		"application_id", appID.String(),
		"reviewer_id", reviewerID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleReopen handles POST /admin/applications/{applicationID}/stages/{stage}/reopen.
func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reviewerID, role, ok := h.claims(w, ctx)
	if !ok {
		return
	}
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	stage, err := id.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReopenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Reopen(ctx, appID, stage, role, reviewerID, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "stage reopen rejected",
			"request_id", requestID,
			"application_id", appID.String(),
			"stage", stage.String(),
			"reviewer_id", reviewerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stage reopened",
		"request_id", requestID,
		"application_id", appID.String(),
		"stage", stage.String(),
		"reviewer_id", reviewerID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecisionResult(result))
}

// HandleQueue handles GET /queue for the authenticated reviewer's role.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, role, ok := h.claims(w, ctx)
	if !ok {
		return
	}

	queue, err := h.service.QueueForRole(ctx, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummaries(queue))
}

// HandleLedger handles GET /decisions with optional stage, outcome, from, to,
// and limit filters.
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, _, ok := h.claims(w, ctx); !ok {
		return
	}

	q := r.URL.Query()
	filter, err := parseLedgerFilter(q.Get("stage"), q.Get("outcome"), q.Get("from"), q.Get("to"), q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.Ledger(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLedger(entries))
}
