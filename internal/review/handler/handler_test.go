package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bursary/internal/review/models"
	"bursary/internal/review/reporting"
	"bursary/internal/review/service"
	applicationstore "bursary/internal/review/store/application"
	ledgerstore "bursary/internal/review/store/ledger"
	stagestatusstore "bursary/internal/review/store/stagestatus"
	id "bursary/pkg/domain"
	"bursary/pkg/requestcontext"
)

type env struct {
	router chi.Router
	svc    *service.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	apps := applicationstore.NewInMemory()
	stages := stagestatusstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()

	svc, err := service.New(apps, stages, ledger, service.NewShardedTx(0))
	require.NoError(t, err)

	projector := reporting.New(apps, stages, ledger)
	h := New(svc, projector, slog.New(slog.DiscardHandler))

	router := chi.NewRouter()
	h.Register(router)
	return &env{router: router, svc: svc}
}

// do performs a request with reviewer claims injected, the way the auth
// middleware would.
func (e *env) do(t *testing.T, method, path string, role id.Role, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		ctx := requestcontext.WithReviewerID(req.Context(), id.ReviewerID(uuid.New()))
		ctx = requestcontext.WithRole(ctx, role)
		req = req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) intake(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/applications", id.RoleAdmin, map[string]any{
		"category":               "undergraduate",
		"requested_amount_cents": 300_000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ApplicationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestAuthenticationRequired(t *testing.T) {
	e := newEnv(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/applications"},
		{http.MethodGet, "/applications"},
		{http.MethodGet, "/queue"},
		{http.MethodGet, "/decisions"},
	} {
		rec := e.do(t, tc.method, tc.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
		require.Equal(t, "unauthorized", errorCode(t, rec))
	}
}

func TestIntake(t *testing.T) {
	e := newEnv(t)

	t.Run("creates application", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications", id.RoleAdmin, map[string]any{
			"category":               "undergraduate",
			"requested_amount_cents": 300_000,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ApplicationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "submitted", resp.Status)
		require.Regexp(t, `^SSC-\d{4}-\d{6}$`, resp.ApplicationNumber)
	})

	t.Run("rejects missing category", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications", id.RoleAdmin, map[string]any{
			"requested_amount_cents": 300_000,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewBufferString("{"))
		ctx := requestcontext.WithReviewerID(req.Context(), id.ReviewerID(uuid.New()))
		ctx = requestcontext.WithRole(ctx, id.RoleAdmin)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDecisionEndpoint(t *testing.T) {
	e := newEnv(t)
	appID := e.intake(t)

	checklist := map[string]bool{}
	for _, item := range models.RequiredChecklist() {
		checklist[string(item)] = true
	}

	t.Run("records a document approval", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleDocumentOfficer, map[string]any{
			"stage":   "document_verification",
			"outcome": "approved",
			"payload": map[string]any{"checklist": checklist},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp DecisionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "approved", resp.StageStatus.Status)
		require.Equal(t, "under_review", resp.Application.Status)
	})

	t.Run("wrong role is forbidden", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleFinancialOfficer, map[string]any{
			"stage":   "academic_review",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "forbidden", errorCode(t, rec))
	})

	t.Run("incomplete checklist is unprocessable", func(t *testing.T) {
		second := e.intake(t)
		rec := e.do(t, http.MethodPost, "/applications/"+second+"/decisions", id.RoleDocumentOfficer, map[string]any{
			"stage":   "document_verification",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "incomplete_checklist", errorCode(t, rec))
	})

	t.Run("rejection without notes is unprocessable", func(t *testing.T) {
		second := e.intake(t)
		rec := e.do(t, http.MethodPost, "/applications/"+second+"/decisions", id.RoleFinancialOfficer, map[string]any{
			"stage":   "financial_review",
			"outcome": "rejected",
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "missing_reason", errorCode(t, rec))
	})

	t.Run("premature final approval conflicts", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleChairperson, map[string]any{
			"stage":   "final_approval",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "prerequisite_stages_incomplete", errorCode(t, rec))
	})

	t.Run("unknown stage is a validation error", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleAdmin, map[string]any{
			"stage":   "background_check",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed application id", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/not-a-uuid/decisions", id.RoleAdmin, map[string]any{
			"stage":   "academic_review",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown application", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/applications/"+uuid.NewString()+"/decisions", id.RoleAcademicOfficer, map[string]any{
			"stage":   "academic_review",
			"outcome": "approved",
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStagesAndChecklistViews(t *testing.T) {
	e := newEnv(t)
	appID := e.intake(t)

	rec := e.do(t, http.MethodGet, "/applications/"+appID+"/stages", id.RoleChairperson, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail DetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Len(t, detail.Stages, 4)
	for _, stage := range detail.Stages {
		require.Equal(t, "pending", stage.Status)
	}

	rec = e.do(t, http.MethodGet, "/applications/"+appID+"/checklist", id.RoleDocumentOfficer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view reporting.ChecklistView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.False(t, view.Complete)
	require.Len(t, view.Items, len(models.RequiredChecklist()))
}

func TestWithdrawEndpoint(t *testing.T) {
	e := newEnv(t)
	appID := e.intake(t)

	rec := e.do(t, http.MethodPost, "/applications/"+appID+"/withdraw", id.RoleAdmin, map[string]any{
		"notes": "student request",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ApplicationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "withdrawn", resp.Status)

	// Withdrawing again conflicts.
	rec = e.do(t, http.MethodPost, "/applications/"+appID+"/withdraw", id.RoleAdmin, map[string]any{})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application_closed", errorCode(t, rec))
}

func TestReopenEndpoint(t *testing.T) {
	e := newEnv(t)
	appID := e.intake(t)

	checklist := map[string]bool{}
	for _, item := range models.RequiredChecklist() {
		checklist[string(item)] = true
	}
	rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleDocumentOfficer, map[string]any{
		"stage":   "document_verification",
		"outcome": "approved",
		"payload": map[string]any{"checklist": checklist},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/admin/applications/" + appID + "/stages/document_verification/reopen"

	t.Run("non-admin forbidden", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, path, id.RoleDocumentOfficer, map[string]any{"notes": "clerical error"})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("notes required", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, path, id.RoleAdmin, map[string]any{})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "missing_reason", errorCode(t, rec))
	})

	t.Run("admin reopens the stage", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, path, id.RoleAdmin, map[string]any{"notes": "document expired"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DecisionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "stage_reopened", resp.Type)
		require.Equal(t, "pending", resp.StageStatus.Status)
	})
}

func TestQueueEndpoint(t *testing.T) {
	e := newEnv(t)
	first := e.intake(t)
	second := e.intake(t)

	rec := e.do(t, http.MethodGet, "/queue", id.RoleDocumentOfficer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue []SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 2)
	require.Equal(t, first, queue[0].ID)
	require.Equal(t, second, queue[1].ID)

	// The chair sees nothing until prerequisites complete.
	rec = e.do(t, http.MethodGet, "/queue", id.RoleChairperson, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Empty(t, queue)
}

func TestLedgerEndpoint(t *testing.T) {
	e := newEnv(t)
	appID := e.intake(t)

	rec := e.do(t, http.MethodPost, "/applications/"+appID+"/decisions", id.RoleAcademicOfficer, map[string]any{
		"stage":   "academic_review",
		"outcome": "rejected",
		"notes":   "GPA below threshold",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("lists entries", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/decisions?stage=academic_review&outcome=rejected", id.RoleAdmin, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []LedgerEntryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		require.Equal(t, appID, entries[0].ApplicationID)
		require.Equal(t, "GPA below threshold", entries[0].Notes)
	})

	t.Run("rejects unknown filter values", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/decisions?stage=background_check", id.RoleAdmin, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = e.do(t, http.MethodGet, fmt.Sprintf("/decisions?from=%s", "yesterday"), id.RoleAdmin, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
