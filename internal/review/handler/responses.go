package handler

import (
	"time"

	"bursary/internal/review/models"
	"bursary/internal/review/service"
	id "bursary/pkg/domain"
)

// ApplicationResponse is the full application record.
type ApplicationResponse struct {
	ID                   string     `json:"id"`
	ApplicationNumber    string     `json:"application_number"`
	Category             string     `json:"category"`
	Subcategory          string     `json:"subcategory,omitempty"`
	RequestedAmountCents int64      `json:"requested_amount_cents"`
	Status               string     `json:"status"`
	SubmittedAt          time.Time  `json:"submitted_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	RejectedAt           *time.Time `json:"rejected_at,omitempty"`
	RejectionReason      string     `json:"rejection_reason,omitempty"`
	WithdrawnAt          *time.Time `json:"withdrawn_at,omitempty"`
}

// FromApplication converts a domain application to its HTTP shape.
func FromApplication(app *models.Application) *ApplicationResponse {
	return &ApplicationResponse{
		ID:                   app.ID.String(),
		ApplicationNumber:    app.Number,
		Category:             app.Category,
		Subcategory:          app.Subcategory,
		RequestedAmountCents: app.RequestedAmountCents,
		Status:               string(app.Status),
		SubmittedAt:          app.SubmittedAt,
		ApprovedAt:           app.ApprovedAt,
		RejectedAt:           app.RejectedAt,
		RejectionReason:      app.RejectionReason,
		WithdrawnAt:          app.WithdrawnAt,
	}
}

// StageResponse is one review lane's current state.
type StageResponse struct {
	Stage      string              `json:"stage"`
	Status     string              `json:"status"`
	ReviewerID string              `json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time          `json:"reviewed_at,omitempty"`
	Notes      string              `json:"notes,omitempty"`
	Payload    models.StagePayload `json:"payload"`
}

func fromStageStatus(status models.StageStatus) StageResponse {
	resp := StageResponse{
		Stage:      status.Stage.String(),
		Status:     string(status.Status),
		ReviewedAt: status.ReviewedAt,
		Notes:      status.Notes,
		Payload:    status.Payload,
	}
	if !status.ReviewerID.IsNil() {
		resp.ReviewerID = status.ReviewerID.String()
	}
	return resp
}

// DetailResponse is the application plus its four stage lanes, in
// presentation order.
type DetailResponse struct {
	Application *ApplicationResponse `json:"application"`
	Stages      []StageResponse      `json:"stages"`
}

// FromDetail converts a service detail to its HTTP shape.
func FromDetail(detail *service.Detail) *DetailResponse {
	resp := &DetailResponse{Application: FromApplication(detail.Application)}
	for _, stage := range id.Stages() {
		resp.Stages = append(resp.Stages, fromStageStatus(detail.Stages.Get(detail.Application.ID, stage)))
	}
	return resp
}

// DecisionResponse is a committed decision: the ledger entry plus the
// application state it produced.
type DecisionResponse struct {
	DecisionID  string               `json:"decision_id"`
	Stage       string               `json:"stage,omitempty"`
	Type        string               `json:"type"`
	Outcome     string               `json:"outcome,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	RecordedAt  time.Time            `json:"recorded_at"`
	StageStatus StageResponse        `json:"stage_status"`
	Application *ApplicationResponse `json:"application"`
}

// FromDecisionResult converts a service decision result to its HTTP shape.
func FromDecisionResult(result *service.DecisionResult) *DecisionResponse {
	return &DecisionResponse{
		DecisionID:  result.Decision.ID.String(),
		Stage:       result.Decision.Stage.String(),
		Type:        string(result.Decision.Type),
		Outcome:     string(result.Decision.Outcome),
		Notes:       result.Decision.Notes,
		RecordedAt:  result.Decision.CreatedAt,
		StageStatus: fromStageStatus(result.StageStatus),
		Application: FromApplication(result.Application),
	}
}

// LedgerEntryResponse is one raw ledger entry for the cross-application view.
type LedgerEntryResponse struct {
	ID            string              `json:"id"`
	ApplicationID string              `json:"application_id"`
	Stage         string              `json:"stage,omitempty"`
	Type          string              `json:"type"`
	Outcome       string              `json:"outcome,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	ReviewerID    string              `json:"reviewer_id"`
	Payload       models.StagePayload `json:"payload"`
	CreatedAt     time.Time           `json:"created_at"`
}

// FromLedger converts ledger entries to their HTTP shape.
func FromLedger(entries []models.StageDecision) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, d := range entries {
		out = append(out, LedgerEntryResponse{
			ID:            d.ID.String(),
			ApplicationID: d.ApplicationID.String(),
			Stage:         d.Stage.String(),
			Type:          string(d.Type),
			Outcome:       string(d.Outcome),
			Notes:         d.Notes,
			ReviewerID:    d.ReviewerID.String(),
			Payload:       d.Payload,
			CreatedAt:     d.CreatedAt,
		})
	}
	return out
}

// SummaryResponse is the queue/dashboard row.
type SummaryResponse struct {
	ID                   string    `json:"id"`
	ApplicationNumber    string    `json:"application_number"`
	Category             string    `json:"category"`
	RequestedAmountCents int64     `json:"requested_amount_cents"`
	Status               string    `json:"status"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// FromSummaries converts summaries to their HTTP shape.
func FromSummaries(summaries []models.Summary) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, SummaryResponse{
			ID:                   s.ID.String(),
			ApplicationNumber:    s.Number,
			Category:             s.Category,
			RequestedAmountCents: s.RequestedAmountCents,
			Status:               string(s.Status),
			SubmittedAt:          s.SubmittedAt,
		})
	}
	return out
}
