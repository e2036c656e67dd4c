// Package evaluator validates and normalizes reviewer submissions into
// StageDecision values. The rules are centralized here so they stay testable
// and every caller rejects submissions identically. The evaluator has no side
// effects; persistence is the caller's job.
package evaluator

import (
	"strings"
	"time"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// Submission is a reviewer's proposed decision before validation.
type Submission struct {
	Stage      id.Stage
	Outcome    models.Outcome
	Payload    models.StagePayload
	Notes      string
	ReviewerID id.ReviewerID
}

// Evaluate checks a submission against the stage rules and produces a
// well-formed StageDecision. Validation failures reject the whole submission;
// nothing is partially applied.
func Evaluate(app *models.Application, sub Submission, now time.Time) (models.StageDecision, error) {
	if err := app.CanAcceptStageDecision(); err != nil {
		return models.StageDecision{}, err
	}
	if sub.ReviewerID.IsNil() {
		return models.StageDecision{}, dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}

	sub.Notes = strings.TrimSpace(sub.Notes)

	// A rejection at any stage is advisory until the chair acts, but it must
	// always carry the reason.
	if sub.Outcome == models.OutcomeRejected && sub.Notes == "" {
		return models.StageDecision{}, dErrors.New(dErrors.CodeMissingReason,
			"rejecting a stage requires notes explaining the reason")
	}

	if sub.Outcome == models.OutcomeApproved {
		switch sub.Stage {
		case id.StageDocumentVerification:
			if err := checkDocumentChecklist(sub.Payload.Checklist); err != nil {
				return models.StageDecision{}, err
			}
		case id.StageFinancialReview:
			if err := checkFinancialVerification(sub.Payload); err != nil {
				return models.StageDecision{}, err
			}
		}
	}

	return models.StageDecision{
		ID:            id.NewDecisionID(),
		ApplicationID: app.ID,
		Stage:         sub.Stage,
		Type:          models.DecisionStage,
		Outcome:       sub.Outcome,
		Payload:       normalizePayload(sub.Stage, sub.Payload),
		Notes:         sub.Notes,
		ReviewerID:    sub.ReviewerID,
		CreatedAt:     now,
	}, nil
}

// checkDocumentChecklist requires every canonical item marked verified. The
// error names the unchecked items so the officer knows exactly what is
// missing.
func checkDocumentChecklist(checklist map[models.ChecklistItem]bool) error {
	var missing []string
	for _, item := range models.RequiredChecklist() {
		if !checklist[item] {
			missing = append(missing, string(item))
		}
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeIncompleteChecklist,
			"document checklist incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

// checkFinancialVerification requires income verified, budget available, and
// a non-negative recommended amount.
func checkFinancialVerification(p models.StagePayload) error {
	if p.IncomeVerified == nil || !*p.IncomeVerified {
		return dErrors.New(dErrors.CodeIncompleteVerification,
			"financial approval requires income verification")
	}
	if p.BudgetAvailable == nil || !*p.BudgetAvailable {
		return dErrors.New(dErrors.CodeIncompleteVerification,
			"financial approval requires budget availability confirmation")
	}
	if p.RecommendedAmountCents == nil {
		return dErrors.New(dErrors.CodeIncompleteVerification,
			"financial approval requires a recommended amount")
	}
	if *p.RecommendedAmountCents < 0 {
		return dErrors.New(dErrors.CodeIncompleteVerification,
			"recommended amount must not be negative")
	}
	return nil
}

// normalizePayload keeps only the fields relevant to the decided stage so the
// ledger never records stray data from another lane.
func normalizePayload(stage id.Stage, p models.StagePayload) models.StagePayload {
	var out models.StagePayload
	switch stage {
	case id.StageDocumentVerification:
		out.Checklist = p.Checklist
	case id.StageFinancialReview:
		out.IncomeVerified = p.IncomeVerified
		out.BudgetAvailable = p.BudgetAvailable
		out.RecommendedAmountCents = p.RecommendedAmountCents
	case id.StageAcademicReview:
		out.GPA = p.GPA
		out.AcademicRemarks = p.AcademicRemarks
	case id.StageFinalApproval:
		out.ApprovedAmountCents = p.ApprovedAmountCents
	}
	return out
}
