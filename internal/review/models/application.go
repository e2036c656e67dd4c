package models

import (
	"fmt"
	"strings"
	"time"

	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// OverallStatus is the application-level lifecycle state. It is derived from
// stage outcomes plus the terminal fields and is never set directly by
// handlers; only the transition methods below move it.
type OverallStatus string

const (
	StatusDraft       OverallStatus = "draft"
	StatusSubmitted   OverallStatus = "submitted"
	StatusUnderReview OverallStatus = "under_review"
	StatusApproved    OverallStatus = "approved"
	StatusRejected    OverallStatus = "rejected"
	StatusWithdrawn   OverallStatus = "withdrawn"
)

// IsTerminal reports whether the status is absorbing: no transition leaves it.
func (s OverallStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

// Application is the unit under review.
//
// Invariants:
//   - Category is non-empty; RequestedAmountCents is positive
//   - Status transitions: draft → submitted → under_review → approved|rejected;
//     submitted|under_review → withdrawn
//   - Terminal statuses (approved, rejected, withdrawn) are absorbing
//   - A stage-level rejection never moves Status away from under_review on its
//     own; only a final_approval decision closes the application
//   - Applications are never deleted, only transitioned to a terminal status
type Application struct {
	ID                   id.ApplicationID `json:"id"`
	Number               string           `json:"application_number"`
	Category             string           `json:"category"`
	Subcategory          string           `json:"subcategory,omitempty"`
	RequestedAmountCents int64            `json:"requested_amount_cents"`
	Status               OverallStatus    `json:"status"`
	SubmittedAt          time.Time        `json:"submitted_at"`
	ApprovedAt           *time.Time       `json:"approved_at,omitempty"`
	RejectedAt           *time.Time       `json:"rejected_at,omitempty"`
	RejectionReason      string           `json:"rejection_reason,omitempty"`
	WithdrawnAt          *time.Time       `json:"withdrawn_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NewApplication constructs a submitted application. Intake submits directly;
// draft exists only for records migrated from the legacy console.
func NewApplication(appID id.ApplicationID, number, category, subcategory string, requestedAmountCents int64, now time.Time) (*Application, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application category cannot be empty")
	}
	if requestedAmountCents <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requested amount must be positive")
	}
	return &Application{
		ID:                   appID,
		Number:               number,
		Category:             category,
		Subcategory:          strings.TrimSpace(subcategory),
		RequestedAmountCents: requestedAmountCents,
		Status:               StatusSubmitted,
		SubmittedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// FormatNumber renders the human-readable application number.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("SSC-%d-%06d", year, seq)
}

// CanAcceptStageDecision checks the closed-application invariant: an
// application in a terminal overall status cannot accept new stage decisions.
func (a *Application) CanAcceptStageDecision() error {
	if a.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeApplicationClosed,
			"application %s is %s and no longer accepts decisions", a.Number, a.Status)
	}
	if a.Status == StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, "draft applications cannot be reviewed")
	}
	return nil
}

// ApplyReviewStarted moves submitted → under_review. Automatic the moment any
// stage receives its first decision; idempotent once under review.
func (a *Application) ApplyReviewStarted(now time.Time) {
	if a.Status == StatusSubmitted {
		a.Status = StatusUnderReview
		a.UpdatedAt = now
	}
}

// ApplyFinalOutcome closes the application from a final_approval decision.
// Approval sets ApprovedAt; rejection sets RejectedAt and carries the
// decision's notes as the rejection reason.
func (a *Application) ApplyFinalOutcome(outcome Outcome, reason string, now time.Time) error {
	if a.Status != StatusUnderReview {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"final outcome requires under_review status, application is %s", a.Status)
	}
	switch outcome {
	case OutcomeApproved:
		a.Status = StatusApproved
		t := now
		a.ApprovedAt = &t
	case OutcomeRejected:
		a.Status = StatusRejected
		t := now
		a.RejectedAt = &t
		a.RejectionReason = reason
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown final outcome %q", outcome)
	}
	a.UpdatedAt = now
	return nil
}

// CanWithdraw checks the withdrawal side transition: available only from
// non-terminal statuses.
func (a *Application) CanWithdraw() error {
	if a.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeApplicationClosed,
			"application %s is already %s", a.Number, a.Status)
	}
	return nil
}

// ApplyWithdrawal transitions to withdrawn. Call CanWithdraw first.
func (a *Application) ApplyWithdrawal(now time.Time) {
	a.Status = StatusWithdrawn
	t := now
	a.WithdrawnAt = &t
	a.UpdatedAt = now
}

// Summary is the queue/dashboard projection of an application.
type Summary struct {
	ID                   id.ApplicationID `json:"id"`
	Number               string           `json:"application_number"`
	Category             string           `json:"category"`
	RequestedAmountCents int64            `json:"requested_amount_cents"`
	Status               OverallStatus    `json:"status"`
	SubmittedAt          time.Time        `json:"submitted_at"`
}

// ToSummary projects the application for list views.
func (a *Application) ToSummary() Summary {
	return Summary{
		ID:                   a.ID,
		Number:               a.Number,
		Category:             a.Category,
		RequestedAmountCents: a.RequestedAmountCents,
		Status:               a.Status,
		SubmittedAt:          a.SubmittedAt,
	}
}
