package models

import (
	"time"

	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// Outcome is the verdict carried by a decision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// ParseOutcome validates an outcome received at a trust boundary.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeApproved, OutcomeRejected:
		return Outcome(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown outcome: %q", s)
}

// DecisionType distinguishes the kinds of ledger entry. Reopens and
// withdrawals are ledgered as decisions in their own right: the ledger is the
// complete audit trail, never edited in place.
type DecisionType string

const (
	DecisionStage     DecisionType = "stage_decision"
	DecisionReopen    DecisionType = "stage_reopened"
	DecisionWithdrawn DecisionType = "application_withdrawn"
)

// StageDecision is the immutable record of a single reviewer action. Once
// appended to the ledger it is never modified or deleted; the current
// StageStatus is a denormalized cache of the latest entry per stage.
type StageDecision struct {
	ID            id.DecisionID    `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	Stage         id.Stage         `json:"stage,omitempty"`
	Type          DecisionType     `json:"type"`
	Outcome       Outcome          `json:"outcome,omitempty"`
	Payload       StagePayload     `json:"payload"`
	Notes         string           `json:"notes,omitempty"`
	ReviewerID    id.ReviewerID    `json:"reviewer_id"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ToStageStatus derives the current stage snapshot this decision produces.
func (d StageDecision) ToStageStatus() StageStatus {
	reviewedAt := d.CreatedAt
	status := StageApproved
	if d.Outcome == OutcomeRejected {
		status = StageRejected
	}
	if d.Type == DecisionReopen {
		// A reopen resets the lane; reviewer and notes are kept so the stage
		// view shows who reopened and why.
		status = StagePending
	}
	return StageStatus{
		ApplicationID: d.ApplicationID,
		Stage:         d.Stage,
		Status:        status,
		ReviewerID:    d.ReviewerID,
		ReviewedAt:    &reviewedAt,
		Notes:         d.Notes,
		Payload:       d.Payload,
	}
}

// LedgerFilter narrows cross-application ledger queries. Filtering happens
// server-side so large histories never load fully into memory.
type LedgerFilter struct {
	Stage   *id.Stage
	Outcome *Outcome
	From    *time.Time
	To      *time.Time
	Limit   int
}

// Matches applies the filter to a single entry (used by the in-memory store;
// the postgres store translates the same semantics to SQL).
func (f LedgerFilter) Matches(d StageDecision) bool {
	if f.Stage != nil && d.Stage != *f.Stage {
		return false
	}
	if f.Outcome != nil && d.Outcome != *f.Outcome {
		return false
	}
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && d.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
