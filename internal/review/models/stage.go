package models

import (
	"time"

	id "bursary/pkg/domain"
)

// StageStatusValue is the per-stage outcome snapshot.
type StageStatusValue string

const (
	StagePending  StageStatusValue = "pending"
	StageApproved StageStatusValue = "approved"
	StageRejected StageStatusValue = "rejected"
)

// IsTerminal reports whether the stage has reached a per-stage outcome.
// A terminal stage only changes through an administrative reopen.
func (v StageStatusValue) IsTerminal() bool {
	return v == StageApproved || v == StageRejected
}

// ChecklistItem names one entry of the document verification checklist.
type ChecklistItem string

// Canonical document checklist. Approval of document_verification requires
// every one of these marked verified.
const (
	ChecklistIdentityDocument     ChecklistItem = "identity_document"
	ChecklistProofOfEnrollment    ChecklistItem = "proof_of_enrollment"
	ChecklistAcademicTranscript   ChecklistItem = "academic_transcript"
	ChecklistIncomeStatement      ChecklistItem = "income_statement"
	ChecklistRecommendationLetter ChecklistItem = "recommendation_letter"
	ChecklistBankDetails          ChecklistItem = "bank_details"
	ChecklistSignedConsent        ChecklistItem = "signed_consent"
)

// RequiredChecklist returns the canonical checklist in presentation order.
func RequiredChecklist() []ChecklistItem {
	return []ChecklistItem{
		ChecklistIdentityDocument,
		ChecklistProofOfEnrollment,
		ChecklistAcademicTranscript,
		ChecklistIncomeStatement,
		ChecklistRecommendationLetter,
		ChecklistBankDetails,
		ChecklistSignedConsent,
	}
}

// StagePayload is the structured review data attached to a decision. Exactly
// the fields relevant to the decided stage are populated; the rest stay nil.
// This replaces the legacy console's freeform status blob with one typed shape
// that every screen can rely on.
type StagePayload struct {
	// document_verification
	Checklist map[ChecklistItem]bool `json:"checklist,omitempty"`

	// financial_review
	IncomeVerified         *bool  `json:"income_verified,omitempty"`
	BudgetAvailable        *bool  `json:"budget_available,omitempty"`
	RecommendedAmountCents *int64 `json:"recommended_amount_cents,omitempty"`

	// academic_review
	GPA             *float64 `json:"gpa,omitempty"`
	AcademicRemarks string   `json:"academic_remarks,omitempty"`

	// final_approval
	ApprovedAmountCents *int64 `json:"approved_amount_cents,omitempty"`
}

// StageStatus is the current outcome snapshot for one (application, stage)
// pair. At most one current StageStatus exists per pair; it always equals the
// most recent ledger entry for that pair. History lives in the ledger, not
// here.
type StageStatus struct {
	ApplicationID id.ApplicationID `json:"application_id"`
	Stage         id.Stage         `json:"stage"`
	Status        StageStatusValue `json:"status"`
	ReviewerID    id.ReviewerID    `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	Payload       StagePayload     `json:"payload"`
}

// PendingStageStatus is the default status for a stage with no recorded
// decision.
func PendingStageStatus(appID id.ApplicationID, stage id.Stage) StageStatus {
	return StageStatus{ApplicationID: appID, Stage: stage, Status: StagePending}
}

// StageStatusSet holds one status per stage for a single application.
type StageStatusSet map[id.Stage]StageStatus

// NewStageStatusSet builds a set with every stage pending.
func NewStageStatusSet(appID id.ApplicationID) StageStatusSet {
	set := make(StageStatusSet, len(id.Stages()))
	for _, stage := range id.Stages() {
		set[stage] = PendingStageStatus(appID, stage)
	}
	return set
}

// Get returns the status for a stage, defaulting to pending when no decision
// was ever recorded.
func (set StageStatusSet) Get(appID id.ApplicationID, stage id.Stage) StageStatus {
	if status, ok := set[stage]; ok {
		return status
	}
	return PendingStageStatus(appID, stage)
}

// PrerequisitesTerminal reports whether document verification, financial
// review, and academic review have each reached a terminal per-stage outcome.
// This is the gate on final approval.
func (set StageStatusSet) PrerequisitesTerminal() bool {
	for _, stage := range id.PrerequisiteStages() {
		if !set[stage].Status.IsTerminal() {
			return false
		}
	}
	return true
}

// IncompletePrerequisites lists the prerequisite stages still pending, so the
// chair is told exactly what blocks final approval.
func (set StageStatusSet) IncompletePrerequisites() []id.Stage {
	var pending []id.Stage
	for _, stage := range id.PrerequisiteStages() {
		if !set[stage].Status.IsTerminal() {
			pending = append(pending, stage)
		}
	}
	return pending
}
