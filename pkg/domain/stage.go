package domain

import (
	dErrors "bursary/pkg/domain-errors"
)

// Stage is one of four fixed, independent review lanes an application passes
// through. The first three may be worked in parallel by different reviewers;
// final approval is gated on the other three reaching a terminal outcome.
type Stage string

const (
	StageDocumentVerification Stage = "document_verification"
	StageFinancialReview      Stage = "financial_review"
	StageAcademicReview       Stage = "academic_review"
	StageFinalApproval        Stage = "final_approval"
)

// Stages lists all review stages in presentation order.
func Stages() []Stage {
	return []Stage{
		StageDocumentVerification,
		StageFinancialReview,
		StageAcademicReview,
		StageFinalApproval,
	}
}

// PrerequisiteStages are the parallel lanes that must reach a terminal
// per-stage outcome before final approval can be decided.
func PrerequisiteStages() []Stage {
	return []Stage{
		StageDocumentVerification,
		StageFinancialReview,
		StageAcademicReview,
	}
}

// ParseStage validates a stage identifier received at a trust boundary.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageDocumentVerification, StageFinancialReview, StageAcademicReview, StageFinalApproval:
		return Stage(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown stage: %q", s)
}

func (s Stage) String() string { return string(s) }

// IsPrerequisite reports whether this stage gates final approval.
func (s Stage) IsPrerequisite() bool {
	return s == StageDocumentVerification || s == StageFinancialReview || s == StageAcademicReview
}
