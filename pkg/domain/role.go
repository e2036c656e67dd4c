package domain

import (
	dErrors "bursary/pkg/domain-errors"
)

// Role identifies a committee capability. Capability resolution lives here, in
// one place, instead of being re-derived per screen: a role maps to the set of
// stages it may decide.
type Role string

const (
	RoleDocumentOfficer  Role = "document_officer"
	RoleFinancialOfficer Role = "financial_officer"
	RoleAcademicOfficer  Role = "academic_officer"
	RoleChairperson      Role = "chairperson"
	RoleAdmin            Role = "admin"
)

// roleStages is the single source of truth for role capabilities.
var roleStages = map[Role][]Stage{
	RoleDocumentOfficer:  {StageDocumentVerification},
	RoleFinancialOfficer: {StageFinancialReview},
	RoleAcademicOfficer:  {StageAcademicReview},
	RoleChairperson:      {StageFinalApproval},
	RoleAdmin: {
		StageDocumentVerification,
		StageFinancialReview,
		StageAcademicReview,
		StageFinalApproval,
	},
}

// ParseRole validates a role received at a trust boundary.
func ParseRole(s string) (Role, error) {
	if _, ok := roleStages[Role(s)]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role: %q", s)
	}
	return Role(s), nil
}

func (r Role) String() string { return string(r) }

// Stages returns the stages this role may decide.
func (r Role) Stages() []Stage {
	stages := roleStages[r]
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// CanDecide reports whether the role is allowed to decide the given stage.
func (r Role) CanDecide(stage Stage) bool {
	for _, s := range roleStages[r] {
		if s == stage {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries administrative capabilities
// (reopen, unrestricted queue access).
func (r Role) IsAdmin() bool { return r == RoleAdmin }
