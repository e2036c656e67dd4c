// Package domain holds shared domain primitives: typed identifiers that make
// cross-entity mixups a compile error instead of a runtime bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "bursary/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types prevent an ApplicationID from being
// passed where a ReviewerID is expected.
type (
	// ApplicationID identifies a scholarship application.
	ApplicationID uuid.UUID

	// ReviewerID identifies a committee member performing reviews.
	ReviewerID uuid.UUID

	// DecisionID identifies a single ledger entry.
	DecisionID uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Enforced at trust boundaries (HTTP parsing, claims).
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseApplicationID validates and returns an ApplicationID.
func ParseApplicationID(s string) (ApplicationID, error) {
	parsed, err := parseUUID(s, "application id")
	if err != nil {
		return ApplicationID{}, err
	}
	return ApplicationID(parsed), nil
}

// ParseReviewerID validates and returns a ReviewerID.
func ParseReviewerID(s string) (ReviewerID, error) {
	parsed, err := parseUUID(s, "reviewer id")
	if err != nil {
		return ReviewerID{}, err
	}
	return ReviewerID(parsed), nil
}

// ParseDecisionID validates and returns a DecisionID.
func ParseDecisionID(s string) (DecisionID, error) {
	parsed, err := parseUUID(s, "decision id")
	if err != nil {
		return DecisionID{}, err
	}
	return DecisionID(parsed), nil
}

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ReviewerID) String() string    { return uuid.UUID(id).String() }
func (id DecisionID) String() string    { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DecisionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshaling renders IDs as canonical UUID strings. Defined types do not
// inherit uuid.UUID's methods, so without these the IDs would JSON-encode as
// raw byte arrays.

func (id ApplicationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ReviewerID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id DecisionID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *ApplicationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *ReviewerID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *DecisionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// NewApplicationID generates a fresh application identifier.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewDecisionID generates a fresh ledger entry identifier.
func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }
