// Package ports defines interfaces to collaborators outside the review module.
package ports

import (
	"context"

	id "bursary/pkg/domain"
)

// Reviewer is the directory record for a committee member.
type Reviewer struct {
	ID   id.ReviewerID
	Name string
	Role id.Role
}

// ReviewerDirectory resolves reviewer IDs to directory records for display.
// Lookups are best-effort: reports degrade to a placeholder when the directory
// is unreachable, they never fail the report.
type ReviewerDirectory interface {
	Lookup(ctx context.Context, reviewerID id.ReviewerID) (Reviewer, error)
}
