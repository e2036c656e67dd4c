package models

import (
	"time"

	id "bursary/pkg/domain"
)

// EventType classifies domain events emitted by the review service.
type EventType string

const (
	EventApplicationSubmitted EventType = "application_submitted"
	EventStageDecided         EventType = "stage_decided"
	EventStageReopened        EventType = "stage_reopened"
	EventApplicationApproved  EventType = "application_approved"
	EventApplicationRejected  EventType = "application_rejected"
	EventApplicationWithdrawn EventType = "application_withdrawn"
)

// Event is emitted by the review service after a transaction commits. It
// replaces the legacy console's in-process notification singleton with an
// explicit, typed message consumed by the external notification collaborator.
// Delivery is fire-and-forget: a failed emit never blocks the state
// transition that produced it.
type Event struct {
	Type              EventType        `json:"type"`
	ApplicationID     id.ApplicationID `json:"application_id"`
	ApplicationNumber string           `json:"application_number"`
	Stage             id.Stage         `json:"stage,omitempty"`
	Outcome           Outcome          `json:"outcome,omitempty"`
	OverallStatus     OverallStatus    `json:"overall_status"`
	ReviewerID        id.ReviewerID    `json:"reviewer_id,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}
