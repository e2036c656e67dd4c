package handler

import (
	"strconv"
	"strings"
	"time"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// maxNotesLength bounds reviewer notes so the ledger never stores unbounded
// text.
const maxNotesLength = 4000

// IntakeRequest is the HTTP request body for POST /applications.
type IntakeRequest struct {
	Category             string `json:"category"`
	Subcategory          string `json:"subcategory"`
	RequestedAmountCents int64  `json:"requested_amount_cents"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *IntakeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Category = strings.TrimSpace(r.Category)
	r.Subcategory = strings.TrimSpace(r.Subcategory)
	if r.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "category is required")
	}
	if len(r.Category) > 100 {
		return dErrors.New(dErrors.CodeValidation, "category must be at most 100 characters")
	}
	if r.RequestedAmountCents <= 0 {
		return dErrors.New(dErrors.CodeValidation, "requested_amount_cents must be positive")
	}
	return nil
}

// DecisionRequest is the HTTP request body for POST /applications/{id}/decisions.
type DecisionRequest struct {
	Stage   string              `json:"stage"`
	Outcome string              `json:"outcome"`
	Notes   string              `json:"notes"`
	Payload models.StagePayload `json:"payload"`

	// Parsed values (populated by Validate)
	parsedStage   id.Stage
	parsedOutcome models.Outcome
}

// Validate validates and parses the request.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 4000 characters")
	}

	r.Stage = strings.TrimSpace(r.Stage)
	if r.Stage == "" {
		return dErrors.New(dErrors.CodeValidation, "stage is required")
	}
	stage, err := id.ParseStage(r.Stage)
	if err != nil {
		return err
	}
	r.parsedStage = stage

	r.Outcome = strings.TrimSpace(r.Outcome)
	if r.Outcome == "" {
		return dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	outcome, err := models.ParseOutcome(r.Outcome)
	if err != nil {
		return err
	}
	r.parsedOutcome = outcome

	for item := range r.Payload.Checklist {
		if !knownChecklistItem(item) {
			return dErrors.Newf(dErrors.CodeValidation, "unknown checklist item: %q", item)
		}
	}
	return nil
}

// ParsedStage returns the validated stage.
func (r *DecisionRequest) ParsedStage() id.Stage { return r.parsedStage }

// ParsedOutcome returns the validated outcome.
func (r *DecisionRequest) ParsedOutcome() models.Outcome { return r.parsedOutcome }

func knownChecklistItem(item models.ChecklistItem) bool {
	for _, known := range models.RequiredChecklist() {
		if item == known {
			return true
		}
	}
	return false
}

// WithdrawRequest is the HTTP request body for POST /applications/{id}/withdraw.
type WithdrawRequest struct {
	Notes string `json:"notes"`
}

// Validate implements the Validatable interface.
func (r *WithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 4000 characters")
	}
	return nil
}

// ReopenRequest is the HTTP request body for the administrative reopen route.
type ReopenRequest struct {
	Notes string `json:"notes"`
}

// Validate implements the Validatable interface.
func (r *ReopenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Notes == "" {
		return dErrors.New(dErrors.CodeMissingReason, "notes are required to reopen a stage")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 4000 characters")
	}
	return nil
}

// parseLedgerFilter reads the optional /decisions query parameters. Timestamps
// are RFC 3339.
func parseLedgerFilter(stage, outcome, from, to, limit string) (models.LedgerFilter, error) {
	var filter models.LedgerFilter

	if stage != "" {
		parsed, err := id.ParseStage(stage)
		if err != nil {
			return filter, err
		}
		filter.Stage = &parsed
	}
	if outcome != "" {
		parsed, err := models.ParseOutcome(outcome)
		if err != nil {
			return filter, err
		}
		filter.Outcome = &parsed
	}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "from must be an RFC 3339 timestamp")
		}
		filter.From = &t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "to must be an RFC 3339 timestamp")
		}
		filter.To = &t
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return filter, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		filter.Limit = n
	}
	return filter, nil
}
