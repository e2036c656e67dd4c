// Package reporting builds read-only projections over the decision ledger.
// Projections never mutate state; they re-derive views from the ledger and the
// current stage snapshots.
package reporting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bursary/internal/review/models"
	"bursary/internal/review/ports"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
	"bursary/pkg/platform/sentinel"
)

// unknownReviewer is the display placeholder when the directory cannot resolve
// a reviewer.
const unknownReviewer = "unknown reviewer"

type ApplicationStore interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
}

type StageStatusStore interface {
	GetSet(ctx context.Context, appID id.ApplicationID) (models.StageStatusSet, error)
}

type LedgerStore interface {
	ListFor(ctx context.Context, appID id.ApplicationID) ([]models.StageDecision, error)
}

// Projector assembles decision history and checklist views.
type Projector struct {
	applications ApplicationStore
	stageStatus  StageStatusStore
	ledger       LedgerStore
	directory    ports.ReviewerDirectory
	logger       *slog.Logger
}

type Option func(*Projector)

// WithReviewerDirectory enables reviewer name enrichment.
func WithReviewerDirectory(directory ports.ReviewerDirectory) Option {
	return func(p *Projector) {
		p.directory = directory
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = logger
	}
}

func New(applications ApplicationStore, stageStatus StageStatusStore, ledger LedgerStore, opts ...Option) *Projector {
	p := &Projector{
		applications: applications,
		stageStatus:  stageStatus,
		ledger:       ledger,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HistoryEntry is one ledger entry enriched for display.
type HistoryEntry struct {
	DecisionID   id.DecisionID       `json:"decision_id"`
	Type         models.DecisionType `json:"type"`
	Stage        id.Stage            `json:"stage,omitempty"`
	Outcome      models.Outcome      `json:"outcome,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	ReviewerID   id.ReviewerID       `json:"reviewer_id"`
	ReviewerName string              `json:"reviewer_name"`
	At           time.Time           `json:"at"`
}

// History is the complete review trail of one application.
type History struct {
	Application models.Summary `json:"application"`
	Entries     []HistoryEntry `json:"entries"`
}

// DecisionHistory returns every ledger entry for an application in order,
// oldest first, with reviewer names resolved where the directory allows.
func (p *Projector) DecisionHistory(ctx context.Context, appID id.ApplicationID) (*History, error) {
	app, err := p.applications.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load application")
	}

	decisions, err := p.ledger.ListFor(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load decision history")
	}

	entries := make([]HistoryEntry, 0, len(decisions))
	for _, d := range decisions {
		entries = append(entries, HistoryEntry{
			DecisionID:   d.ID,
			Type:         d.Type,
			Stage:        d.Stage,
			Outcome:      d.Outcome,
			Notes:        d.Notes,
			ReviewerID:   d.ReviewerID,
			ReviewerName: p.reviewerName(ctx, d.ReviewerID),
			At:           d.CreatedAt,
		})
	}
	return &History{Application: app.ToSummary(), Entries: entries}, nil
}

// reviewerName resolves a reviewer for display. Directory failures degrade to
// a placeholder so the history always renders.
func (p *Projector) reviewerName(ctx context.Context, reviewerID id.ReviewerID) string {
	if reviewerID.IsNil() {
		return ""
	}
	if p.directory == nil {
		return unknownReviewer
	}
	reviewer, err := p.directory.Lookup(ctx, reviewerID)
	if err != nil {
		p.logger.WarnContext(ctx, "reviewer lookup failed, using placeholder",
			"reviewer_id", reviewerID.String(),
			"error", err,
		)
		return unknownReviewer
	}
	return reviewer.Name
}

// ChecklistEntry is one document checklist item with its verification state.
type ChecklistEntry struct {
	Item     models.ChecklistItem `json:"item"`
	Verified bool                 `json:"verified"`
}

// ChecklistView shows the document verification lane: the canonical checklist
// against what the document officer recorded.
type ChecklistView struct {
	ApplicationID id.ApplicationID        `json:"application_id"`
	StageStatus   models.StageStatusValue `json:"stage_status"`
	Items         []ChecklistEntry        `json:"items"`
	Complete      bool                    `json:"complete"`
}

// Checklist projects the document verification checklist for an application.
// Items never recorded default to unverified.
func (p *Projector) Checklist(ctx context.Context, appID id.ApplicationID) (*ChecklistView, error) {
	if _, err := p.applications.FindByID(ctx, appID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load application")
	}

	set, err := p.stageStatus.GetSet(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage statuses")
	}
	docStage := set.Get(appID, id.StageDocumentVerification)

	view := &ChecklistView{
		ApplicationID: appID,
		StageStatus:   docStage.Status,
		Complete:      true,
	}
	for _, item := range models.RequiredChecklist() {
		verified := docStage.Payload.Checklist[item]
		if !verified {
			view.Complete = false
		}
		view.Items = append(view.Items, ChecklistEntry{Item: item, Verified: verified})
	}
	return view, nil
}
