package reporting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bursary/internal/review/models"
	"bursary/internal/review/ports"
	applicationstore "bursary/internal/review/store/application"
	ledgerstore "bursary/internal/review/store/ledger"
	stagestatusstore "bursary/internal/review/store/stagestatus"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

type mapDirectory struct {
	reviewers map[id.ReviewerID]ports.Reviewer
	fail      bool
}

func (d *mapDirectory) Lookup(_ context.Context, reviewerID id.ReviewerID) (ports.Reviewer, error) {
	if d.fail {
		return ports.Reviewer{}, fmt.Errorf("directory unavailable")
	}
	reviewer, ok := d.reviewers[reviewerID]
	if !ok {
		return ports.Reviewer{}, fmt.Errorf("no such reviewer")
	}
	return reviewer, nil
}

type fixture struct {
	apps      *applicationstore.InMemory
	stages    *stagestatusstore.InMemory
	ledger    *ledgerstore.InMemory
	app       *models.Application
	reviewer  id.ReviewerID
	directory *mapDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	app, err := models.NewApplication(
		id.NewApplicationID(), models.FormatNumber(2026, 7), "undergraduate", "", 100_000, now)
	require.NoError(t, err)

	f := &fixture{
		apps:     applicationstore.NewInMemory(),
		stages:   stagestatusstore.NewInMemory(),
		ledger:   ledgerstore.NewInMemory(),
		app:      app,
		reviewer: id.ReviewerID(uuid.New()),
	}
	f.directory = &mapDirectory{reviewers: map[id.ReviewerID]ports.Reviewer{
		f.reviewer: {ID: f.reviewer, Name: "N. Dlamini", Role: id.RoleDocumentOfficer},
	}}
	require.NoError(t, f.apps.Create(context.Background(), app))
	return f
}

func (f *fixture) projector(opts ...Option) *Projector {
	return New(f.apps, f.stages, f.ledger, opts...)
}

func (f *fixture) appendDecision(t *testing.T, stage id.Stage, outcome models.Outcome, at time.Time) models.StageDecision {
	t.Helper()
	decision := models.StageDecision{
		ID:            id.NewDecisionID(),
		ApplicationID: f.app.ID,
		Stage:         stage,
		Type:          models.DecisionStage,
		Outcome:       outcome,
		ReviewerID:    f.reviewer,
		CreatedAt:     at,
	}
	require.NoError(t, f.ledger.Append(context.Background(), decision))
	require.NoError(t, f.stages.Apply(context.Background(), decision.ToStageStatus()))
	return decision
}

func TestDecisionHistory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)

	t.Run("entries in order with reviewer names", func(t *testing.T) {
		f := newFixture(t)
		first := f.appendDecision(t, id.StageDocumentVerification, models.OutcomeRejected, base)
		second := f.appendDecision(t, id.StageFinancialReview, models.OutcomeApproved, base.Add(time.Hour))

		history, err := f.projector(WithReviewerDirectory(f.directory)).DecisionHistory(ctx, f.app.ID)
		require.NoError(t, err)
		require.Len(t, history.Entries, 2)
		require.Equal(t, first.ID, history.Entries[0].DecisionID)
		require.Equal(t, second.ID, history.Entries[1].DecisionID)
		require.Equal(t, "N. Dlamini", history.Entries[0].ReviewerName)
		require.Equal(t, f.app.Number, history.Application.Number)
	})

	t.Run("degrades to placeholder when directory fails", func(t *testing.T) {
		f := newFixture(t)
		f.directory.fail = true
		f.appendDecision(t, id.StageDocumentVerification, models.OutcomeApproved, base)

		history, err := f.projector(WithReviewerDirectory(f.directory)).DecisionHistory(ctx, f.app.ID)
		require.NoError(t, err)
		require.Equal(t, "unknown reviewer", history.Entries[0].ReviewerName)
	})

	t.Run("no directory configured", func(t *testing.T) {
		f := newFixture(t)
		f.appendDecision(t, id.StageDocumentVerification, models.OutcomeApproved, base)

		history, err := f.projector().DecisionHistory(ctx, f.app.ID)
		require.NoError(t, err)
		require.Equal(t, "unknown reviewer", history.Entries[0].ReviewerName)
	})

	t.Run("unknown application", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.projector().DecisionHistory(ctx, id.ApplicationID(uuid.New()))
		require.Error(t, err)
		require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestChecklist(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to unverified", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.projector().Checklist(ctx, f.app.ID)
		require.NoError(t, err)
		require.Equal(t, models.StagePending, view.StageStatus)
		require.False(t, view.Complete)
		require.Len(t, view.Items, len(models.RequiredChecklist()))
		for _, item := range view.Items {
			require.False(t, item.Verified)
		}
	})

	t.Run("reflects recorded checklist", func(t *testing.T) {
		f := newFixture(t)
		now := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)
		require.NoError(t, f.stages.Apply(ctx, models.StageStatus{
			ApplicationID: f.app.ID,
			Stage:         id.StageDocumentVerification,
			Status:        models.StageApproved,
			ReviewerID:    f.reviewer,
			ReviewedAt:    &now,
			Payload: models.StagePayload{Checklist: map[models.ChecklistItem]bool{
				models.ChecklistIdentityDocument:  true,
				models.ChecklistProofOfEnrollment: true,
			}},
		}))

		view, err := f.projector().Checklist(ctx, f.app.ID)
		require.NoError(t, err)
		require.False(t, view.Complete)

		verified := 0
		for _, item := range view.Items {
			if item.Verified {
				verified++
			}
		}
		require.Equal(t, 2, verified)
	})
}
