//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bursary/internal/review/models"
	applicationstore "bursary/internal/review/store/application"
	"bursary/internal/review/store/ledger"
	id "bursary/pkg/domain"
	"bursary/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.Postgres
	apps     *applicationstore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
	s.apps = applicationstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"stage_decisions", "stage_statuses", "applications", "application_numbers")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createApplication() id.ApplicationID {
	now := time.Now().UTC().Truncate(time.Microsecond)
	app := &models.Application{
		ID:                   id.NewApplicationID(),
		Number:               "SSC-2026-" + uuid.NewString()[:6],
		Category:             "undergraduate",
		RequestedAmountCents: 150_000,
		Status:               models.StatusUnderReview,
		SubmittedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.Require().NoError(s.apps.Create(context.Background(), app))
	return app.ID
}

func stageEntry(appID id.ApplicationID, stage id.Stage, outcome models.Outcome, at time.Time) models.StageDecision {
	return models.StageDecision{
		ID:            id.NewDecisionID(),
		ApplicationID: appID,
		Stage:         stage,
		Type:          models.DecisionStage,
		Outcome:       outcome,
		Notes:         "reviewed",
		ReviewerID:    id.ReviewerID(uuid.New()),
		CreatedAt:     at.UTC().Truncate(time.Microsecond),
	}
}

// TestAppendPreservesEveryEntry verifies a later decision on the same stage
// never replaces the earlier one in the ledger.
func (s *PostgresStoreSuite) TestAppendPreservesEveryEntry() {
	ctx := context.Background()
	appID := s.createApplication()
	base := time.Now().Add(-time.Hour)

	rejection := stageEntry(appID, id.StageFinancialReview, models.OutcomeRejected, base)
	approval := stageEntry(appID, id.StageFinancialReview, models.OutcomeApproved, base.Add(time.Minute))
	s.Require().NoError(s.store.Append(ctx, rejection))
	s.Require().NoError(s.store.Append(ctx, approval))

	entries, err := s.store.ListFor(ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(rejection.ID, entries[0].ID)
	s.Equal(models.OutcomeRejected, entries[0].Outcome)
	s.Equal(approval.ID, entries[1].ID)
	s.Equal(models.OutcomeApproved, entries[1].Outcome)
}

func (s *PostgresStoreSuite) TestListForUnknownApplicationEmpty() {
	ctx := context.Background()
	entries, err := s.store.ListFor(ctx, id.NewApplicationID())
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *PostgresStoreSuite) TestNonStageEntriesRoundtrip() {
	ctx := context.Background()
	appID := s.createApplication()
	now := time.Now().UTC().Truncate(time.Microsecond)

	withdrawal := models.StageDecision{
		ID:            id.NewDecisionID(),
		ApplicationID: appID,
		Type:          models.DecisionWithdrawn,
		Notes:         "applicant accepted another award",
		ReviewerID:    id.ReviewerID(uuid.New()),
		CreatedAt:     now,
	}
	s.Require().NoError(s.store.Append(ctx, withdrawal))

	entries, err := s.store.ListFor(ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(models.DecisionWithdrawn, entries[0].Type)
	s.Empty(string(entries[0].Stage))
	s.Empty(string(entries[0].Outcome))
	s.Equal("applicant accepted another award", entries[0].Notes)
}

func (s *PostgresStoreSuite) TestListAllFilters() {
	ctx := context.Background()
	appID := s.createApplication()
	base := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Microsecond)

	docApproved := stageEntry(appID, id.StageDocumentVerification, models.OutcomeApproved, base)
	finRejected := stageEntry(appID, id.StageFinancialReview, models.OutcomeRejected, base.Add(30*time.Minute))
	acaApproved := stageEntry(appID, id.StageAcademicReview, models.OutcomeApproved, base.Add(time.Hour))
	for _, entry := range []models.StageDecision{docApproved, finRejected, acaApproved} {
		s.Require().NoError(s.store.Append(ctx, entry))
	}

	s.Run("by stage", func() {
		stage := id.StageFinancialReview
		entries, err := s.store.ListAll(ctx, models.LedgerFilter{Stage: &stage})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(finRejected.ID, entries[0].ID)
	})

	s.Run("by outcome", func() {
		outcome := models.OutcomeApproved
		entries, err := s.store.ListAll(ctx, models.LedgerFilter{Outcome: &outcome})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(docApproved.ID, entries[0].ID)
		s.Equal(acaApproved.ID, entries[1].ID)
	})

	s.Run("by time window", func() {
		from := base.Add(15 * time.Minute)
		to := base.Add(45 * time.Minute)
		entries, err := s.store.ListAll(ctx, models.LedgerFilter{From: &from, To: &to})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(finRejected.ID, entries[0].ID)
	})

	s.Run("with limit", func() {
		entries, err := s.store.ListAll(ctx, models.LedgerFilter{Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(docApproved.ID, entries[0].ID)
		s.Equal(finRejected.ID, entries[1].ID)
	})

	s.Run("no filter returns all", func() {
		entries, err := s.store.ListAll(ctx, models.LedgerFilter{})
		s.Require().NoError(err)
		s.Len(entries, 3)
	})
}
