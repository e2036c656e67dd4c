package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
)

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	appID id.ApplicationID
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.appID = id.ApplicationID(uuid.New())
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) decision(stage id.Stage, outcome models.Outcome, at time.Time) models.StageDecision {
	return models.StageDecision{
		ID:            id.NewDecisionID(),
		ApplicationID: s.appID,
		Stage:         stage,
		Type:          models.DecisionStage,
		Outcome:       outcome,
		ReviewerID:    id.ReviewerID(uuid.New()),
		CreatedAt:     at,
	}
}

func (s *LedgerStoreSuite) TestAppendPreservesOrder() {
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	first := s.decision(id.StageDocumentVerification, models.OutcomeRejected, base)
	second := s.decision(id.StageDocumentVerification, models.OutcomeApproved, base.Add(time.Minute))

	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	entries, err := s.store.ListFor(s.ctx, s.appID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.ID, entries[0].ID)
	s.Equal(second.ID, entries[1].ID)

	// Both verdicts for the stage survive; nothing was overwritten.
	s.Equal(models.OutcomeRejected, entries[0].Outcome)
	s.Equal(models.OutcomeApproved, entries[1].Outcome)
}

func (s *LedgerStoreSuite) TestListForUnknownApplication() {
	entries, err := s.store.ListFor(s.ctx, id.ApplicationID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *LedgerStoreSuite) TestListAllFilters() {
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	docReject := s.decision(id.StageDocumentVerification, models.OutcomeRejected, base)
	finApprove := s.decision(id.StageFinancialReview, models.OutcomeApproved, base.Add(time.Hour))
	acadApprove := s.decision(id.StageAcademicReview, models.OutcomeApproved, base.Add(2*time.Hour))

	for _, d := range []models.StageDecision{docReject, finApprove, acadApprove} {
		s.Require().NoError(s.store.Append(s.ctx, d))
	}

	s.Run("by outcome", func() {
		outcome := models.OutcomeApproved
		entries, err := s.store.ListAll(s.ctx, models.LedgerFilter{Outcome: &outcome})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(finApprove.ID, entries[0].ID)
	})

	s.Run("by stage", func() {
		stage := id.StageDocumentVerification
		entries, err := s.store.ListAll(s.ctx, models.LedgerFilter{Stage: &stage})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(docReject.ID, entries[0].ID)
	})

	s.Run("by time window", func() {
		from := base.Add(30 * time.Minute)
		to := base.Add(90 * time.Minute)
		entries, err := s.store.ListAll(s.ctx, models.LedgerFilter{From: &from, To: &to})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(finApprove.ID, entries[0].ID)
	})

	s.Run("with limit", func() {
		entries, err := s.store.ListAll(s.ctx, models.LedgerFilter{Limit: 2})
		s.Require().NoError(err)
		s.Len(entries, 2)
	})
}
