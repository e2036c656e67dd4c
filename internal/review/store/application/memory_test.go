package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	"bursary/pkg/platform/sentinel"
)

type ApplicationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ApplicationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestApplicationStoreSuite(t *testing.T) {
	suite.Run(t, new(ApplicationStoreSuite))
}

func (s *ApplicationStoreSuite) newApp(submittedAt time.Time) *models.Application {
	app, err := models.NewApplication(
		id.ApplicationID(uuid.New()),
		models.FormatNumber(submittedAt.Year(), 1),
		"undergraduate",
		"",
		150_000,
		submittedAt,
	)
	s.Require().NoError(err)
	return app
}

func (s *ApplicationStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds by id", func() {
		app := s.newApp(time.Now())
		s.Require().NoError(s.store.Create(s.ctx, app))

		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(app.Number, found.Number)
		s.Equal(models.StatusSubmitted, found.Status)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.ApplicationID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		app := s.newApp(time.Now())
		s.Require().NoError(s.store.Create(s.ctx, app))
		s.Require().ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrConflict)
	})
}

func (s *ApplicationStoreSuite) TestUpdateIsolation() {
	app := s.newApp(time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	// Mutating the caller's copy must not leak into the store.
	app.Status = models.StatusApproved
	found, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, found.Status)

	s.Require().NoError(s.store.Update(s.ctx, app))
	found, err = s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
}

func (s *ApplicationStoreSuite) TestListByStatusOrdering() {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older := s.newApp(base)
	newer := s.newApp(base.Add(2 * time.Hour))
	closed := s.newApp(base.Add(time.Hour))
	closed.Status = models.StatusApproved

	for _, app := range []*models.Application{newer, closed, older} {
		s.Require().NoError(s.store.Create(s.ctx, app))
	}

	s.Run("filters by status", func() {
		apps, err := s.store.ListByStatus(s.ctx, models.StatusSubmitted, models.StatusUnderReview)
		s.Require().NoError(err)
		s.Require().Len(apps, 2)
		s.Equal(older.ID, apps[0].ID, "oldest submission first")
		s.Equal(newer.ID, apps[1].ID)
	})

	s.Run("no filter returns everything", func() {
		apps, err := s.store.ListByStatus(s.ctx)
		s.Require().NoError(err)
		s.Len(apps, 3)
	})

	s.Run("ties break by id", func() {
		a := s.newApp(base.Add(3 * time.Hour))
		b := s.newApp(base.Add(3 * time.Hour))
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.Require().NoError(s.store.Create(s.ctx, b))

		apps, err := s.store.ListByStatus(s.ctx, models.StatusSubmitted)
		s.Require().NoError(err)
		last := apps[len(apps)-2:]
		s.True(last[0].ID.String() < last[1].ID.String())
	})
}

func (s *ApplicationStoreSuite) TestAllocateNumber() {
	seq, err := s.store.AllocateNumber(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), seq)

	seq, err = s.store.AllocateNumber(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(2), seq)

	// Years count independently.
	seq, err = s.store.AllocateNumber(s.ctx, 2027)
	s.Require().NoError(err)
	s.Equal(int64(1), seq)
}
