// Package application persists Application records. The in-memory store backs
// unit tests and local development; the postgres store is the production
// implementation. Both honor the same sentinel error contract.
package application

import (
	"context"
	"sort"
	"sync"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	"bursary/pkg/platform/sentinel"
)

// InMemory stores applications in a map guarded by a RWMutex.
type InMemory struct {
	mu      sync.RWMutex
	apps    map[id.ApplicationID]*models.Application
	numbers map[int]int64
}

// NewInMemory builds an empty in-memory application store.
func NewInMemory() *InMemory {
	return &InMemory{
		apps:    make(map[id.ApplicationID]*models.Application),
		numbers: make(map[int]int64),
	}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *app
	s.apps[app.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *app
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *app
	s.apps[app.ID] = &clone
	return nil
}

// ListByStatus returns applications in any of the given statuses (all
// applications when none are given), ordered oldest-submitted-first with the
// id as a deterministic tie-break.
func (s *InMemory) ListByStatus(_ context.Context, statuses ...models.OverallStatus) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[models.OverallStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	var out []*models.Application
	for _, app := range s.apps {
		if len(wanted) > 0 && !wanted[app.Status] {
			continue
		}
		clone := *app
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// AllocateNumber hands out the next application sequence number for a year.
func (s *InMemory) AllocateNumber(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[year]++
	return s.numbers[year], nil
}
