// Package stagestatus maintains the current StageStatus per (application,
// stage) pair. It is a denormalized cache of the latest ledger entry per
// stage; history lives in the ledger store.
package stagestatus

import (
	"context"
	"sync"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
)

type pairKey struct {
	app   id.ApplicationID
	stage id.Stage
}

// InMemory keeps stage snapshots in a map guarded by a RWMutex.
type InMemory struct {
	mu       sync.RWMutex
	statuses map[pairKey]models.StageStatus
}

// NewInMemory builds an empty in-memory stage status store.
func NewInMemory() *InMemory {
	return &InMemory{statuses: make(map[pairKey]models.StageStatus)}
}

// Get returns the current status for one stage, defaulting to pending when no
// decision was ever recorded.
func (s *InMemory) Get(_ context.Context, appID id.ApplicationID, stage id.Stage) (models.StageStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[pairKey{appID, stage}]; ok {
		return status, nil
	}
	return models.PendingStageStatus(appID, stage), nil
}

// GetSet returns the full per-stage snapshot for an application, with pending
// defaults for stages never decided.
func (s *InMemory) GetSet(_ context.Context, appID id.ApplicationID) (models.StageStatusSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := models.NewStageStatusSet(appID)
	for _, stage := range id.Stages() {
		if status, ok := s.statuses[pairKey{appID, stage}]; ok {
			set[stage] = status
		}
	}
	return set, nil
}

// Apply overwrites the current status for the decision's stage. It never
// looks at other stages.
func (s *InMemory) Apply(_ context.Context, status models.StageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[pairKey{status.ApplicationID, status.Stage}] = status
	return nil
}
