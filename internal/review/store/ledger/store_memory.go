// Package ledger is the append-only history of every reviewer action. Entries
// are never modified or deleted; the ledger is the source of truth for audit
// and export, and the stage status store is a cache derived from it.
package ledger

import (
	"context"
	"sync"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
)

// InMemory appends decisions to a per-application slice guarded by a RWMutex.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.ApplicationID][]models.StageDecision
	order   []models.StageDecision
}

// NewInMemory builds an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.ApplicationID][]models.StageDecision)}
}

// Append records a decision. The store offers no update or delete.
func (s *InMemory) Append(_ context.Context, decision models.StageDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[decision.ApplicationID] = append(s.entries[decision.ApplicationID], decision)
	s.order = append(s.order, decision)
	return nil
}

// ListFor returns every entry for one application in creation order, oldest
// first.
func (s *InMemory) ListFor(_ context.Context, appID id.ApplicationID) ([]models.StageDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.StageDecision{}, s.entries[appID]...), nil
}

// ListAll returns entries across applications matching the filter, oldest
// first.
func (s *InMemory) ListAll(_ context.Context, filter models.LedgerFilter) ([]models.StageDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StageDecision
	for _, decision := range s.order {
		if !filter.Matches(decision) {
			continue
		}
		out = append(out, decision)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
