// Package store provides the in-memory persistence layer: portfolio
// snapshots keyed by ID, and per-portfolio result retention where a new
// simulation supersedes the latest result and the superseded one is kept
// for comparison.
package store

import (
	"sync"

	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// InMemorySnapshotStore implements in-memory portfolio snapshot storage
type InMemorySnapshotStore struct {
	snapshots map[string]*models.PortfolioSnapshot
	mu        sync.RWMutex
	log       *logger.Logger
}

// NewInMemorySnapshotStore creates a new in-memory snapshot store
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[string]*models.PortfolioSnapshot),
		log:       logger.GetLogger("store.snapshot"),
	}
}

// Get retrieves a snapshot by portfolio ID
func (s *InMemorySnapshotStore) Get(id string) (*models.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, errors.NotFound("portfolio snapshot not found: " + id)
	}
	return snap, nil
}

// GetAll returns all stored snapshots
func (s *InMemorySnapshotStore) GetAll() []*models.PortfolioSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.PortfolioSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}

// Save stores or replaces a snapshot
func (s *InMemorySnapshotStore) Save(snap *models.PortfolioSnapshot) error {
	if snap == nil {
		return errors.InvalidInput("cannot save nil snapshot")
	}
	if snap.ID == "" {
		return errors.InvalidInput("snapshot ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.ID] = snap
	return nil
}

// Delete removes a snapshot by portfolio ID
func (s *InMemorySnapshotStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[id]; !exists {
		return errors.NotFound("portfolio snapshot not found: " + id)
	}
	delete(s.snapshots, id)
	return nil
}
