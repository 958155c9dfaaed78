package store

import (
	"sync"

	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// ResultStore retains simulation results per portfolio. Saving supersedes
// the latest result and demotes it to the previous slot; only those two
// generations are kept.
type ResultStore struct {
	latest   map[string]*models.SimulationResult
	previous map[string]*models.SimulationResult
	mu       sync.RWMutex
	log      *logger.Logger
}

// NewResultStore creates a new result store
func NewResultStore() *ResultStore {
	return &ResultStore{
		latest:   make(map[string]*models.SimulationResult),
		previous: make(map[string]*models.SimulationResult),
		log:      logger.GetLogger("store.results"),
	}
}

// Save records a completed run for a portfolio, demoting the prior result
func (s *ResultStore) Save(portfolioID string, result *models.SimulationResult) error {
	if result == nil {
		return errors.InvalidInput("cannot save nil result")
	}
	if portfolioID == "" {
		return errors.InvalidInput("portfolio ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, exists := s.latest[portfolioID]; exists {
		s.previous[portfolioID] = prior
	}
	s.latest[portfolioID] = result
	return nil
}

// Latest returns the most recent result for a portfolio
func (s *ResultStore) Latest(portfolioID string) (*models.SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.latest[portfolioID]
	if !exists {
		return nil, errors.NotFound("no simulation result for portfolio: " + portfolioID)
	}
	return result, nil
}

// Previous returns the superseded result for a portfolio, if one exists
func (s *ResultStore) Previous(portfolioID string) (*models.SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.previous[portfolioID]
	if !exists {
		return nil, errors.NotFound("no previous simulation result for portfolio: " + portfolioID)
	}
	return result, nil
}
