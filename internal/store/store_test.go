package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	s := NewInMemorySnapshotStore()

	snap := &models.PortfolioSnapshot{ID: "alpha", PortfolioValue: 1000}
	require.NoError(t, s.Save(snap))

	got, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	assert.Len(t, s.GetAll(), 1)

	require.NoError(t, s.Delete("alpha"))
	_, err = s.Get("alpha")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestSnapshotStoreRejectsInvalid(t *testing.T) {
	s := NewInMemorySnapshotStore()
	assert.True(t, errors.IsType(s.Save(nil), errors.ErrorTypeInvalidInput))
	assert.True(t, errors.IsType(s.Save(&models.PortfolioSnapshot{}), errors.ErrorTypeInvalidInput))
	assert.True(t, errors.IsType(s.Delete("missing"), errors.ErrorTypeNotFound))
}

func TestResultStoreRetainsTwoGenerations(t *testing.T) {
	s := NewResultStore()

	_, err := s.Latest("alpha")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	first := &models.SimulationResult{NumPaths: 1000}
	second := &models.SimulationResult{NumPaths: 2000}
	third := &models.SimulationResult{NumPaths: 3000}

	require.NoError(t, s.Save("alpha", first))
	latest, err := s.Latest("alpha")
	require.NoError(t, err)
	assert.Equal(t, first, latest)
	_, err = s.Previous("alpha")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, s.Save("alpha", second))
	require.NoError(t, s.Save("alpha", third))

	latest, err = s.Latest("alpha")
	require.NoError(t, err)
	assert.Equal(t, third, latest)

	prev, err := s.Previous("alpha")
	require.NoError(t, err)
	assert.Equal(t, second, prev, "only the immediately superseded result is retained")
}
