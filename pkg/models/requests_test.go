package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsPatchKeepsBaseForAbsentFields(t *testing.T) {
	base := SimulationSettings{
		NumPaths:             100000,
		UseQMC:               true,
		FatTailMethod:        FatTailMultivariateT,
		DrawdownThresholdPct: 20,
		Seed:                 7,
		MaxWorkers:           8,
	}

	var nilPatch *SimulationSettingsPatch
	assert.Equal(t, base, nilPatch.Apply(base))

	paths := 5000
	merged := (&SimulationSettingsPatch{NumPaths: &paths}).Apply(base)
	assert.Equal(t, 5000, merged.NumPaths)
	assert.True(t, merged.UseQMC)
	assert.Equal(t, FatTailMultivariateT, merged.FatTailMethod)
	assert.Equal(t, int64(7), merged.Seed)
	assert.Equal(t, 8, merged.MaxWorkers)
}

func TestSettingsPatchDistinguishesFalseFromAbsent(t *testing.T) {
	base := SimulationSettings{NumPaths: 1000, UseQMC: true, Seed: 7}

	var absent SimulationSettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"num_paths": 500}`), &absent))
	merged := absent.Apply(base)
	assert.True(t, merged.UseQMC, "omitted use_qmc keeps the configured default")
	assert.Equal(t, int64(7), merged.Seed, "omitted seed keeps the configured default")

	var explicit SimulationSettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"use_qmc": false, "seed": 0}`), &explicit))
	merged = explicit.Apply(base)
	assert.False(t, merged.UseQMC, "explicit false overrides the default")
	assert.Zero(t, merged.Seed, "explicit zero overrides the default")
}
