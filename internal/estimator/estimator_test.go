package estimator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

// correlatedSample draws T bivariate observations with the given correlation
func correlatedSample(rng *rand.Rand, t int, rho float64) [][]float64 {
	out := make([][]float64, t)
	for i := 0; i < t; i++ {
		z1 := rng.NormFloat64()
		z2 := rho*z1 + math.Sqrt(1-rho*rho)*rng.NormFloat64()
		out[i] = []float64{0.01 * z1, 0.012 * z2}
	}
	return out
}

func TestLedoitWolfIntensityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, obs := range []int{20, 60, 250} {
		res, err := LedoitWolf(correlatedSample(rng, obs, 0.4))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Intensity, 0.0)
		assert.LessOrEqual(t, res.Intensity, 1.0)
		assert.True(t, matrix.IsPositiveDefinite(res.Correlation),
			"shrunk correlation must factor cleanly (obs=%d)", obs)
	}
}

func TestLedoitWolfRecoversCorrelationSign(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	res, err := LedoitWolf(correlatedSample(rng, 500, 0.6))
	require.NoError(t, err)

	assert.Greater(t, res.Correlation[0][1], 0.3)
	assert.Less(t, res.Correlation[0][1], 0.9)
	assert.Greater(t, res.AverageCorrelation, 0.0)
}

func TestLedoitWolfInputValidation(t *testing.T) {
	_, err := LedoitWolf(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))

	_, err = LedoitWolf([][]float64{{0.01, 0.02}, {0.01}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}

func TestShrinkToConstantCorrelationEndpoints(t *testing.T) {
	corr := [][]float64{
		{1.0, 0.8, 0.2},
		{0.8, 1.0, 0.4},
		{0.2, 0.4, 1.0},
	}
	avg := (0.8 + 0.2 + 0.4) / 3

	// Intensity 1.0: every off-diagonal equals the average correlation
	full, used := ShrinkToConstantCorrelation(corr, 1.0)
	assert.Equal(t, 1.0, used)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				assert.Equal(t, 1.0, full[i][j])
			} else {
				assert.InDelta(t, avg, full[i][j], 1e-12)
			}
		}
	}

	// Near-zero positive intensity: result stays close to the sample
	slight, used := ShrinkToConstantCorrelation(corr, 1e-9)
	assert.InDelta(t, 1e-9, used, 1e-12)
	assert.InDelta(t, corr[0][1], slight[0][1], 1e-6)
}

func TestShrinkHeuristicIntensity(t *testing.T) {
	corr := [][]float64{
		{1.0, 0.5},
		{0.5, 1.0},
	}
	_, used := ShrinkToConstantCorrelation(corr, 0)
	assert.InDelta(t, 0.1+2.0/100.0, used, 1e-12)

	big := make([][]float64, 80)
	for i := range big {
		big[i] = make([]float64, 80)
		big[i][i] = 1.0
	}
	_, used = ShrinkToConstantCorrelation(big, 0)
	assert.Equal(t, 0.5, used, "heuristic caps at 0.5")
}

func TestEWMACorrelationOfIdenticalSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	obs := make([][]float64, 200)
	for i := range obs {
		r := 0.01 * rng.NormFloat64()
		obs[i] = []float64{r, r}
	}

	corr, err := EWMACorrelation(obs, 30)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr[0][1], 1e-9)
}

func TestEWMARecentObservationsDominate(t *testing.T) {
	// First half strongly positive co-movement, second half strongly negative.
	// A short half-life must let the recent negative regime win.
	obs := make([][]float64, 200)
	for i := range obs {
		x := 0.01
		if i%2 == 0 {
			x = -0.01
		}
		if i < 100 {
			obs[i] = []float64{x, x}
		} else {
			obs[i] = []float64{x, -x}
		}
	}

	corr, err := EWMACorrelation(obs, 10)
	require.NoError(t, err)
	assert.Less(t, corr[0][1], -0.9)
}

func TestEWMAInvalidHalfLife(t *testing.T) {
	_, err := EWMACovariance([][]float64{{0.01}, {0.02}}, 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}
