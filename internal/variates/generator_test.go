package variates

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/models"
)

func twoAssetFactor(rho float64) [][]float64 {
	return matrix.Cholesky([][]float64{
		{1, rho},
		{rho, 1},
	})
}

func standardParams(df float64) []models.AssetDistributionParams {
	return []models.AssetDistributionParams{
		{Mu: 0, Sigma: 1, Skew: 0, DF: df},
		{Mu: 0, Sigma: 1, Skew: 0, DF: df},
	}
}

func sampleCorrelation(g *Generator, paths int) float64 {
	a := make([]float64, paths)
	b := make([]float64, paths)
	for i := 0; i < paths; i++ {
		r := g.Next()
		a[i] = r[0]
		b[i] = r[1]
	}
	return stat.Correlation(a, b, nil)
}

func TestMultivariateTPreservesCorrelation(t *testing.T) {
	const (
		rho   = 0.5
		df    = 5.0
		paths = 200000
	)
	factor := twoAssetFactor(rho)

	mvt := NewGenerator(factor, standardParams(df), models.FatTailMultivariateT, 42)
	mvtCorr := sampleCorrelation(mvt, paths)
	assert.InDelta(t, rho, mvtCorr, 0.02,
		"shared-factor scaling must preserve Pearson correlation")

	// The per-asset copula attenuates the same target correlation
	copula := NewGenerator(factor, standardParams(df), models.FatTailPerAssetT, 42)
	copulaCorr := sampleCorrelation(copula, paths)
	assert.Less(t, copulaCorr, mvtCorr-0.005,
		"copula correlation should be measurably below the multivariate-t one")
}

func TestGaussianMomentsMatchParams(t *testing.T) {
	params := []models.AssetDistributionParams{
		{Mu: 0.08, Sigma: 0.15, Skew: 0, DF: 30},
	}
	factor := matrix.Cholesky([][]float64{{1}})
	g := NewGenerator(factor, params, models.FatTailNone, 7)

	const paths = 100000
	draws := make([]float64, paths)
	for i := range draws {
		draws[i] = g.Next()[0]
	}
	mean, std := stat.MeanStdDev(draws, nil)
	assert.InDelta(t, 0.08, mean, 0.002)
	assert.InDelta(t, 0.15, std, 0.002)
}

func TestReturnsAlwaysBounded(t *testing.T) {
	params := []models.AssetDistributionParams{
		{Mu: 0.5, Sigma: 3.0, Skew: 2, DF: 3},
		{Mu: -0.5, Sigma: 3.0, Skew: -2, DF: 3},
	}
	factor := twoAssetFactor(0.9)

	for _, method := range []models.FatTailMethod{models.FatTailNone, models.FatTailPerAssetT, models.FatTailMultivariateT} {
		g := NewGenerator(factor, params, method, 1)
		for i := 0; i < 20000; i++ {
			for _, r := range g.Next() {
				require.False(t, math.IsNaN(r))
				require.GreaterOrEqual(t, r, -1.0)
				require.LessOrEqual(t, r, 10.0)
			}
		}
	}
}

func TestSkewTransformShiftsTail(t *testing.T) {
	params := []models.AssetDistributionParams{{Mu: 0, Sigma: 1, Skew: 1.5, DF: 30}}
	factor := matrix.Cholesky([][]float64{{1}})
	g := NewGenerator(factor, params, models.FatTailNone, 9)

	const paths = 100000
	draws := make([]float64, paths)
	for i := range draws {
		draws[i] = g.Next()[0]
	}
	assert.Greater(t, stat.Skew(draws, nil), 0.1, "positive skew parameter must fatten the right tail")
}

func TestChiSquaredDrawMean(t *testing.T) {
	g := NewGenerator(twoAssetFactor(0), standardParams(5), models.FatTailMultivariateT, 3)

	sum := 0.0
	const draws = 50000
	for i := 0; i < draws; i++ {
		chi := g.drawChiSquared()
		require.GreaterOrEqual(t, chi, chiSquaredFloor)
		sum += chi
	}
	assert.InDelta(t, g.SharedDF(), sum/draws, 0.1)
}

func TestInflationFactor(t *testing.T) {
	assert.Greater(t, InflationFactor(4), 1.0)
	assert.GreaterOrEqual(t, InflationFactor(4), InflationFactor(10))
	assert.InDelta(t, 1.0, InflationFactor(200), 0.01)
	assert.LessOrEqual(t, InflationFactor(2.5), 1.5)
}

func TestParamsFromAnchorsGaussian(t *testing.T) {
	// Anchors of a plain N(0.05, 0.10): quantiles at z = ±1.645, ±0.674
	a := models.PercentileAnchors{
		P5:  0.05 - 1.645*0.10,
		P25: 0.05 - 0.674*0.10,
		P50: 0.05,
		P75: 0.05 + 0.674*0.10,
		P95: 0.05 + 1.645*0.10,
	}
	p := ParamsFromAnchors(a)

	assert.InDelta(t, 0.10, p.Sigma, 0.005)
	assert.InDelta(t, 0.0, p.Skew, 0.05)
	assert.InDelta(t, 0.05, p.Mu, 0.01)
	assert.InDelta(t, 30.0, p.DF, 0.5, "normal tails map to the Gaussian end")
}

func TestParamsFromAnchorsFatTails(t *testing.T) {
	// Same IQR as the Gaussian case but a much wider 90% spread
	a := models.PercentileAnchors{
		P5:  -0.40,
		P25: -0.0174,
		P50: 0.05,
		P75: 0.1174,
		P95: 0.50,
	}
	p := ParamsFromAnchors(a)
	assert.Less(t, p.DF, 10.0, "excess tail spread must back-solve to heavy tails")
	assert.GreaterOrEqual(t, p.DF, 3.0)
}

func TestParamsFromAnchorsDegenerate(t *testing.T) {
	p := ParamsFromAnchors(models.PercentileAnchors{})
	assert.Equal(t, fallbackSigma, p.Sigma)
	assert.Equal(t, 0.0, p.Skew)
	assert.Equal(t, maxDF, p.DF)
	assert.Equal(t, 0.0, p.Mu)
}

func TestParamsFromAnchorsSkewed(t *testing.T) {
	a := models.PercentileAnchors{
		P5:  -0.10,
		P25: -0.02,
		P50: 0.02,
		P75: 0.08,
		P95: 0.30,
	}
	p := ParamsFromAnchors(a)
	assert.Greater(t, p.Skew, 0.0, "longer right tail implies positive skew")
}
