// Package variates produces independent and cross-asset-correlated random
// return draws under four interchangeable models: plain Gaussian, a Gaussian
// copula with per-asset Student-t marginals, a shared-factor multivariate
// Student-t, and an optional skew reshaping applied after either.
package variates

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfolio/risk-engine/pkg/models"
)

const (
	// copulaClamp bounds the per-asset t-transformed draw pre-scaling
	copulaClamp = 6.0
	// mvtClamp bounds the shared-factor scaled draw pre-scaling
	mvtClamp = 8.0
	// minReturn and maxReturn bound the final per-asset return
	minReturn = -1.0
	maxReturn = 10.0

	// chiSquaredFloor avoids division by zero in the tail-fattening factor
	chiSquaredFloor = 0.01
	// exactChiSquaredMaxDF is the df above which the normal approximation
	// replaces the sum-of-squared-normals construction
	exactChiSquaredMaxDF = 100.0
)

// Generator draws correlated return vectors. It carries its own rng so
// parallel execution units can each own an independent, seeded instance.
type Generator struct {
	rng      *rand.Rand
	factor   [][]float64
	params   []models.AssetDistributionParams
	method   models.FatTailMethod
	sharedDF float64
	z        []float64
	x        []float64
}

// NewGenerator creates a generator over the given Cholesky factor and
// per-asset distribution parameters. The shared multivariate-t df is the
// average of the per-asset tail parameters.
func NewGenerator(factor [][]float64, params []models.AssetDistributionParams, method models.FatTailMethod, seed int64) *Generator {
	n := len(params)
	sharedDF := 0.0
	for _, p := range params {
		sharedDF += p.DF
	}
	if n > 0 {
		sharedDF /= float64(n)
	}
	if sharedDF < minDF {
		sharedDF = minDF
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		factor:   factor,
		params:   params,
		method:   method,
		sharedDF: sharedDF,
		z:        make([]float64, n),
		x:        make([]float64, n),
	}
}

// SharedDF exposes the df used by the shared-factor multivariate-t model
func (g *Generator) SharedDF() float64 {
	return g.sharedDF
}

// Next draws one correlated return vector. The returned slice is reused
// between calls; callers that retain it must copy.
func (g *Generator) Next() []float64 {
	for i := range g.z {
		g.z[i] = g.rng.NormFloat64()
	}
	return g.transform(g.z, g.drawChiSquared())
}

// NextFromUniforms draws one correlated return vector from a low-discrepancy
// uniform point. Each coordinate passes through the inverse normal CDF — a
// one-uniform-one-variate transform that preserves the point set's
// low-discrepancy structure. For the multivariate-t model the point must
// carry one extra trailing dimension, which drives the tail-fattening factor
// through the inverse chi-squared CDF so all of a path's randomness
// originates from the same point.
func (g *Generator) NextFromUniforms(point []float64) []float64 {
	n := len(g.z)
	for i := 0; i < n; i++ {
		g.z[i] = distuv.UnitNormal.Quantile(clampOpen(point[i]))
	}

	chi := 0.0
	if g.method == models.FatTailMultivariateT {
		chi = distuv.ChiSquared{K: g.sharedDF}.Quantile(clampOpen(point[n]))
		if chi < chiSquaredFloor {
			chi = chiSquaredFloor
		}
	}
	return g.transform(g.z, chi)
}

// UniformDims reports how many uniform dimensions one path consumes
func (g *Generator) UniformDims() int {
	if g.method == models.FatTailMultivariateT {
		return len(g.params) + 1
	}
	return len(g.params)
}

// transform correlates the standard draws and applies the selected model
func (g *Generator) transform(z []float64, chiSquared float64) []float64 {
	n := len(g.params)

	// Correlate via the lower-triangular factor
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += g.factor[i][j] * z[j]
		}
		g.x[i] = sum
	}

	switch g.method {
	case models.FatTailPerAssetT:
		for i, p := range g.params {
			t := g.copulaT(g.x[i], p.DF)
			g.x[i] = g.finalize(t, p)
		}
	case models.FatTailMultivariateT:
		scale := math.Sqrt(g.sharedDF / chiSquared)
		if g.sharedDF > 2 {
			scale *= math.Sqrt((g.sharedDF - 2) / g.sharedDF)
		}
		for i, p := range g.params {
			v := clampF(g.x[i]*scale, -mvtClamp, mvtClamp)
			g.x[i] = g.finalize(v, p)
		}
	default:
		for i, p := range g.params {
			g.x[i] = g.finalize(g.x[i], p)
		}
	}
	return g.x
}

// copulaT maps a correlated normal draw through that asset's Student-t
// quantile using the normal CDF as the probability bridge. This attenuates
// the target correlation for heavy tails; see InflationFactor.
func (g *Generator) copulaT(x, df float64) float64 {
	u := clampOpen(distuv.UnitNormal.CDF(x))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(u)
	if df > 2 {
		t *= math.Sqrt((df - 2) / df)
	}
	return clampF(t, -copulaClamp, copulaClamp)
}

// finalize applies the skew reshaping, scales by sigma, shifts by mu, and
// hard-clamps the result so output stays finite and bounded
func (g *Generator) finalize(v float64, p models.AssetDistributionParams) float64 {
	if p.Skew != 0 {
		v = skewTransform(v, p.Skew)
	}
	r := p.Mu + p.Sigma*v
	if math.IsNaN(r) {
		return 0
	}
	return clampF(r, minReturn, maxReturn)
}

// skewTransform reshapes a standardized draw asymmetrically using the delta
// parameterization delta = skew/sqrt(1+skew²), recentred so a zero-mean
// input stays zero-mean. No separate skew-normal sampler is needed.
func skewTransform(z, skew float64) float64 {
	delta := skew / math.Sqrt(1+skew*skew)
	return delta*math.Abs(z) + math.Sqrt(1-delta*delta)*z - delta*math.Sqrt(2/math.Pi)
}

// drawChiSquared draws a chi-squared variate for the shared tail factor:
// an exact sum of squared normals for moderate df, a normal approximation
// df + sqrt(2·df)·z above that, both floored away from zero
func (g *Generator) drawChiSquared() float64 {
	if g.method != models.FatTailMultivariateT {
		return 0
	}
	df := g.sharedDF
	var chi float64
	if df <= exactChiSquaredMaxDF {
		k := int(math.Round(df))
		for i := 0; i < k; i++ {
			z := g.rng.NormFloat64()
			chi += z * z
		}
	} else {
		chi = df + math.Sqrt(2*df)*g.rng.NormFloat64()
	}
	if chi < chiSquaredFloor {
		chi = chiSquaredFloor
	}
	return chi
}

// InflationFactor returns the multiplier to apply to specified correlations
// before using the per-asset-t copula model, pre-compensating the documented
// correlation attenuation. The attenuation is well below 1 for df < 10 and
// fades toward 1 as df approaches the Gaussian regime.
func InflationFactor(df float64) float64 {
	if df <= 2 {
		df = 2.1
	}
	attenuation := 1.0 - 1.1/df
	if attenuation < 0.5 {
		attenuation = 0.5
	}
	return clampF(1/attenuation, 1.0, 1.5)
}

// clampOpen keeps a probability strictly inside (0, 1) so quantile
// transforms stay finite
func clampOpen(u float64) float64 {
	const eps = 1e-12
	if u < eps {
		return eps
	}
	if u > 1-eps {
		return 1 - eps
	}
	return u
}
