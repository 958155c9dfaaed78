package variates

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfolio/risk-engine/pkg/models"
)

const (
	// fallbackSigma is the documented volatility default used whenever
	// anchors are missing or degenerate
	fallbackSigma = 0.2

	minDF = 3.0
	maxDF = 30.0

	// iqrToSigma converts an interquartile range to a normal standard
	// deviation: Φ⁻¹(0.75) − Φ⁻¹(0.25) = 1.349
	iqrToSigma = 1.349
)

// ParamsFromAnchors back-solves one asset's distribution parameters from its
// five percentile anchors. This is the single normalization point: every
// field is filled with its documented default here, so downstream math never
// re-implements a fallback.
func ParamsFromAnchors(a models.PercentileAnchors) models.AssetDistributionParams {
	p := models.AssetDistributionParams{
		Mu:    a.P50,
		Sigma: fallbackSigma,
		Skew:  0,
		DF:    maxDF,
	}

	iqr := a.P75 - a.P25
	if iqr > 0 && !math.IsNaN(iqr) && !math.IsInf(iqr, 0) {
		p.Sigma = iqr / iqrToSigma
	}

	spread := a.P95 - a.P5
	if spread > 0 {
		// Quartile asymmetry drives the skew parameter
		asym := ((a.P95 - a.P50) - (a.P50 - a.P5)) / spread
		p.Skew = clampF(4*asym, -2, 2)

		// The 90% spread relative to the IQR drives df: the ratio is scale
		// free and grows as tails fatten, so it pins down the tail index
		// independently of sigma
		if iqr > 0 {
			p.DF = solveDF((spread / iqr) / normalSpreadRatio())
		}
	}

	// Median → mu with skew correction: the location parameter shifts so the
	// skewed distribution's median lands on the anchor
	delta := p.Skew / math.Sqrt(1+p.Skew*p.Skew)
	p.Mu = a.P50 + delta*math.Sqrt(2/math.Pi)*p.Sigma

	if math.IsNaN(p.Mu) || math.IsInf(p.Mu, 0) {
		p.Mu = 0
	}
	if p.Sigma <= 0 || math.IsNaN(p.Sigma) || math.IsInf(p.Sigma, 0) {
		p.Sigma = fallbackSigma
	}
	return p
}

// solveDF finds the Student-t degrees of freedom whose spread-to-IQR ratio
// exceeds the normal's by the observed factor, by bisection on
// [minDF, maxDF]. Excess at or below the Gaussian level maps to maxDF.
func solveDF(excess float64) float64 {
	if math.IsNaN(excess) || excess <= tailExcess(maxDF) {
		return maxDF
	}
	if excess >= tailExcess(minDF) {
		return minDF
	}

	lo, hi := minDF, maxDF
	for iter := 0; iter < 40; iter++ {
		mid := (lo + hi) / 2
		// tailExcess decreases in df
		if tailExcess(mid) > excess {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// tailExcess is the t distribution's 95%-quantile-to-75%-quantile ratio
// normalized by the normal's: 1 at the Gaussian limit, growing as tails
// fatten. Scale parameters cancel, so only df matters.
func tailExcess(df float64) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return (t.Quantile(0.95) / t.Quantile(0.75)) / normalSpreadRatio()
}

// normalSpreadRatio is Φ⁻¹(0.95)/Φ⁻¹(0.75) ≈ 2.439
func normalSpreadRatio() float64 {
	return distuv.UnitNormal.Quantile(0.95) / distuv.UnitNormal.Quantile(0.75)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
