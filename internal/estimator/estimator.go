// Package estimator produces correlation and covariance estimates that are
// guaranteed usable by the matrix kernel: Ledoit-Wolf shrinkage toward a
// constant-correlation target, a lighter pre-computed-correlation shrink,
// and EWMA estimation as an alternative sample estimator.
package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

// ShrinkageResult holds the output of a Ledoit-Wolf estimation pass
type ShrinkageResult struct {
	Covariance         [][]float64
	Correlation        [][]float64
	Intensity          float64
	AverageCorrelation float64
}

// LedoitWolf computes the shrunk covariance estimator of Ledoit & Wolf (2003)
// from a T×N matrix of return observations: sample covariance with Bessel
// correction, a constant-correlation target preserving sample variances, and
// the asymptotically optimal shrinkage intensity clipped to [0, 1].
func LedoitWolf(returns [][]float64) (*ShrinkageResult, error) {
	t := len(returns)
	if t < 2 {
		return nil, errors.InvalidInputf("ledoit-wolf requires at least 2 observations, got %d", t)
	}
	n := len(returns[0])
	if n == 0 {
		return nil, errors.InvalidInput("ledoit-wolf requires at least 1 asset")
	}
	for i, row := range returns {
		if len(row) != n {
			return nil, errors.InvalidInputf("observation %d has %d assets, expected %d", i, len(row), n)
		}
	}

	// Demean each asset's series
	demeaned := make([][]float64, t)
	means := make([]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, t)
		for i := 0; i < t; i++ {
			col[i] = returns[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	for i := 0; i < t; i++ {
		demeaned[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			demeaned[i][j] = returns[i][j] - means[j]
		}
	}

	// Sample covariance with Bessel correction
	sample := make([][]float64, n)
	for i := range sample {
		sample[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < t; k++ {
				sum += demeaned[k][i] * demeaned[k][j]
			}
			v := sum / float64(t-1)
			sample[i][j] = v
			sample[j][i] = v
		}
	}

	// Cross-sectional average correlation and constant-correlation target
	stds := make([]float64, n)
	for i := 0; i < n; i++ {
		stds[i] = math.Sqrt(sample[i][i])
	}
	avgCorr := 0.0
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if stds[i] > 0 && stds[j] > 0 {
				avgCorr += sample[i][j] / (stds[i] * stds[j])
				pairs++
			}
		}
	}
	if pairs > 0 {
		avgCorr /= float64(pairs)
	}

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				target[i][i] = sample[i][i]
			} else {
				target[i][j] = avgCorr * stds[i] * stds[j]
			}
		}
	}

	intensity := shrinkageIntensity(demeaned, sample, stds, avgCorr, target)

	// Blend sample and target
	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = intensity*target[i][j] + (1-intensity)*sample[i][j]
		}
	}

	return &ShrinkageResult{
		Covariance:         shrunk,
		Correlation:        matrix.CovToCorr(shrunk),
		Intensity:          intensity,
		AverageCorrelation: avgCorr,
	}, nil
}

// shrinkageIntensity estimates the optimal intensity δ = κ̂/T from the
// Ledoit-Wolf π̂, ρ̂, γ̂ estimators, clipped to [0, 1]
func shrinkageIntensity(demeaned [][]float64, sample [][]float64, stds []float64, avgCorr float64, target [][]float64) float64 {
	t := len(demeaned)
	n := len(sample)
	ft := float64(t)

	// π̂: sum of asymptotic variances of the sample covariance entries
	piHat := 0.0
	piMat := make([][]float64, n)
	for i := range piMat {
		piMat[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			sum := 0.0
			for k := 0; k < t; k++ {
				d := demeaned[k][i]*demeaned[k][j] - sample[i][j]
				sum += d * d
			}
			piMat[i][j] = sum / ft
			piHat += piMat[i][j]
		}
	}

	// ρ̂: π̂ diagonal plus the covariance between sample entries and the target
	rhoHat := 0.0
	for i := 0; i < n; i++ {
		rhoHat += piMat[i][i]
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || stds[i] <= 0 || stds[j] <= 0 {
				continue
			}
			thetaII := 0.0
			thetaJJ := 0.0
			for k := 0; k < t; k++ {
				xi := demeaned[k][i]
				xj := demeaned[k][j]
				prod := xi*xj - sample[i][j]
				thetaII += (xi*xi - sample[i][i]) * prod
				thetaJJ += (xj*xj - sample[j][j]) * prod
			}
			thetaII /= ft
			thetaJJ /= ft
			rhoHat += (avgCorr / 2) * (stds[j]/stds[i]*thetaII + stds[i]/stds[j]*thetaJJ)
		}
	}

	// γ̂: squared Frobenius distance between target and sample
	gammaHat := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := target[i][j] - sample[i][j]
			gammaHat += d * d
		}
	}

	if gammaHat <= 0 {
		return 0
	}
	kappa := (piHat - rhoHat) / gammaHat
	intensity := kappa / ft
	if intensity < 0 {
		return 0
	}
	if intensity > 1 {
		return 1
	}
	return intensity
}

// ShrinkToConstantCorrelation shrinks a pre-computed sample correlation
// matrix toward its own cross-sectional average correlation. A non-positive
// intensity selects the size-based heuristic min(0.5, 0.1 + N/100).
// Returns the shrunk matrix and the intensity actually applied.
func ShrinkToConstantCorrelation(corr [][]float64, intensity float64) ([][]float64, float64) {
	n := len(corr)
	if n == 0 {
		return nil, 0
	}
	if intensity <= 0 {
		intensity = math.Min(0.5, 0.1+float64(n)/100.0)
	}
	if intensity > 1 {
		intensity = 1
	}

	avg := 0.0
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			avg += corr[i][j]
			pairs++
		}
	}
	if pairs > 0 {
		avg /= float64(pairs)
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][i] = 1.0
			} else {
				out[i][j] = intensity*avg + (1-intensity)*corr[i][j]
			}
		}
	}
	return out, intensity
}

// EWMACovariance computes an exponentially weighted covariance matrix from a
// T×N return matrix. The decay factor derives from the half-life:
// λ = exp(-ln2 / halfLife), with weights normalized and the effective-sample
// correction 1 - Σw² applied to the denominator.
func EWMACovariance(returns [][]float64, halfLife float64) ([][]float64, error) {
	t := len(returns)
	if t < 2 {
		return nil, errors.InvalidInputf("ewma requires at least 2 observations, got %d", t)
	}
	if halfLife <= 0 {
		return nil, errors.InvalidInputf("invalid half-life %v", halfLife)
	}
	n := len(returns[0])

	lambda := math.Exp(-math.Ln2 / halfLife)
	weights := make([]float64, t)
	sum := 0.0
	for i := 0; i < t; i++ {
		// Oldest observation first; newest carries the largest weight
		weights[i] = math.Pow(lambda, float64(t-1-i))
		sum += weights[i]
	}
	sumSq := 0.0
	for i := range weights {
		weights[i] /= sum
		sumSq += weights[i] * weights[i]
	}
	denom := 1 - sumSq
	if denom <= 0 {
		return nil, errors.NumericalDegeneracy("ewma effective sample size collapsed")
	}

	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		for k := 0; k < t; k++ {
			mu[j] += weights[k] * returns[k][j]
		}
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := 0.0
			for k := 0; k < t; k++ {
				s += weights[k] * (returns[k][i] - mu[i]) * (returns[k][j] - mu[j])
			}
			v := s / denom
			cov[i][j] = v
			cov[j][i] = v
		}
	}
	return cov, nil
}

// EWMACorrelation is the correlation matrix implied by EWMACovariance
func EWMACorrelation(returns [][]float64, halfLife float64) ([][]float64, error) {
	cov, err := EWMACovariance(returns, halfLife)
	if err != nil {
		return nil, err
	}
	return matrix.CovToCorr(cov), nil
}
