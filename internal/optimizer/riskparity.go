package optimizer

import (
	"math"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

const (
	riskParityTolerance = 1e-4
	riskParityMaxIters  = 100
)

// RiskParity solves for long-only weights that equalize each asset's risk
// contribution. The fixed-point iteration rescales every weight toward the
// level implied by its current marginal contribution and renormalizes,
// stopping when the largest weight change falls below tolerance.
func RiskParity(tickers []string, cov [][]float64) (*models.RiskParityResult, error) {
	n := len(cov)
	if n == 0 {
		return nil, errors.InvalidInput("risk parity requires at least one asset")
	}

	// Inverse-volatility start: exact for a diagonal covariance, a good
	// seed otherwise
	weights := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		sigma := math.Sqrt(math.Max(cov[i][i], 0))
		if sigma <= minVolatility {
			return nil, errors.NumericalDegeneracyf("asset %d has zero variance, risk parity is undefined", i)
		}
		weights[i] = 1 / sigma
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	result := &models.RiskParityResult{Tickers: tickers, Weights: weights}
	next := make([]float64, n)

	for iter := 1; iter <= riskParityMaxIters; iter++ {
		result.Iterations = iter

		covW := matrix.MatVec(cov, weights)
		portVar := 0.0
		for i, w := range weights {
			portVar += w * covW[i]
		}
		portVol := math.Sqrt(math.Max(portVar, 0))
		if portVol < minVolatility {
			return nil, errors.NumericalDegeneracy("portfolio volatility collapsed during risk parity iteration")
		}

		// At parity every asset contributes portVol/n, so each weight
		// moves to that target over its marginal contribution
		target := portVol / float64(n)
		sum = 0.0
		for i := range next {
			mctr := covW[i] / portVol
			if mctr > minVolatility {
				next[i] = target / mctr
			} else {
				next[i] = weights[i]
			}
			sum += next[i]
		}

		maxDelta := 0.0
		for i := range next {
			next[i] /= sum
			if d := math.Abs(next[i] - weights[i]); d > maxDelta {
				maxDelta = d
			}
		}
		copy(weights, next)

		if maxDelta < riskParityTolerance {
			result.Converged = true
			break
		}
	}
	return result, nil
}
