// Package optimizer decomposes portfolio risk into per-asset contributions
// and searches pairwise reallocations for Sharpe improvements. The closed
// forms here operate on the same covariance the simulation uses, so the
// analytic and simulated views of a portfolio never drift apart.
package optimizer

import (
	"math"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

// minVolatility is the floor below which a portfolio is considered
// degenerate for decomposition purposes
const minVolatility = 1e-12

// Decompose computes the marginal contribution to risk, fractional risk
// contribution, incremental Sharpe, and return-per-unit-risk ratio for each
// asset. Risk contributions sum to one for a fully invested portfolio.
func Decompose(tickers []string, weights []float64, cov [][]float64, mus []float64, riskFree float64) (*models.RiskDecomposition, error) {
	n := len(weights)
	if n == 0 {
		return nil, errors.InvalidInput("decomposition requires at least one asset")
	}
	if len(cov) != n || len(mus) != n {
		return nil, errors.InvalidInputf("dimension mismatch: %d weights, %dx%d covariance, %d means",
			n, len(cov), len(cov), len(mus))
	}

	covW := matrix.MatVec(cov, weights)
	portVar := 0.0
	portReturn := 0.0
	for i, w := range weights {
		portVar += w * covW[i]
		portReturn += w * mus[i]
	}
	if portVar < 0 {
		portVar = 0
	}
	portVol := math.Sqrt(portVar)
	if portVol < minVolatility {
		return nil, errors.NumericalDegeneracy("portfolio volatility is zero, risk cannot be decomposed")
	}
	portSharpe := (portReturn - riskFree) / portVol

	d := &models.RiskDecomposition{
		Tickers:             tickers,
		MCTR:                make([]float64, n),
		RiskContribution:    make([]float64, n),
		IncrementalSharpe:   make([]float64, n),
		OptimalityRatio:     make([]float64, n),
		PortfolioVolatility: portVol,
		PortfolioReturn:     portReturn,
		PortfolioSharpe:     portSharpe,
	}

	for i := 0; i < n; i++ {
		mctr := covW[i] / portVol
		d.MCTR[i] = mctr
		d.RiskContribution[i] = weights[i] * mctr / portVol

		sigma := math.Sqrt(math.Max(cov[i][i], 0))
		if sigma > minVolatility {
			corrWithPort := covW[i] / (sigma * portVol)
			assetSharpe := (mus[i] - riskFree) / sigma
			d.IncrementalSharpe[i] = assetSharpe - corrWithPort*portSharpe
		}
		if math.Abs(mctr) > minVolatility {
			d.OptimalityRatio[i] = (mus[i] - riskFree) / mctr
		}
	}
	return d, nil
}
