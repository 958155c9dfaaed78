package simulation

import (
	"sort"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/pkg/models"
)

// percentileAt reads a percentile from an ascending-sorted sample
func percentileAt(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ladder builds the standard percentile grid from a sorted sample
func ladder(sorted []float64) models.PercentileLadder {
	mean := 0.0
	for _, v := range sorted {
		mean += v
	}
	if len(sorted) > 0 {
		mean /= float64(len(sorted))
	}
	return models.PercentileLadder{
		P5:   percentileAt(sorted, 0.05),
		P10:  percentileAt(sorted, 0.10),
		P25:  percentileAt(sorted, 0.25),
		P50:  percentileAt(sorted, 0.50),
		P75:  percentileAt(sorted, 0.75),
		P90:  percentileAt(sorted, 0.90),
		P95:  percentileAt(sorted, 0.95),
		Mean: mean,
	}
}

// dollarLadder converts a return ladder into terminal dollars at starting NAV
func dollarLadder(r models.PercentileLadder, nav float64) models.PercentileLadder {
	f := func(x float64) float64 { return nav * (1 + x) }
	return models.PercentileLadder{
		P5:   f(r.P5),
		P10:  f(r.P10),
		P25:  f(r.P25),
		P50:  f(r.P50),
		P75:  f(r.P75),
		P90:  f(r.P90),
		P95:  f(r.P95),
		Mean: f(r.Mean),
	}
}

// ladderPoints pairs each ladder percentile with its cumulative probability
func ladderPoints(l models.PercentileLadder) ([]float64, []float64) {
	probs := []float64{0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95}
	values := []float64{l.P5, l.P10, l.P25, l.P50, l.P75, l.P90, l.P95}
	return probs, values
}

// lossProbabilities computes probability-of-loss at the fixed thresholds,
// the caller-configurable one, and the breakeven probability interpolated
// linearly between the two percentile buckets straddling zero
func lossProbabilities(sorted []float64, l models.PercentileLadder, thresholdPct float64) models.LossProbabilities {
	frac := func(threshold float64) float64 {
		if len(sorted) == 0 {
			return 0
		}
		idx := sort.SearchFloat64s(sorted, threshold)
		return float64(idx) / float64(len(sorted))
	}

	lp := models.LossProbabilities{
		Below10:   frac(-0.10),
		Below20:   frac(-0.20),
		Below30:   frac(-0.30),
		Threshold: thresholdPct,
	}
	if thresholdPct > 0 {
		lp.BelowThreshold = frac(-thresholdPct / 100)
	}

	probs, values := ladderPoints(l)
	lp.Breakeven = 1 - interpolateCDF(probs, values, 0, frac(0))
	return lp
}

// interpolateCDF estimates the cumulative probability at x from the ladder,
// falling back to the empirical fraction when x lies outside the ladder range
func interpolateCDF(probs, values []float64, x, empirical float64) float64 {
	if x < values[0] || x >= values[len(values)-1] {
		return empirical
	}
	for i := 0; i < len(values)-1; i++ {
		if x >= values[i] && x < values[i+1] {
			span := values[i+1] - values[i]
			if span <= 0 {
				return probs[i]
			}
			return probs[i] + (probs[i+1]-probs[i])*(x-values[i])/span
		}
	}
	return empirical
}

// contributions computes the per-asset conditional contribution at each
// percentile from an analytic single-factor beta: each asset's covariance
// with the portfolio scaled by portfolio variance. Resampling per percentile
// is computationally infeasible at scale; this closed form is the documented
// substitute.
func contributions(req *Request, retLadder models.PercentileLadder, cov [][]float64, mus []float64, portVol float64) []models.AssetContribution {
	n := len(req.Params)
	covWithPort := matrix.MatVec(cov, req.Weights.Assets)
	portVar := portVol * portVol

	muP := req.Weights.Cash * req.Weights.CashRate
	for i, mu := range mus {
		muP += req.Weights.Assets[i] * mu
	}

	probsKeys := models.PercentileKeys
	_, values := ladderPoints(retLadder)

	out := make([]models.AssetContribution, n)
	for i := 0; i < n; i++ {
		beta := 0.0
		if portVar > 0 {
			beta = covWithPort[i] / portVar
		}
		byPct := make(map[string]float64, len(probsKeys))
		for k, key := range probsKeys {
			byPct[key] = req.Weights.Assets[i] * (mus[i] + beta*(values[k]-muP))
		}
		out[i] = models.AssetContribution{
			Ticker:       tickerAt(req.Tickers, i),
			Beta:         beta,
			ByPercentile: byPct,
		}
	}
	return out
}

func tickerAt(tickers []string, i int) string {
	if i < len(tickers) {
		return tickers[i]
	}
	return ""
}
