package optimizer

import (
	"context"
	"math"
	"sort"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/internal/simulation"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

const (
	defaultTopK            = 15
	defaultSwapNotional    = 0.05
	defaultValidationPaths = 20000

	// validationSeed pins the secondary simulations to common random
	// numbers: the baseline and every candidate see identical asset draws,
	// so simulated deltas reflect the reallocation, not sampling noise
	validationSeed = 1
)

// Runner executes a simulation request; satisfied by simulation.Orchestrator
type Runner interface {
	Run(ctx context.Context, req simulation.Request) (*models.SimulationResult, error)
}

// SwapOptimizer searches every ordered (sell, buy) pair for Sharpe
// improvements from moving a fixed notional between the two assets, then
// validates the top-ranked candidates with a reduced-path simulation.
// Analytic and simulated deltas are both reported and never reconciled.
type SwapOptimizer struct {
	runner          Runner
	topK            int
	notional        float64
	validationPaths int
	log             *logger.Logger
}

// NewSwapOptimizer creates a swap optimizer. Non-positive arguments fall
// back to defaults; a nil runner skips validation entirely.
func NewSwapOptimizer(runner Runner, topK int, notional float64, validationPaths int) *SwapOptimizer {
	if topK <= 0 {
		topK = defaultTopK
	}
	if notional <= 0 {
		notional = defaultSwapNotional
	}
	if validationPaths <= 0 {
		validationPaths = defaultValidationPaths
	}
	return &SwapOptimizer{
		runner:          runner,
		topK:            topK,
		notional:        notional,
		validationPaths: validationPaths,
		log:             logger.GetLogger("optimizer.swaps"),
	}
}

// Analyze computes the full pairwise delta matrices, ranks candidates by
// analytic Sharpe improvement, and runs the secondary validation simulation
// over the retained ones
func (s *SwapOptimizer) Analyze(ctx context.Context, req simulation.Request, riskFree float64) (*models.SwapAnalysis, error) {
	n := len(req.Params)
	if n < 2 {
		return nil, errors.InvalidInput("swap analysis requires at least two assets")
	}
	if len(req.Weights.Assets) != n {
		return nil, errors.InvalidInputf("weights cover %d assets, expected %d", len(req.Weights.Assets), n)
	}

	corr := matrix.Repair(req.Correlation)
	sigmas := make([]float64, n)
	mus := make([]float64, n)
	for i, p := range req.Params {
		sigmas[i] = p.Sigma
		mus[i] = p.Mu
	}
	cov := matrix.CorrToCov(corr, sigmas)

	weights := req.Weights.Assets
	covW := matrix.MatVec(cov, weights)
	baseVar := 0.0
	baseReturn := req.Weights.Cash * req.Weights.CashRate
	gross := 0.0
	for i, w := range weights {
		baseVar += w * covW[i]
		baseReturn += w * mus[i]
		gross += math.Abs(w)
	}
	baseVol := math.Sqrt(math.Max(baseVar, 0))
	if baseVol < minVolatility {
		return nil, errors.NumericalDegeneracy("portfolio volatility is zero, swaps cannot be ranked")
	}
	baseSharpe := (baseReturn - riskFree) / baseVol

	// The traded notional scales with gross leverage so a levered book is
	// perturbed in proportion to its actual exposure
	amount := s.notional
	if gross > 0 {
		amount *= gross
	}

	analysis := &models.SwapAnalysis{
		Tickers:           req.Tickers,
		DeltaSharpeMatrix: make([][]float64, n),
		DeltaVolMatrix:    make([][]float64, n),
		DeltaReturnMatrix: make([][]float64, n),
	}
	var candidates []models.SwapCandidate

	for i := 0; i < n; i++ {
		analysis.DeltaSharpeMatrix[i] = make([]float64, n)
		analysis.DeltaVolMatrix[i] = make([]float64, n)
		analysis.DeltaReturnMatrix[i] = make([]float64, n)

		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			// Selling amount of i and buying amount of j shifts the
			// variance by a rank-one update; no matrix rebuild needed
			dReturn := amount * (mus[j] - mus[i])
			dVar := amount*amount*(cov[i][i]+cov[j][j]-2*cov[i][j]) +
				2*amount*(covW[j]-covW[i])
			newVol := math.Sqrt(math.Max(baseVar+dVar, 0))

			dSharpe := 0.0
			if newVol > minVolatility {
				dSharpe = (baseReturn+dReturn-riskFree)/newVol - baseSharpe
			}

			analysis.DeltaReturnMatrix[i][j] = dReturn
			analysis.DeltaVolMatrix[i][j] = newVol - baseVol
			analysis.DeltaSharpeMatrix[i][j] = dSharpe

			candidates = append(candidates, models.SwapCandidate{
				SellTicker:  tickerAt(req.Tickers, i),
				BuyTicker:   tickerAt(req.Tickers, j),
				SellIndex:   i,
				BuyIndex:    j,
				DeltaSharpe: dSharpe,
				DeltaVol:    newVol - baseVol,
				DeltaReturn: dReturn,
			})
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].DeltaSharpe > candidates[b].DeltaSharpe
	})
	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}

	if s.runner != nil {
		s.validate(ctx, req, candidates, amount, riskFree)
	}
	analysis.Candidates = candidates
	return analysis, nil
}

// validate reruns the retained candidates through a reduced-path secondary
// simulation under common random numbers. A failed validation run leaves the
// candidate's analytic deltas intact and its Validated flag false.
func (s *SwapOptimizer) validate(ctx context.Context, req simulation.Request, candidates []models.SwapCandidate, amount, riskFree float64) {
	settings := req.Settings
	settings.NumPaths = s.validationPaths
	if settings.Seed == 0 {
		settings.Seed = validationSeed
	}

	base := req
	base.Settings = settings
	baseRes, err := s.runner.Run(ctx, base)
	if err != nil {
		s.log.Warnf("Baseline validation simulation failed, candidates stay analytic-only: %v", err)
		return
	}
	baseSharpe := simSharpe(baseRes, riskFree)

	for k := range candidates {
		c := &candidates[k]

		perturbed := make([]float64, len(req.Weights.Assets))
		copy(perturbed, req.Weights.Assets)
		perturbed[c.SellIndex] -= amount
		perturbed[c.BuyIndex] += amount

		cand := req
		cand.Settings = settings
		cand.Weights.Assets = perturbed

		res, err := s.runner.Run(ctx, cand)
		if err != nil {
			s.log.Warnf("Validation simulation for %s->%s failed: %v", c.SellTicker, c.BuyTicker, err)
			continue
		}
		c.SimDeltaSharpe = simSharpe(res, riskFree) - baseSharpe
		c.Validated = true
	}
}

// simSharpe derives a Sharpe ratio from a simulation's realized moments
func simSharpe(res *models.SimulationResult, riskFree float64) float64 {
	if res.RealizedVolatility < minVolatility {
		return 0
	}
	return (res.Returns.Mean - riskFree) / res.RealizedVolatility
}

func tickerAt(tickers []string, i int) string {
	if i < len(tickers) {
		return tickers[i]
	}
	return ""
}
