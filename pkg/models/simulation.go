package models

import (
	"time"
)

// FatTailMethod selects the return model used for a simulation run
type FatTailMethod string

const (
	// FatTailNone uses plain correlated Gaussian returns
	FatTailNone FatTailMethod = "none"
	// FatTailPerAssetT uses a Gaussian copula with per-asset Student-t marginals
	FatTailPerAssetT FatTailMethod = "perAssetT"
	// FatTailMultivariateT uses a shared-factor multivariate Student-t, the
	// default: Pearson correlation is preserved exactly while tails fatten together
	FatTailMultivariateT FatTailMethod = "multivariateT"
)

// SimulationSettings configure one simulation run
type SimulationSettings struct {
	NumPaths             int           `json:"num_paths"`
	UseQMC               bool          `json:"use_qmc"`
	FatTailMethod        FatTailMethod `json:"fat_tail_method"`
	DrawdownThresholdPct float64       `json:"drawdown_threshold_pct"`
	Seed                 int64         `json:"seed,omitempty"`
	MaxWorkers           int           `json:"max_workers,omitempty"`
}

// PercentileLadder is the standard percentile grid reported for a
// simulated distribution
type PercentileLadder struct {
	P5   float64 `json:"p5"`
	P10  float64 `json:"p10"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
	P95  float64 `json:"p95"`
	Mean float64 `json:"mean"`
}

// PercentileKeys lists the ladder's percentile labels in ascending order
var PercentileKeys = []string{"p5", "p10", "p25", "p50", "p75", "p90", "p95"}

// LossProbabilities holds probability-of-loss estimates at fixed thresholds
// plus a caller-configurable one. Breakeven is interpolated linearly between
// the two percentile buckets straddling zero.
type LossProbabilities struct {
	Below10        float64 `json:"below_10"`
	Below20        float64 `json:"below_20"`
	Below30        float64 `json:"below_30"`
	Threshold      float64 `json:"threshold"`
	BelowThreshold float64 `json:"below_threshold"`
	Breakeven      float64 `json:"breakeven"`
}

// AssetContribution is one asset's conditional contribution to the portfolio
// outcome at each percentile, computed from an analytic single-factor beta
// rather than per-percentile resampling
type AssetContribution struct {
	Ticker       string             `json:"ticker"`
	Beta         float64            `json:"beta"`
	ByPercentile map[string]float64 `json:"by_percentile"`
}

// SimulationResult is the immutable output record of one run. A new run
// supersedes rather than mutates it; the prior result is retained only for
// comparison. The drawdown ladder comes from a volatility-scaled heuristic,
// not a path-wise running minimum; that approximation is a documented
// simplification and is preserved deliberately.
type SimulationResult struct {
	Timestamp           time.Time           `json:"timestamp"`
	NumPaths            int                 `json:"num_paths"`
	ValidPaths          int                 `json:"valid_paths"`
	FatTailMethod       FatTailMethod       `json:"fat_tail_method"`
	UseQMC              bool                `json:"use_qmc"`
	Returns             PercentileLadder    `json:"returns"`
	Dollars             PercentileLadder    `json:"dollars"`
	Drawdowns           PercentileLadder    `json:"drawdowns"`
	LossProbabilities   LossProbabilities   `json:"loss_probabilities"`
	Contributions       []AssetContribution `json:"contributions"`
	ExpectedReturn      float64             `json:"expected_return"`
	PortfolioVolatility float64             `json:"portfolio_volatility"`
	RealizedVolatility  float64             `json:"realized_volatility"`
	Duration            time.Duration       `json:"duration_ns"`
	Error               string              `json:"error,omitempty"`
}

// NewSimulationResult creates a result record stamped with the run settings
func NewSimulationResult(settings SimulationSettings) *SimulationResult {
	return &SimulationResult{
		Timestamp:     time.Now(),
		NumPaths:      settings.NumPaths,
		FatTailMethod: settings.FatTailMethod,
		UseQMC:        settings.UseQMC,
	}
}

// ProgressUpdate is a coarse progress report for long-running operations.
// It is a user-experience layer over the simulation, not a correctness one.
type ProgressUpdate struct {
	Phase   string  `json:"phase"`
	Percent float64 `json:"percent"`
}
