package models

// RiskDecomposition holds the closed-form risk decomposition of a portfolio
type RiskDecomposition struct {
	Tickers             []string  `json:"tickers"`
	MCTR                []float64 `json:"mctr"`
	RiskContribution    []float64 `json:"risk_contribution"`
	IncrementalSharpe   []float64 `json:"incremental_sharpe"`
	OptimalityRatio     []float64 `json:"optimality_ratio"`
	PortfolioVolatility float64   `json:"portfolio_volatility"`
	PortfolioReturn     float64   `json:"portfolio_return"`
	PortfolioSharpe     float64   `json:"portfolio_sharpe"`
}

// RiskParityResult is the fixed-point risk-parity weight solution
type RiskParityResult struct {
	Tickers    []string  `json:"tickers"`
	Weights    []float64 `json:"weights"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
}

// SwapCandidate is an ordered (sell, buy) reallocation of a fixed notional
// with its analytically computed deltas. SimDeltaSharpe is filled only for
// top-ranked candidates that passed through the secondary validation
// simulation; analytic and simulated deltas are both surfaced, never
// reconciled.
type SwapCandidate struct {
	SellTicker     string  `json:"sell_ticker"`
	BuyTicker      string  `json:"buy_ticker"`
	SellIndex      int     `json:"sell_index"`
	BuyIndex       int     `json:"buy_index"`
	DeltaSharpe    float64 `json:"delta_sharpe"`
	DeltaVol       float64 `json:"delta_vol"`
	DeltaReturn    float64 `json:"delta_return"`
	SimDeltaSharpe float64 `json:"sim_delta_sharpe,omitempty"`
	Validated      bool    `json:"validated"`
}

// SwapAnalysis is the optimizer's output: ranked candidates plus the full
// pairwise delta matrices for heat-map display
type SwapAnalysis struct {
	Tickers           []string        `json:"tickers"`
	Candidates        []SwapCandidate `json:"candidates"`
	DeltaSharpeMatrix [][]float64     `json:"delta_sharpe_matrix"`
	DeltaVolMatrix    [][]float64     `json:"delta_vol_matrix"`
	DeltaReturnMatrix [][]float64     `json:"delta_return_matrix"`
}
