package models

import (
	"time"
)

// PercentileAnchors are the five user-supplied return percentiles an asset's
// distribution is backed out from
type PercentileAnchors struct {
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
}

// Position represents a single position within a portfolio. Quantity is a
// signed notional: negative quantities are short positions.
type Position struct {
	Ticker   string            `json:"ticker"`
	Quantity float64           `json:"quantity"`
	Anchors  PercentileAnchors `json:"anchors"`
}

// PortfolioSnapshot is the engine's input record: positions, a correlation
// matrix, and the cash/value context needed to derive exposure weights.
// The correlation matrix may be nil or misshapen; the orchestrator validates
// it against the position count before any numeric work.
type PortfolioSnapshot struct {
	ID             string      `json:"id"`
	Positions      []Position  `json:"positions"`
	Correlation    [][]float64 `json:"correlation"`
	PortfolioValue float64     `json:"portfolio_value"`
	CashBalance    float64     `json:"cash_balance"`
	CashRate       float64     `json:"cash_rate"`
	RiskFreeRate   float64     `json:"risk_free_rate"`
	Timestamp      time.Time   `json:"timestamp"`
}

// AssetDistributionParams describe one asset's return distribution.
// Derived once from percentile anchors; immutable for the duration of a run.
type AssetDistributionParams struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Skew  float64 `json:"skew"`
	DF    float64 `json:"df"`
}

// PortfolioWeights holds leverage-adjusted per-asset exposure fractions plus
// a scalar cash weight earning a fixed rate. Weights may be negative and need
// not sum to 1.
type PortfolioWeights struct {
	Assets   []float64 `json:"assets"`
	Cash     float64   `json:"cash"`
	CashRate float64   `json:"cash_rate"`
}

// WeightsFromSnapshot decomposes a snapshot into leverage-adjusted exposure
// weights: each position's signed notional over net asset value, with the
// cash balance as a separate weight
func WeightsFromSnapshot(s *PortfolioSnapshot) PortfolioWeights {
	w := PortfolioWeights{
		Assets:   make([]float64, len(s.Positions)),
		CashRate: s.CashRate,
	}
	if s.PortfolioValue <= 0 {
		return w
	}
	for i, p := range s.Positions {
		w.Assets[i] = p.Quantity / s.PortfolioValue
	}
	w.Cash = s.CashBalance / s.PortfolioValue
	return w
}
