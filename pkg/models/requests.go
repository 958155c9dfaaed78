package models

// SimulationRunRequest is the API payload for starting a simulation. The
// snapshot may be inlined or referenced by ID from the snapshot store;
// omitted settings fall back to the configured defaults.
type SimulationRunRequest struct {
	PortfolioID string                   `json:"portfolio_id,omitempty"`
	Snapshot    *PortfolioSnapshot       `json:"snapshot,omitempty"`
	Settings    *SimulationSettingsPatch `json:"settings,omitempty"`
}

// OptimizeRequest is the API payload for the optimizer and decomposition
// endpoints
type OptimizeRequest struct {
	PortfolioID  string                   `json:"portfolio_id,omitempty"`
	Snapshot     *PortfolioSnapshot       `json:"snapshot,omitempty"`
	Settings     *SimulationSettingsPatch `json:"settings,omitempty"`
	RiskFreeRate *float64                 `json:"risk_free_rate,omitempty"`
}

// SimulationSettingsPatch is a partial settings override. Pointer fields
// distinguish "absent" from a zero value, so a payload that omits use_qmc
// keeps the configured default instead of forcing it off.
type SimulationSettingsPatch struct {
	NumPaths             *int           `json:"num_paths,omitempty"`
	UseQMC               *bool          `json:"use_qmc,omitempty"`
	FatTailMethod        *FatTailMethod `json:"fat_tail_method,omitempty"`
	DrawdownThresholdPct *float64       `json:"drawdown_threshold_pct,omitempty"`
	Seed                 *int64         `json:"seed,omitempty"`
	MaxWorkers           *int           `json:"max_workers,omitempty"`
}

// Apply overlays the patch's present fields onto the base settings
func (p *SimulationSettingsPatch) Apply(base SimulationSettings) SimulationSettings {
	if p == nil {
		return base
	}
	if p.NumPaths != nil {
		base.NumPaths = *p.NumPaths
	}
	if p.UseQMC != nil {
		base.UseQMC = *p.UseQMC
	}
	if p.FatTailMethod != nil {
		base.FatTailMethod = *p.FatTailMethod
	}
	if p.DrawdownThresholdPct != nil {
		base.DrawdownThresholdPct = *p.DrawdownThresholdPct
	}
	if p.Seed != nil {
		base.Seed = *p.Seed
	}
	if p.MaxWorkers != nil {
		base.MaxWorkers = *p.MaxWorkers
	}
	return base
}

// ShrinkRequest is the API payload for the estimator endpoint. With a
// returns matrix (rows are observations) the full Ledoit-Wolf estimate is
// computed; with a raw correlation matrix the constant-correlation
// shrinkage is applied at the given (or heuristic) intensity.
type ShrinkRequest struct {
	Returns     [][]float64 `json:"returns,omitempty"`
	Correlation [][]float64 `json:"correlation,omitempty"`
	Intensity   float64     `json:"intensity,omitempty"`
}
