package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantfolio/risk-engine/config"
	"github.com/quantfolio/risk-engine/internal/estimator"
	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/internal/optimizer"
	"github.com/quantfolio/risk-engine/internal/simulation"
	"github.com/quantfolio/risk-engine/internal/store"
	"github.com/quantfolio/risk-engine/internal/stream"
	"github.com/quantfolio/risk-engine/pkg/metrics"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	snapshots *store.InMemorySnapshotStore
	results   *store.ResultStore
	hub       *stream.Hub
	recorder  *metrics.Recorder
	simCfg    config.SimulationConfig
	optCfg    config.OptimizerConfig
	log       *logger.Logger
}

// CreateHandlers creates new API handlers
func CreateHandlers(
	snapshots *store.InMemorySnapshotStore,
	results *store.ResultStore,
	hub *stream.Hub,
	recorder *metrics.Recorder,
	simCfg config.SimulationConfig,
	optCfg config.OptimizerConfig,
) *Handlers {
	return &Handlers{
		snapshots: snapshots,
		results:   results,
		hub:       hub,
		recorder:  recorder,
		simCfg:    simCfg,
		optCfg:    optCfg,
		log:       logger.GetLogger("api.handlers"),
	}
}

// HealthHandler handles health check requests
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// RunSimulationHandler runs a simulation for an inlined or stored snapshot
// and retains the result
func (h *Handlers) RunSimulationHandler(c *gin.Context) {
	var body models.SimulationRunRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	snap, err := h.resolveSnapshot(body.PortfolioID, body.Snapshot)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	settings := h.settings(body.Settings)

	orch := simulation.NewOrchestrator(settings.MaxWorkers, h.hub.Reporter(snap.ID))
	result, err := orch.RunSnapshot(c.Request.Context(), snap, settings)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.recorder.RecordSimulation(settings.FatTailMethod, settings.UseQMC, outcome, settings.NumPaths, result.Duration)

	if err != nil {
		h.log.Errorf("Simulation failed for portfolio %s: %v", snap.ID, err)
		c.JSON(statusFromError(err), result)
		return
	}

	if err := h.results.Save(snap.ID, result); err != nil {
		h.log.Warnf("Failed to retain result for portfolio %s: %v", snap.ID, err)
	}
	h.recorder.RecordResult(snap.ID, result)
	h.hub.BroadcastResult(snap.ID, result)

	c.JSON(http.StatusOK, result)
}

// GetResultHandler returns the latest retained result for a portfolio
func (h *Handlers) GetResultHandler(c *gin.Context) {
	portfolioID := c.Query("portfolio_id")
	if portfolioID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "portfolio_id is required"})
		return
	}

	result, err := h.results.Latest(portfolioID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPreviousResultHandler returns the superseded result for a portfolio
func (h *Handlers) GetPreviousResultHandler(c *gin.Context) {
	portfolioID := c.Query("portfolio_id")
	if portfolioID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "portfolio_id is required"})
		return
	}

	result, err := h.results.Previous(portfolioID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SwapsHandler runs the pairwise swap analysis with secondary validation
func (h *Handlers) SwapsHandler(c *gin.Context) {
	req, rf, ok := h.bindOptimizeRequest(c)
	if !ok {
		return
	}

	runner := simulation.NewOrchestrator(req.Settings.MaxWorkers, nil)
	opt := optimizer.NewSwapOptimizer(runner, h.optCfg.TopK, h.optCfg.SwapNotional, h.optCfg.ValidationPaths)

	start := time.Now()
	analysis, err := opt.Analyze(c.Request.Context(), req, rf)
	h.recorder.RecordOptimizerRun("swaps", time.Since(start))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// RiskParityHandler solves for equal-risk-contribution weights
func (h *Handlers) RiskParityHandler(c *gin.Context) {
	req, _, ok := h.bindOptimizeRequest(c)
	if !ok {
		return
	}
	cov, _ := covarianceFromRequest(&req)

	start := time.Now()
	result, err := optimizer.RiskParity(req.Tickers, cov)
	h.recorder.RecordOptimizerRun("riskparity", time.Since(start))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DecomposeHandler returns the closed-form risk decomposition
func (h *Handlers) DecomposeHandler(c *gin.Context) {
	req, rf, ok := h.bindOptimizeRequest(c)
	if !ok {
		return
	}
	cov, mus := covarianceFromRequest(&req)

	start := time.Now()
	decomposition, err := optimizer.Decompose(req.Tickers, req.Weights.Assets, cov, mus, rf)
	h.recorder.RecordOptimizerRun("decompose", time.Since(start))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decomposition)
}

// ShrinkHandler estimates a shrunk correlation matrix: full Ledoit-Wolf
// from a returns matrix, or constant-correlation shrinkage of a supplied
// matrix
func (h *Handlers) ShrinkHandler(c *gin.Context) {
	var body models.ShrinkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	switch {
	case len(body.Returns) > 0:
		result, err := estimator.LedoitWolf(body.Returns)
		if err != nil {
			c.JSON(statusFromError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)

	case len(body.Correlation) > 0:
		shrunk, used := estimator.ShrinkToConstantCorrelation(body.Correlation, body.Intensity)
		c.JSON(http.StatusOK, gin.H{
			"correlation": shrunk,
			"intensity":   used,
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either returns or correlation is required"})
	}
}

// resolveSnapshot returns the inlined snapshot (storing it for later
// reference) or fetches a stored one by ID
func (h *Handlers) resolveSnapshot(portfolioID string, snap *models.PortfolioSnapshot) (*models.PortfolioSnapshot, error) {
	if snap != nil {
		if snap.ID == "" {
			snap.ID = portfolioID
		}
		if snap.ID == "" {
			return nil, errors.InvalidInput("snapshot requires a portfolio ID")
		}
		if err := h.snapshots.Save(snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	if portfolioID == "" {
		return nil, errors.InvalidInput("either a snapshot or a portfolio_id is required")
	}
	return h.snapshots.Get(portfolioID)
}

// settings applies per-request overrides over the configured defaults
func (h *Handlers) settings(patch *models.SimulationSettingsPatch) models.SimulationSettings {
	return patch.Apply(models.SimulationSettings{
		NumPaths:             h.simCfg.NumPaths,
		UseQMC:               h.simCfg.UseQMC,
		FatTailMethod:        models.FatTailMethod(h.simCfg.FatTailMethod),
		DrawdownThresholdPct: h.simCfg.DrawdownThresholdPct,
		MaxWorkers:           h.simCfg.MaxWorkers,
	})
}

// bindOptimizeRequest decodes an optimizer payload and derives the
// simulation request plus the effective risk-free rate. On failure it has
// already written the error response.
func (h *Handlers) bindOptimizeRequest(c *gin.Context) (simulation.Request, float64, bool) {
	var body models.OptimizeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return simulation.Request{}, 0, false
	}

	snap, err := h.resolveSnapshot(body.PortfolioID, body.Snapshot)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return simulation.Request{}, 0, false
	}

	req, err := simulation.NewRequestFromSnapshot(snap, h.settings(body.Settings))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return simulation.Request{}, 0, false
	}

	rf := h.simCfg.RiskFreeRate
	if snap.RiskFreeRate != 0 {
		rf = snap.RiskFreeRate
	}
	if body.RiskFreeRate != nil {
		rf = *body.RiskFreeRate
	}
	return req, rf, true
}

// covarianceFromRequest rebuilds the covariance and mean vectors the
// analytic optimizer endpoints need
func covarianceFromRequest(req *simulation.Request) ([][]float64, []float64) {
	n := len(req.Params)
	sigmas := make([]float64, n)
	mus := make([]float64, n)
	for i, p := range req.Params {
		sigmas[i] = p.Sigma
		mus[i] = p.Mu
	}
	return matrix.CorrToCov(matrix.Repair(req.Correlation), sigmas), mus
}

// statusFromError maps the error taxonomy onto HTTP status codes
func statusFromError(err error) int {
	switch errors.GetType(err) {
	case errors.ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeNumericalDegeneracy, errors.ErrorTypeResultQuality:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
