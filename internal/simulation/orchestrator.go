// Package simulation partitions a requested path count across parallel
// execution units, drives the variate generator (or the QMC path) per unit,
// merges the partial results without bias, and derives the terminal
// statistics: percentile ladders, drawdown distribution, probability of
// loss, and per-asset conditional contributions.
package simulation

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/risk-engine/internal/matrix"
	"github.com/quantfolio/risk-engine/internal/qmc"
	"github.com/quantfolio/risk-engine/internal/variates"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/errors"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
	"github.com/quantfolio/risk-engine/pkg/utils/pools"
)

const (
	// maxUnits caps the parallel fan-out regardless of hardware parallelism
	maxUnits = 8

	// maxInvalidFraction is the share of non-finite paths above which the
	// whole run is rejected: a result built on mostly-invalid paths is
	// worse than no result
	maxInvalidFraction = 0.10

	// drawdownScale converts a driftless volatility draw into the
	// documented max-drawdown heuristic. This is deliberately not a true
	// path-wise running minimum.
	drawdownScale = 0.8

	// unitSeedStride decorrelates per-unit rng seeds
	unitSeedStride = 0x9E3779B9

	// drawdownSeedOffset keeps every drawdown rng seed off the generator
	// seed lattice: generator seeds advance in whole strides, so a
	// half-stride offset never lands on one
	drawdownSeedOffset = unitSeedStride / 2
)

// unitSeeds derives the generator and drawdown seeds for one execution unit
func unitSeeds(base int64, unit int) (genSeed, ddSeed int64) {
	genSeed = base + int64(unit)*unitSeedStride
	ddSeed = genSeed + drawdownSeedOffset
	return genSeed, ddSeed
}

// Request carries everything one simulation run needs. All fields are
// read-only for the duration of the run; units receive no mutable shared
// state.
type Request struct {
	Tickers     []string
	Params      []models.AssetDistributionParams
	Correlation [][]float64
	Weights     models.PortfolioWeights
	NAV         float64
	Settings    models.SimulationSettings
}

// Orchestrator runs simulations. Safe for sequential reuse; a run never
// mutates its inputs, and the previous result is superseded, not modified.
type Orchestrator struct {
	maxWorkers int
	progress   ProgressReporter
	pathPool   *pools.Float64SlicePool
	log        *logger.Logger
}

// mergePoolSize is the capacity of pooled merge buffers, recycled across
// runs; the optimizer's validation pass runs many small simulations in a row
const mergePoolSize = 1 << 16

// NewOrchestrator creates an orchestrator with the given worker bound.
// A nil reporter disables progress updates.
func NewOrchestrator(maxWorkers int, progress ProgressReporter) *Orchestrator {
	if maxWorkers <= 0 || maxWorkers > maxUnits {
		maxWorkers = maxUnits
	}
	if progress == nil {
		progress = NopReporter{}
	}
	return &Orchestrator{
		maxWorkers: maxWorkers,
		progress:   progress,
		pathPool:   pools.NewFloat64SlicePool(mergePoolSize),
		log:        logger.GetLogger("simulation.orchestrator"),
	}
}

// NewRequestFromSnapshot validates a portfolio snapshot and derives the
// simulation request: distribution parameters from the percentile anchors
// and leverage-adjusted weights from the position values
func NewRequestFromSnapshot(snap *models.PortfolioSnapshot, settings models.SimulationSettings) (Request, error) {
	if err := validateSnapshot(snap); err != nil {
		return Request{}, err
	}

	params := make([]models.AssetDistributionParams, len(snap.Positions))
	tickers := make([]string, len(snap.Positions))
	for i, pos := range snap.Positions {
		params[i] = variates.ParamsFromAnchors(pos.Anchors)
		tickers[i] = pos.Ticker
	}

	return Request{
		Tickers:     tickers,
		Params:      params,
		Correlation: snap.Correlation,
		Weights:     models.WeightsFromSnapshot(snap),
		NAV:         snap.PortfolioValue,
		Settings:    settings,
	}, nil
}

// RunSnapshot derives a request from a portfolio snapshot and runs the
// simulation. Input-validity failures return a result whose Error field is
// set along with a typed error, so callers can render the message and retry.
func (o *Orchestrator) RunSnapshot(ctx context.Context, snap *models.PortfolioSnapshot, settings models.SimulationSettings) (*models.SimulationResult, error) {
	req, err := NewRequestFromSnapshot(snap, settings)
	if err != nil {
		res := models.NewSimulationResult(settings)
		res.Error = err.Error()
		return res, err
	}
	return o.Run(ctx, req)
}

// Run executes one simulation over an already-normalized request
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.SimulationResult, error) {
	start := time.Now()
	result := models.NewSimulationResult(req.Settings)

	if err := validateRequest(&req); err != nil {
		result.Error = err.Error()
		return result, err
	}
	o.progress.Report(models.ProgressUpdate{Phase: "validating", Percent: 5})

	n := len(req.Params)
	numPaths := req.Settings.NumPaths
	if numPaths <= 0 {
		numPaths = 100000
	}
	result.NumPaths = numPaths

	// Repair guarantees a factorizable correlation matrix; the factor and
	// the derived covariance are shared read-only by every unit
	corr := matrix.Repair(req.Correlation)
	factor := matrix.Cholesky(corr)
	sigmas := make([]float64, n)
	mus := make([]float64, n)
	for i, p := range req.Params {
		sigmas[i] = p.Sigma
		mus[i] = p.Mu
	}
	cov := matrix.CorrToCov(corr, sigmas)
	portVol := matrix.PortfolioVolatility(req.Weights.Assets, cov)
	o.progress.Report(models.ProgressUpdate{Phase: "factorizing", Percent: 10})

	units := o.partition(numPaths)
	seed := req.Settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	o.log.Infof("Starting simulation: %d paths, %d units, model=%s, qmc=%v",
		numPaths, len(units), req.Settings.FatTailMethod, req.Settings.UseQMC)

	batches := make([]*unitBatch, len(units))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for u, span := range units {
		u, span := u, span
		g.Go(func() error {
			genSeed, ddSeed := unitSeeds(seed, u)
			gen := variates.NewGenerator(factor, req.Params, req.Settings.FatTailMethod, genSeed)
			batch, err := o.runUnit(gctx, gen, req, span, portVol, ddSeed)
			if err != nil {
				return errors.Wrapf(err, "execution unit %d failed", u)
			}
			batches[u] = batch

			done := completed.Add(1)
			o.progress.Report(models.ProgressUpdate{
				Phase:   "simulating",
				Percent: 10 + 80*float64(done)/float64(len(units)),
			})
			return nil
		})
	}
	// Unit failures fail the run fast rather than falling back to a
	// single-threaded re-run; the error is surfaced, never swallowed
	if err := g.Wait(); err != nil {
		err = errors.WithType(err, errors.ErrorTypeExecution)
		result.Error = err.Error()
		return result, err
	}

	o.progress.Report(models.ProgressUpdate{Phase: "aggregating", Percent: 92})
	returns, drawdowns, invalid := o.mergeBatches(batches)
	defer o.pathPool.Put(returns)
	defer o.pathPool.Put(drawdowns)
	result.ValidPaths = len(returns)
	if float64(invalid) > maxInvalidFraction*float64(numPaths) {
		err := errors.ResultQualityf("%d of %d paths were non-finite", invalid, numPaths)
		result.Error = err.Error()
		return result, err
	}

	o.aggregate(result, &req, returns, drawdowns, cov, mus, portVol)
	result.Duration = time.Since(start)
	o.progress.Report(models.ProgressUpdate{Phase: "complete", Percent: 100})

	o.log.Infof("Simulation complete: %d valid paths in %v", result.ValidPaths, result.Duration)
	return result, nil
}

// pathSpan is one unit's disjoint slice of the requested path count
type pathSpan struct {
	start int
	count int
}

// partition splits the path count across a bounded number of units
func (o *Orchestrator) partition(numPaths int) []pathSpan {
	units := o.maxWorkers
	if p := runtime.GOMAXPROCS(0); p < units {
		units = p
	}
	if units > numPaths {
		units = numPaths
	}
	if units < 1 {
		units = 1
	}

	spans := make([]pathSpan, units)
	base := numPaths / units
	rem := numPaths % units
	start := 0
	for u := range spans {
		count := base
		if u < rem {
			count++
		}
		spans[u] = pathSpan{start: start, count: count}
		start += count
	}
	return spans
}

// unitBatch is the immutable output of one execution unit
type unitBatch struct {
	returns   []float64
	drawdowns []float64
	invalid   int
}

// runUnit simulates one unit's share of paths. The unit owns its generator,
// its drawdown rng, and for QMC its own disjoint slice of the sequence.
func (o *Orchestrator) runUnit(ctx context.Context, gen *variates.Generator, req Request, span pathSpan, portVol float64, ddSeed int64) (*unitBatch, error) {
	batch := &unitBatch{
		returns:   make([]float64, 0, span.count),
		drawdowns: make([]float64, 0, span.count),
	}

	var seq qmc.Sequence
	if req.Settings.UseQMC {
		var err error
		seq, err = qmc.NewSequence(gen.UniformDims())
		if err != nil {
			return nil, err
		}
		seq.Seek(qmc.BurnIn + uint32(span.start))
	}
	// The drawdown heuristic draws from its own pseudo rng in both
	// regimes; it is not part of the low-discrepancy point
	ddRng := rand.New(rand.NewSource(ddSeed))

	cashReturn := req.Weights.Cash * req.Weights.CashRate

	for i := 0; i < span.count; i++ {
		if i%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		var assetReturns []float64
		if seq != nil {
			assetReturns = gen.NextFromUniforms(seq.Next())
		} else {
			assetReturns = gen.Next()
		}

		total := cashReturn
		for j, r := range assetReturns {
			total += req.Weights.Assets[j] * r
		}
		batch.returns = append(batch.returns, total)
		batch.drawdowns = append(batch.drawdowns, portVol*math.Abs(ddRng.NormFloat64())*drawdownScale)
	}
	return batch, nil
}

// mergeBatches concatenates unit outputs and drops non-finite paths.
// The merge buffers come from the slice pool and go back to it after
// aggregation.
func (o *Orchestrator) mergeBatches(batches []*unitBatch) (returns, drawdowns []float64, invalid int) {
	returns = o.pathPool.Get()
	drawdowns = o.pathPool.Get()
	for _, b := range batches {
		for i, r := range b.returns {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				invalid++
				continue
			}
			returns = append(returns, r)
			drawdowns = append(drawdowns, b.drawdowns[i])
		}
	}
	return returns, drawdowns, invalid
}

// aggregate derives the terminal statistics from the merged paths
func (o *Orchestrator) aggregate(result *models.SimulationResult, req *Request, returns, drawdowns []float64, cov [][]float64, mus []float64, portVol float64) {
	sort.Float64s(returns)
	sort.Float64s(drawdowns)

	result.Returns = ladder(returns)
	result.Drawdowns = ladder(drawdowns)
	result.Dollars = dollarLadder(result.Returns, req.NAV)
	result.LossProbabilities = lossProbabilities(returns, result.Returns, req.Settings.DrawdownThresholdPct)
	result.Contributions = contributions(req, result.Returns, cov, mus, portVol)
	result.PortfolioVolatility = portVol
	result.RealizedVolatility = stat.StdDev(returns, nil)

	expected := req.Weights.Cash * req.Weights.CashRate
	for i, mu := range mus {
		expected += req.Weights.Assets[i] * mu
	}
	result.ExpectedReturn = expected
}

func validateSnapshot(snap *models.PortfolioSnapshot) error {
	if snap == nil {
		return errors.InvalidInput("portfolio snapshot is missing")
	}
	if len(snap.Positions) == 0 {
		return errors.InvalidInput("portfolio has no positions")
	}
	if snap.PortfolioValue <= 0 {
		return errors.InvalidInputf("portfolio value must be positive, got %v", snap.PortfolioValue)
	}
	return validateCorrelationShape(snap.Correlation, len(snap.Positions))
}

func validateRequest(req *Request) error {
	n := len(req.Params)
	if n == 0 {
		return errors.InvalidInput("request has no assets")
	}
	if len(req.Weights.Assets) != n {
		return errors.InvalidInputf("weights cover %d assets, expected %d", len(req.Weights.Assets), n)
	}
	if req.NAV <= 0 {
		return errors.InvalidInputf("portfolio value must be positive, got %v", req.NAV)
	}
	return validateCorrelationShape(req.Correlation, n)
}

func validateCorrelationShape(corr [][]float64, n int) error {
	if corr == nil {
		return errors.InvalidInputf("correlation matrix is missing for %d positions", n)
	}
	if len(corr) != n {
		return errors.InvalidInputf("correlation matrix is %dx%d but the portfolio has %d positions", len(corr), len(corr), n)
	}
	for i, row := range corr {
		if len(row) != n {
			return errors.InvalidInputf("correlation matrix row %d has %d entries, expected %d", i, len(row), n)
		}
	}
	return nil
}
