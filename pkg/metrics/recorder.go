// Package metrics exposes Prometheus instrumentation for the engine:
// simulation throughput and quality, optimizer activity, streaming-edge
// counters, and API latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quantfolio/risk-engine/pkg/models"
)

// Recorder handles metrics recording and exposure
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Simulation metrics
	simulationCounter     *prometheus.CounterVec
	simulationDuration    *prometheus.HistogramVec
	simulatedPathsCounter prometheus.Counter
	invalidPathRatioGauge *prometheus.GaugeVec
	returnPercentileGauge *prometheus.GaugeVec
	portfolioVolatility   *prometheus.GaugeVec

	// Optimizer metrics
	optimizerCounter  *prometheus.CounterVec
	optimizerDuration *prometheus.HistogramVec

	// Streaming metrics
	snapshotsConsumedCounter prometheus.Counter
	resultsPublishedCounter  prometheus.Counter
}

// NewRecorder creates a new metrics recorder
func NewRecorder() *Recorder {
	return &Recorder{
		// API metrics
		apiRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskengine_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),

		// Simulation metrics
		simulationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_simulations_total",
				Help: "The total number of simulation runs",
			},
			[]string{"model", "sampler", "outcome"},
		),
		simulationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskengine_simulation_duration_seconds",
				Help:    "Simulation run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // From 10ms to ~40s
			},
			[]string{"model"},
		),
		simulatedPathsCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "riskengine_simulated_paths_total",
				Help: "The total number of simulated paths",
			},
		),
		invalidPathRatioGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskengine_invalid_path_ratio",
				Help: "Fraction of non-finite paths in the latest run",
			},
			[]string{"portfolio_id"},
		),
		returnPercentileGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskengine_return_percentile",
				Help: "Simulated return distribution percentiles",
			},
			[]string{"portfolio_id", "percentile"},
		),
		portfolioVolatility: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskengine_portfolio_volatility",
				Help: "Analytic portfolio volatility of the latest run",
			},
			[]string{"portfolio_id"},
		),

		// Optimizer metrics
		optimizerCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_optimizer_runs_total",
				Help: "The total number of optimizer operations",
			},
			[]string{"operation"},
		),
		optimizerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskengine_optimizer_duration_seconds",
				Help:    "Optimizer operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"operation"},
		),

		// Streaming metrics
		snapshotsConsumedCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "riskengine_snapshots_consumed_total",
				Help: "The total number of portfolio snapshots consumed",
			},
		),
		resultsPublishedCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "riskengine_results_published_total",
				Help: "The total number of simulation results published",
			},
		),
	}
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordSimulation records the outcome of one simulation run
func (r *Recorder) RecordSimulation(model models.FatTailMethod, useQMC bool, outcome string, paths int, duration time.Duration) {
	sampler := "pseudo"
	if useQMC {
		sampler = "qmc"
	}
	r.simulationCounter.WithLabelValues(string(model), sampler, outcome).Inc()
	r.simulationDuration.WithLabelValues(string(model)).Observe(duration.Seconds())
	r.simulatedPathsCounter.Add(float64(paths))
}

// RecordResult records distribution gauges from a completed run
func (r *Recorder) RecordResult(portfolioID string, result *models.SimulationResult) {
	if result == nil {
		return
	}
	if result.NumPaths > 0 {
		ratio := 1 - float64(result.ValidPaths)/float64(result.NumPaths)
		r.invalidPathRatioGauge.WithLabelValues(portfolioID).Set(ratio)
	}
	r.returnPercentileGauge.WithLabelValues(portfolioID, "p5").Set(result.Returns.P5)
	r.returnPercentileGauge.WithLabelValues(portfolioID, "p50").Set(result.Returns.P50)
	r.returnPercentileGauge.WithLabelValues(portfolioID, "p95").Set(result.Returns.P95)
	r.portfolioVolatility.WithLabelValues(portfolioID).Set(result.PortfolioVolatility)
}

// RecordOptimizerRun records one optimizer operation
func (r *Recorder) RecordOptimizerRun(operation string, duration time.Duration) {
	r.optimizerCounter.WithLabelValues(operation).Inc()
	r.optimizerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSnapshotConsumed records one consumed portfolio snapshot
func (r *Recorder) RecordSnapshotConsumed() {
	r.snapshotsConsumedCounter.Inc()
}

// RecordResultPublished records one published simulation result
func (r *Recorder) RecordResultPublished() {
	r.resultsPublishedCounter.Inc()
}
