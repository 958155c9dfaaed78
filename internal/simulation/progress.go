package simulation

import (
	"github.com/quantfolio/risk-engine/pkg/models"
)

// ProgressReporter receives coarse phase/percent updates during a run.
// Reporting is a user-experience layer; the engine never depends on it.
type ProgressReporter interface {
	Report(update models.ProgressUpdate)
}

// NopReporter discards progress updates, keeping the engine pure for
// library callers
type NopReporter struct{}

// Report implements ProgressReporter
func (NopReporter) Report(models.ProgressUpdate) {}

// ReporterFunc adapts a function to the ProgressReporter interface
type ReporterFunc func(update models.ProgressUpdate)

// Report implements ProgressReporter
func (f ReporterFunc) Report(update models.ProgressUpdate) {
	f(update)
}
