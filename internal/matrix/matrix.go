// Package matrix implements the linear-algebra kernel used by the
// simulation and optimization components: Cholesky factorization with
// pivot clamping, positive-semi-definite validation and repair, and the
// correlation/covariance conversions everything downstream relies on.
package matrix

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// pivotFloor replaces non-positive Cholesky pivots so the
	// factorization never fails on a near-degenerate matrix
	pivotFloor = 1e-10

	// offDiagLimit keeps repaired correlations strictly inside (-1, 1)
	offDiagLimit = 0.999

	// repairShrink is the per-pass off-diagonal shrink factor applied
	// until the matrix admits a strict factorization
	repairShrink = 0.95

	// maxRepairPasses bounds the repair loop so it always terminates
	maxRepairPasses = 50
)

// Cholesky decomposes a symmetric matrix into its lower-triangular factor L
// with L·Lᵗ ≈ m. Non-positive pivots are clamped to a small positive floor
// instead of failing, so a factor is always returned — callers that need a
// genuinely positive-definite input must pre-validate with IsPositiveDefinite.
func Cholesky(m [][]float64) [][]float64 {
	n := len(m)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := 0; k < j; k++ {
				sum += l[i][k] * l[j][k]
			}
			if i == j {
				d := m[i][i] - sum
				if d < pivotFloor {
					d = pivotFloor
				}
				l[i][i] = math.Sqrt(d)
			} else {
				l[i][j] = (m[i][j] - sum) / l[j][j]
			}
		}
	}
	return l
}

// IsPositiveDefinite reports whether m admits a strict Cholesky factorization
func IsPositiveDefinite(m [][]float64) bool {
	n := len(m)
	if n == 0 {
		return false
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			return false
		}
		for j := i; j < n; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
			sym.SetSym(i, j, m[i][j])
		}
	}
	var chol mat.Cholesky
	return chol.Factorize(sym)
}

// Repair coerces an arbitrary square matrix into a valid correlation matrix:
// symmetrize, clamp off-diagonals, force a unit diagonal, then shrink the
// off-diagonal mass toward identity until the matrix is positive definite.
// This is a coarse, always-terminating repair, not a nearest-correlation
// projection.
func Repair(m [][]float64) [][]float64 {
	n := len(m)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][i] = 1.0
				continue
			}
			v := (value(m, i, j) + value(m, j, i)) / 2
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[i][j] = clamp(v, -offDiagLimit, offDiagLimit)
		}
	}

	for pass := 0; pass < maxRepairPasses; pass++ {
		if IsPositiveDefinite(out) {
			return out
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					out[i][j] *= repairShrink
				}
			}
		}
	}
	return out
}

// MatVec multiplies a square matrix by a vector
func MatVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		sum := 0.0
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}

// Transpose returns the transpose of a square matrix
func Transpose(m [][]float64) [][]float64 {
	n := len(m)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// CorrToCov scales a correlation matrix by per-asset volatilities
func CorrToCov(corr [][]float64, sigmas []float64) [][]float64 {
	n := len(corr)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = corr[i][j] * sigmas[i] * sigmas[j]
		}
	}
	return cov
}

// CovToCorr extracts the correlation matrix from a covariance matrix.
// Degenerate variances yield a zero correlation off the diagonal and a unit
// diagonal, favoring a bounded answer over failure.
func CovToCorr(cov [][]float64) [][]float64 {
	n := len(cov)
	corr := make([][]float64, n)
	sigmas := make([]float64, n)
	for i := 0; i < n; i++ {
		if cov[i][i] > 0 {
			sigmas[i] = math.Sqrt(cov[i][i])
		}
	}
	for i := range corr {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][i] = 1.0
				continue
			}
			if sigmas[i] <= 0 || sigmas[j] <= 0 {
				continue
			}
			corr[i][j] = cov[i][j] / (sigmas[i] * sigmas[j])
		}
	}
	return corr
}

// PortfolioVariance computes wᵗ·Σ·w
func PortfolioVariance(w []float64, cov [][]float64) float64 {
	sum := 0.0
	for i, wi := range w {
		for j, wj := range w {
			sum += wi * wj * cov[i][j]
		}
	}
	return sum
}

// PortfolioVolatility computes sqrt(wᵗ·Σ·w), floored at zero
func PortfolioVolatility(w []float64, cov [][]float64) float64 {
	v := PortfolioVariance(w, cov)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Clone deep-copies a matrix
func Clone(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}

func value(m [][]float64, i, j int) float64 {
	if i < len(m) && j < len(m[i]) {
		return m[i][j]
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
