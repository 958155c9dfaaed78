// Package qmc provides low-discrepancy point sequences (Sobol primary,
// Halton secondary) for quasi-random Monte Carlo. Points are uniform on
// [0,1)^d and must be converted to distributional variates through inverse
// CDFs only: transforms that consume two uniforms per variate destroy the
// low-discrepancy structure and forfeit the convergence advantage.
package qmc

import (
	"math"
	"math/bits"
	"sync"

	"github.com/quantfolio/risk-engine/pkg/utils/errors"
)

// BurnIn is the standard number of leading points to discard (2^10 − 1)
const BurnIn = 1<<10 - 1

// MaxSobolDim is the number of dimensions covered by the direction-number table
const MaxSobolDim = 21

// Sequence is a deterministic low-discrepancy point stream with index-based
// resumption, so parallel units can claim disjoint reproducible slices
type Sequence interface {
	// Next returns the point at the current index and advances. The slice
	// is reused between calls.
	Next() []float64
	// Seek positions the stream so the next call to Next returns the
	// point at the given index
	Seek(index uint32)
	// Dim returns the point dimensionality
	Dim() int
}

// sobolPoly is a primitive polynomial over GF(2) with its initial
// direction-number seeds, per Joe & Kuo
type sobolPoly struct {
	s int
	a uint32
	m []uint32
}

// Joe-Kuo primitive polynomials and initial direction numbers for
// dimensions 2..21; dimension 1 is the van der Corput sequence
var sobolPolys = []sobolPoly{
	{1, 0, []uint32{1}},
	{2, 1, []uint32{1, 3}},
	{3, 1, []uint32{1, 3, 1}},
	{3, 2, []uint32{1, 1, 1}},
	{4, 1, []uint32{1, 1, 3, 3}},
	{4, 4, []uint32{1, 3, 5, 13}},
	{5, 2, []uint32{1, 1, 5, 5, 17}},
	{5, 4, []uint32{1, 1, 5, 5, 5}},
	{5, 7, []uint32{1, 1, 7, 11, 19}},
	{5, 11, []uint32{1, 1, 5, 1, 1}},
	{5, 13, []uint32{1, 1, 1, 3, 11}},
	{5, 14, []uint32{1, 3, 5, 5, 31}},
	{6, 1, []uint32{1, 3, 3, 9, 7, 49}},
	{6, 13, []uint32{1, 1, 1, 15, 21, 21}},
	{6, 16, []uint32{1, 3, 1, 13, 27, 49}},
	{6, 19, []uint32{1, 1, 1, 15, 7, 5}},
	{6, 22, []uint32{1, 3, 1, 15, 13, 25}},
	{6, 25, []uint32{1, 1, 5, 5, 19, 61}},
	{7, 1, []uint32{1, 3, 7, 11, 23, 15, 103}},
	{7, 4, []uint32{1, 3, 7, 13, 13, 15, 69}},
}

const sobolBits = 32

var (
	directionOnce  sync.Once
	directionTable [][]uint32
)

// directionNumbers returns the process-wide direction-number table,
// constructed once and read-only thereafter
func directionNumbers() [][]uint32 {
	directionOnce.Do(func() {
		directionTable = make([][]uint32, MaxSobolDim)

		// Dimension 1: van der Corput, v[k] = 2^(31-k)
		v0 := make([]uint32, sobolBits)
		for k := 0; k < sobolBits; k++ {
			v0[k] = 1 << (sobolBits - 1 - k)
		}
		directionTable[0] = v0

		for d := 1; d < MaxSobolDim; d++ {
			poly := sobolPolys[d-1]
			v := make([]uint32, sobolBits)
			for k := 0; k < poly.s; k++ {
				v[k] = poly.m[k] << (sobolBits - 1 - k)
			}
			for k := poly.s; k < sobolBits; k++ {
				v[k] = v[k-poly.s] ^ (v[k-poly.s] >> poly.s)
				for i := 1; i < poly.s; i++ {
					if (poly.a>>(poly.s-1-i))&1 == 1 {
						v[k] ^= v[k-i]
					}
				}
			}
			directionTable[d] = v
		}
	})
	return directionTable
}

// Sobol generates the Sobol sequence via Gray-code incremental updates
type Sobol struct {
	dim   int
	index uint32
	x     []uint32
	v     [][]uint32
	point []float64
}

// NewSobol creates a Sobol sequence of the given dimensionality, positioned
// after the standard burn-in
func NewSobol(dim int) (*Sobol, error) {
	if dim < 1 || dim > MaxSobolDim {
		return nil, errors.InvalidInputf("sobol dimension %d outside [1, %d]", dim, MaxSobolDim)
	}
	s := &Sobol{
		dim:   dim,
		x:     make([]uint32, dim),
		v:     directionNumbers()[:dim],
		point: make([]float64, dim),
	}
	s.Seek(BurnIn)
	return s, nil
}

// Dim returns the point dimensionality
func (s *Sobol) Dim() int {
	return s.dim
}

// Next returns the point at the current index and advances by one Gray-code
// update. The returned slice is reused.
func (s *Sobol) Next() []float64 {
	for d := 0; d < s.dim; d++ {
		s.point[d] = float64(s.x[d]) / (1 << sobolBits)
	}
	// Flip the direction number at the lowest zero bit of the index
	c := bits.TrailingZeros32(^s.index)
	for d := 0; d < s.dim; d++ {
		s.x[d] ^= s.v[d][c]
	}
	s.index++
	return s.point
}

// Seek repositions the sequence so the next point returned is the one at
// the given absolute index, reconstructing the Gray-code state directly
func (s *Sobol) Seek(index uint32) {
	gray := index ^ (index >> 1)
	for d := 0; d < s.dim; d++ {
		x := uint32(0)
		for k := 0; k < sobolBits; k++ {
			if gray&(1<<k) != 0 {
				x ^= s.v[d][k]
			}
		}
		s.x[d] = x
	}
	s.index = index
}

// Halton generates the Halton sequence from radical inverses in successive
// prime bases. Secondary to Sobol; useful past the Sobol table's dimensions.
type Halton struct {
	dim   int
	index uint32
	bases []int
	point []float64
}

var haltonPrimes = []int{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47,
	53, 59, 61, 67, 71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113,
}

// NewHalton creates a Halton sequence of the given dimensionality,
// positioned after the standard burn-in
func NewHalton(dim int) (*Halton, error) {
	if dim < 1 || dim > len(haltonPrimes) {
		return nil, errors.InvalidInputf("halton dimension %d outside [1, %d]", dim, len(haltonPrimes))
	}
	return &Halton{
		dim:   dim,
		index: BurnIn,
		bases: haltonPrimes[:dim],
		point: make([]float64, dim),
	}, nil
}

// Dim returns the point dimensionality
func (h *Halton) Dim() int {
	return h.dim
}

// Next returns the point at the current index and advances.
// The returned slice is reused.
func (h *Halton) Next() []float64 {
	// Index 0 would yield the all-zero point; shift by one
	n := h.index + 1
	for d, base := range h.bases {
		h.point[d] = radicalInverse(n, base)
	}
	h.index++
	return h.point
}

// Seek repositions the sequence to an absolute index
func (h *Halton) Seek(index uint32) {
	h.index = index
}

// radicalInverse reflects the base-b digits of n about the radix point
func radicalInverse(n uint32, base int) float64 {
	inv := 0.0
	f := 1.0 / float64(base)
	for n > 0 {
		inv += f * float64(n%uint32(base))
		n /= uint32(base)
		f /= float64(base)
	}
	return math.Min(inv, 1-1e-12)
}

// NewSequence picks Sobol when the dimensionality fits its table and falls
// back to Halton above that
func NewSequence(dim int) (Sequence, error) {
	if dim <= MaxSobolDim {
		return NewSobol(dim)
	}
	return NewHalton(dim)
}
