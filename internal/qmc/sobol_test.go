package qmc

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func collect(t *testing.T, s Sequence, n int) [][]float64 {
	t.Helper()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		p := s.Next()
		out[i] = append([]float64(nil), p...)
	}
	return out
}

func TestSobolDeterministic(t *testing.T) {
	a, err := NewSobol(5)
	require.NoError(t, err)
	b, err := NewSobol(5)
	require.NoError(t, err)

	pa := collect(t, a, 256)
	pb := collect(t, b, 256)
	assert.Equal(t, pa, pb)
}

func TestSobolSeekResumesExactly(t *testing.T) {
	full, err := NewSobol(3)
	require.NoError(t, err)
	all := collect(t, full, 100)

	resumed, err := NewSobol(3)
	require.NoError(t, err)
	resumed.Seek(BurnIn + 50)
	tail := collect(t, resumed, 50)

	assert.Equal(t, all[50:], tail, "a seeked stream must continue the sequential one")
}

func TestSobolMarginalsUniform(t *testing.T) {
	s, err := NewSobol(8)
	require.NoError(t, err)

	const n = 4096
	sums := make([]float64, 8)
	for i := 0; i < n; i++ {
		p := s.Next()
		for d, v := range p {
			require.GreaterOrEqual(t, v, 0.0)
			require.Less(t, v, 1.0)
			sums[d] += v
		}
	}
	for d, sum := range sums {
		assert.InDelta(t, 0.5, sum/n, 0.01, "dimension %d mean off", d)
	}
}

func TestSobolDimensionBounds(t *testing.T) {
	_, err := NewSobol(0)
	assert.Error(t, err)
	_, err = NewSobol(MaxSobolDim + 1)
	assert.Error(t, err)

	s, err := NewSobol(MaxSobolDim)
	require.NoError(t, err)
	assert.Equal(t, MaxSobolDim, s.Dim())
}

func TestNewSequenceFallsBackToHalton(t *testing.T) {
	s, err := NewSequence(MaxSobolDim + 4)
	require.NoError(t, err)
	_, isHalton := s.(*Halton)
	assert.True(t, isHalton)

	s, err = NewSequence(4)
	require.NoError(t, err)
	_, isSobol := s.(*Sobol)
	assert.True(t, isSobol)
}

func TestHaltonMarginalsUniform(t *testing.T) {
	h, err := NewHalton(4)
	require.NoError(t, err)

	const n = 4096
	sums := make([]float64, 4)
	for i := 0; i < n; i++ {
		p := h.Next()
		for d, v := range p {
			sums[d] += v
		}
	}
	for d, sum := range sums {
		assert.InDelta(t, 0.5, sum/n, 0.02, "dimension %d mean off", d)
	}
}

// estimateP5 transforms uniforms through the inverse normal CDF and reads
// off the empirical 5th percentile
func estimateP5(uniforms []float64) float64 {
	draws := make([]float64, len(uniforms))
	for i, u := range uniforms {
		draws[i] = distuv.UnitNormal.Quantile(u)
	}
	sort.Float64s(draws)
	return draws[len(draws)/20]
}

func TestQMCConvergesFasterThanMC(t *testing.T) {
	const n = 4096
	analytic := distuv.UnitNormal.Quantile(0.05)

	s, err := NewSobol(1)
	require.NoError(t, err)
	qmcUniforms := make([]float64, n)
	for i := range qmcUniforms {
		u := s.Next()[0]
		if u <= 0 {
			u = 1e-12
		}
		qmcUniforms[i] = u
	}
	qmcErr := math.Abs(estimateP5(qmcUniforms) - analytic)

	// Average pseudo-random error over repeated trials
	mcErr := 0.0
	const trials = 5
	for trial := 0; trial < trials; trial++ {
		rng := rand.New(rand.NewSource(int64(100 + trial)))
		uniforms := make([]float64, n)
		for i := range uniforms {
			uniforms[i] = rng.Float64()
		}
		mcErr += math.Abs(estimateP5(uniforms) - analytic)
	}
	mcErr /= trials

	assert.Less(t, qmcErr, mcErr,
		"low-discrepancy percentile estimate should beat pseudo-random at equal path count")
}
