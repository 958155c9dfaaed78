package pools

import (
	"sync"
)

// Float64SlicePool is a pool of float64 slices used by simulation workers
// to recycle per-unit path buffers between runs
type Float64SlicePool struct {
	pool sync.Pool
	size int
}

// NewFloat64SlicePool creates a new Float64SlicePool whose slices have the
// given capacity
func NewFloat64SlicePool(size int) *Float64SlicePool {
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, size)
			},
		},
		size: size,
	}
}

// Get retrieves an empty float64 slice from the pool
func (p *Float64SlicePool) Get() []float64 {
	return p.pool.Get().([]float64)[:0]
}

// Put returns a float64 slice to the pool. Slices that shrank below the
// pool's capacity are left for the GC.
func (p *Float64SlicePool) Put(f []float64) {
	if cap(f) >= p.size {
		p.pool.Put(f[:0])
	}
}
