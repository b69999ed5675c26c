// ABOUTME: Software gain shared by output backends
// ABOUTME: Stores the gain atomically so control surfaces can write it from any goroutine
package output

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// gain is a clamped, atomically updated multiplier
type gain struct {
	bits atomic.Uint64
}

func newGain(v float64) *gain {
	g := &gain{}
	g.set(v)
	return g
}

func (g *gain) set(v float64) float64 {
	v = audio.Clamp01(v)
	g.bits.Store(math.Float64bits(v))
	return v
}

func (g *gain) get() float64 {
	return math.Float64frombits(g.bits.Load())
}
