package engine

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// RandomSource yields uniform draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

// StreamFactory hands out the random source for one record. Streams must not
// be shared between records so that results do not depend on scheduling.
type StreamFactory interface {
	Stream(loanID string) RandomSource
}

// SeededStreams derives an independent PCG stream per loan from the run seed
// and the loan id. The same (seed, loan id) pair always yields the same draws.
type SeededStreams struct {
	Seed uint64
}

// Stream implements StreamFactory.
func (s SeededStreams) Stream(loanID string) RandomSource {
	return rand.New(rand.NewPCG(s.Seed, xxhash.Sum64String(loanID)))
}

// FixedSource always returns the same draw. It is its own StreamFactory.
type FixedSource float64

// Float64 implements RandomSource.
func (f FixedSource) Float64() float64 {
	return float64(f)
}

// Stream implements StreamFactory.
func (f FixedSource) Stream(string) RandomSource {
	return f
}

// MidpointSource places every LGD draw at the middle of its band.
var MidpointSource = FixedSource(0.5)
