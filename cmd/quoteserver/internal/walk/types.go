package walk

import "math/rand"

// for deterministic values
type Rand interface {
	Float64() float64
}

type RealRand struct{ *rand.Rand }

func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// NewRealRand seeds a private source. Not safe for concurrent use.
func NewRealRand(seed int64) RealRand {
	return RealRand{rand.New(rand.NewSource(seed))}
}
