package tracing

import "math/rand/v2"

// Sampler decides whether a fresh trace is recorded.
type Sampler interface {
	Sample() bool
}

type rateSampler struct {
	rate float64
}

// NewRateSampler samples fresh traces with probability rate.
func NewRateSampler(rate float64) Sampler {
	return rateSampler{rate: rate}
}

func (s rateSampler) Sample() bool {
	switch {
	case s.rate >= 1:
		return true
	case s.rate <= 0:
		return false
	default:
		return rand.Float64() < s.rate
	}
}
