package util

import (
	"math/rand"
	"time"
)

// RandomRange returns a uniformly distributed value in [min, max).
func RandomRange(rng *rand.Rand, min float64, max float64) float64 {
	return rng.Float64()*(max-min) + min
}

// Jitter returns a symmetric offset in [-amount, amount).
func Jitter(rng *rand.Rand, amount float64) float64 {
	return (rng.Float64() - 0.5) * amount * 2
}

// VariationFactor returns a multiplier within ±percent% of 1.
func VariationFactor(rng *rand.Rand, percent float64) float64 {
	return 1 + Jitter(rng, percent/100)
}

// Clamp limits v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// RandomDuration returns a duration in [min, max).
func RandomDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
