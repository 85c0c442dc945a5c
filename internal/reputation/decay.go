package reputation

import (
	"math"
	"time"
)

const hoursPerDay = 24

// DecayWeight computes exp(-rate*ageDays). A zero rate disables decay.
func DecayWeight(ageDays, rate float64) float64 {
	if rate <= 0 || ageDays <= 0 {
		return 1
	}
	return math.Exp(-rate * ageDays)
}

// AgeDays returns the age of ts relative to ref in fractional days,
// floored at zero so edges newer than the reference never gain weight.
func AgeDays(ref, ts time.Time) float64 {
	if !ts.Before(ref) {
		return 0
	}
	return ref.Sub(ts).Hours() / hoursPerDay
}
