package sim

import "math"

// VTime is a point in simulated time, in the design's time unit.
type VTime uint64

// MaxTime is the largest representable simulated time.
const MaxTime = VTime(math.MaxUint64)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTime
}

// A Step identifies one delta cycle within a time step.
type Step struct {
	Time  VTime
	Delta int
}
