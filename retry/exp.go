package retry

import (
	"time"
)

// ExpConfig configures exponential backoff.
type ExpConfig struct {
	Min     time.Duration
	Max     time.Duration
	Scale   float64
	Instant bool // if false, the first delay of a sequence is 0
}

// Delays implements Config.
func (ec ExpConfig) Delays() DelayFn {
	current, zero := ec.Min, !ec.Instant
	return func() (time.Duration, bool) {
		if zero {
			zero = false
			return 0, true
		}
		d := current
		current = time.Duration(float64(current) * ec.Scale)
		if current > ec.Max {
			current = ec.Max
		}
		return d, true
	}
}

// DefaultExpConfig is a suggested backoff configuration.
var DefaultExpConfig = ExpConfig{
	Min:   10 * time.Millisecond,
	Max:   1 * time.Minute,
	Scale: 2.0,
}
