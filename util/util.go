// Package util contains misc internal utilities.
package util

import (
	"math"
	"time"
)

// Clamp limits f to the range [low, high]
func Clamp(f, low, high float64) float64 {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// SecsToDuration converts a floating point number of seconds to a Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// ModDegrees normalizes an angle in degrees into [0, 360).  Negative inputs
// wrap, e.g. -10 => 350, which is the convention both rotation stage
// controllers expect for absolute moves.
func ModDegrees(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}
