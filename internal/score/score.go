// Package score normalizes heterogeneous raw scores onto the canonical 0-20
// scale used by the aggregation engine.
package score

import (
	"errors"
	"math"
)

// Scale is the canonical maximum every score is normalized onto.
const Scale = 20.0

// ErrInvalidDenominator indicates a zero or negative max_points value.
var ErrInvalidDenominator = errors.New("max points must be greater than zero")

// FromPoints converts an absolute score on an arbitrary max_points scale to
// the canonical scale. A non-positive denominator fails fast rather than
// producing NaN or Inf.
func FromPoints(raw, maxPoints float64) (float64, error) {
	if maxPoints <= 0 {
		return 0, ErrInvalidDenominator
	}
	return raw / maxPoints * Scale, nil
}

// FromPercentage converts a 0-100 percentage to the canonical scale.
func FromPercentage(percentage float64) float64 {
	return percentage / 100 * Scale
}

// Percentage converts an absolute score to a 0-100 percentage.
func Percentage(raw, maxPoints float64) (float64, error) {
	if maxPoints <= 0 {
		return 0, ErrInvalidDenominator
	}
	return raw / maxPoints * 100, nil
}

// Round2 rounds to two decimal places. Averages are rounded once, at the
// point of storage, so repeated aggregations do not drift.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
