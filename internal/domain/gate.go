package domain

import "math"

// DefaultThresholdMeters is the proximity at which a hazard becomes actionable.
const DefaultThresholdMeters = 500.0

// Gate decides whether a nearest result warrants an alert.
type Gate struct {
	ThresholdMeters float64
}

// NewGate returns a gate with the given threshold, or the default when it is not positive.
func NewGate(thresholdMeters float64) Gate {
	if thresholdMeters <= 0 || math.IsNaN(thresholdMeters) {
		thresholdMeters = DefaultThresholdMeters
	}
	return Gate{ThresholdMeters: thresholdMeters}
}

// Actionable reports whether a found result lies within the threshold (inclusive).
func (g Gate) Actionable(result NearestResult, ok bool) bool {
	if !ok || math.IsNaN(result.DistanceMeters) {
		return false
	}
	return result.DistanceMeters <= g.ThresholdMeters
}
