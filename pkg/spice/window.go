package spice

import "math"

// nextWindow returns the sweep window for a retry attempt. Attempt 0 is
// the window the caller computed; attempt 1 sweeps symmetrically around
// zero; attempt 2 is the broadened rescue window. The span magnitude of
// the original window parameterizes both fallbacks.
func nextWindow(attempt int, start, span float64) (float64, float64) {
	mag := math.Abs(span)
	switch attempt {
	case 0:
		return start, span
	case 1:
		return -mag, 2 * mag
	default:
		lo := -math.Max(3.3, mag)
		hi := math.Max(6.6, mag)
		return lo, hi - lo
	}
}
