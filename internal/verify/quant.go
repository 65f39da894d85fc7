package verify

import "math"

// quantTolerance bounds how far a back-computed scale multiplier may sit
// from an integer before a coordinate counts as off-grid. Exact equality is
// the wrong test: header extrema round-trip through text and arithmetic and
// pick up sub-quantum noise.
const quantTolerance = 0.001

// IsQuantized reports whether v lies on the grid offset + n*scale for some
// integer n, within quantTolerance of a step.
func IsQuantized(v, offset, scale float64) bool {
	q := (v - offset) / scale
	return math.Abs(q-math.Round(q)) < quantTolerance
}
