package verify

import "testing"

func TestIsQuantizedTolerance(t *testing.T) {
	grids := []struct {
		offset, scale float64
	}{
		{0, 1},
		{500000, 0.001},
		{-2000, 0.01},
		{0, 0.25},
	}
	for _, g := range grids {
		for _, n := range []float64{-12345, 0, 7, 99999} {
			exact := g.offset + n*g.scale
			if !IsQuantized(exact, g.offset, g.scale) {
				t.Errorf("IsQuantized(%v, %v, %v) = false for an exact grid value", exact, g.offset, g.scale)
			}
			within := g.offset + (n+0.0009)*g.scale
			if !IsQuantized(within, g.offset, g.scale) {
				t.Errorf("IsQuantized(%v, %v, %v) = false at 0.0009 steps off grid", within, g.offset, g.scale)
			}
			outside := g.offset + (n+0.002)*g.scale
			if IsQuantized(outside, g.offset, g.scale) {
				t.Errorf("IsQuantized(%v, %v, %v) = true at 0.002 steps off grid", outside, g.offset, g.scale)
			}
		}
	}
}
