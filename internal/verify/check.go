package verify

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

// Mode selects which correction families a pass may schedule. The zero
// value checks only.
type Mode uint8

const (
	RepairCounters Mode = 1 << iota
	RepairBBox
)

// RepairAll enables every correction family.
const RepairAll = RepairCounters | RepairBBox

// Warning is one verification finding. Fixed marks findings whose
// correction was scheduled in the same pass.
type Warning struct {
	Field   string
	Message string
	Fixed   bool
}

// bboxSlack enlarges the declared bounding box by a quarter of a scale
// factor in check-only comparisons, absorbing quantization edge effects.
// Fixed design constant.
const bboxSlack = 0.25

// Check compares the accumulated truth against the header's declared
// values. It returns the corrections scheduled by the enabled repair
// families and the findings behind them; with no family enabled the patch
// list is empty and every finding is a plain warning.
//
// Corrections never overlap: each targets its own fixed header field, and
// the six bounding box extrema travel as one patch. Every comparison runs
// against the literal header value, so a second pass over a repaired file
// schedules nothing.
func Check(h *las.Header, s *Summary, mode Mode) ([]las.Patch, []Warning) {
	c := &checker{h: h, s: s, mode: mode}
	c.checkQuantization()
	c.checkCounters()
	c.checkBoundingBox()
	c.checkData()
	return c.patches, c.warnings
}

type checker struct {
	h        *las.Header
	s        *Summary
	mode     Mode
	patches  []las.Patch
	warnings []Warning
}

func (c *checker) warnf(field string, fixed bool, format string, args ...any) {
	c.warnings = append(c.warnings, Warning{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Fixed:   fixed,
	})
}

// legacyValue maps a true count onto a legacy 32-bit counter field.
// Extended point formats define the field as zero whatever the count. For
// legacy formats the count is written when it fits; a count beyond 32 bits
// is pinned to zero when 64-bit counters exist to hold the truth, and has
// no representation at all otherwise.
func legacyValue(h *las.Header, truth uint64) (v uint32, representable bool) {
	switch {
	case h.HasExtendedPointTypes():
		return 0, true
	case truth <= math.MaxUint32:
		return uint32(truth), true
	case h.HasExtendedCounters():
		return 0, true
	}
	return 0, false
}

func (c *checker) checkCounters() {
	repair := c.mode&RepairCounters != 0
	h, s := c.h, c.s

	c.checkLegacyCounter("legacy point count", las.OffLegacyNumberOfPoints,
		h.LegacyNumberOfPoints, s.Count, repair)
	for i := 0; i < 5; i++ {
		c.checkLegacyCounter(fmt.Sprintf("legacy return %d count", i+1),
			las.OffLegacyPointsByReturn+int64(4*i),
			h.LegacyPointsByReturn[i], s.ByReturn[i+1], repair)
	}

	if !h.HasExtendedCounters() {
		return
	}
	if h.NumberOfPoints != s.Count {
		if repair {
			c.patches = append(c.patches, las.PatchUint64(las.OffNumberOfPoints, s.Count))
		}
		c.warnf("point count", repair, "real count %d, header says %d", s.Count, h.NumberOfPoints)
	}
	for i := 0; i < 15; i++ {
		truth := s.ByReturn[i+1]
		if h.PointsByReturn[i] != truth {
			if repair {
				c.patches = append(c.patches, las.PatchUint64(las.OffPointsByReturn+int64(8*i), truth))
			}
			c.warnf(fmt.Sprintf("return %d count", i+1), repair,
				"real count %d, header says %d", truth, h.PointsByReturn[i])
		}
	}
}

func (c *checker) checkLegacyCounter(field string, offset int64, declared uint32, truth uint64, repair bool) {
	want, ok := legacyValue(c.h, truth)
	if !ok {
		c.warnf(field, false, "real count %d exceeds 32 bits and version 1.%d has no 64-bit counters",
			truth, c.h.VersionMinor)
		return
	}
	if declared == want {
		return
	}
	if repair {
		c.patches = append(c.patches, las.PatchUint32(offset, want))
	}
	switch {
	case c.h.HasExtendedPointTypes():
		c.warnf(field, repair, "must be zero for point format %d, header says %d",
			c.h.PointFormat, declared)
	case truth > math.MaxUint32:
		c.warnf(field, repair, "real count %d only fits the 64-bit counter; legacy field pinned to zero", truth)
	default:
		c.warnf(field, repair, "real count %d, header says %d", truth, declared)
	}
}

// Bounding box on disk: max then min per axis, x before y before z, six
// contiguous doubles.
func (c *checker) checkBoundingBox() {
	h, s := c.h, c.s
	if !s.X.Set() {
		return // no points, no truth
	}
	var realMin, realMax [3]float64
	for axis := las.X; axis <= las.Z; axis++ {
		r := s.axisRange(axis)
		realMin[axis] = h.Coordinate(axis, r.Min())
		realMax[axis] = h.Coordinate(axis, r.Max())
	}

	if c.mode&RepairBBox != 0 {
		differs := false
		for axis := las.X; axis <= las.Z; axis++ {
			name := axisName(axis)
			if math.Float64bits(realMax[axis]) != math.Float64bits(h.Max[axis]) {
				differs = true
				c.warnf("max "+name, true, "real value %.8f, header says %.8f", realMax[axis], h.Max[axis])
			}
			if math.Float64bits(realMin[axis]) != math.Float64bits(h.Min[axis]) {
				differs = true
				c.warnf("min "+name, true, "real value %.8f, header says %.8f", realMin[axis], h.Min[axis])
			}
		}
		if differs {
			// All six extrema travel as one correction; a half-repaired
			// box must not survive a failure between writes.
			buf := make([]byte, 48)
			for axis := las.X; axis <= las.Z; axis++ {
				binary.LittleEndian.PutUint64(buf[16*axis:], math.Float64bits(realMax[axis]))
				binary.LittleEndian.PutUint64(buf[16*axis+8:], math.Float64bits(realMin[axis]))
			}
			c.patches = append(c.patches, las.Patch{Offset: las.OffBoundingBox, Data: buf})
		}
		return
	}

	// Check only: compare against the box enlarged by a quarter scale
	// factor and warn when the truth falls outside it.
	for axis := las.X; axis <= las.Z; axis++ {
		name := axisName(axis)
		slack := bboxSlack * math.Abs(h.Scale[axis])
		if realMax[axis] > h.Max[axis]+slack {
			c.warnf("max "+name, false, "real value %.8f outside declared %.8f", realMax[axis], h.Max[axis])
		}
		if realMin[axis] < h.Min[axis]-slack {
			c.warnf("min "+name, false, "real value %.8f outside declared %.8f", realMin[axis], h.Min[axis])
		}
	}
}

func (c *checker) checkQuantization() {
	h := c.h
	for axis := las.X; axis <= las.Z; axis++ {
		name := axisName(axis)
		if !IsQuantized(h.Min[axis], h.Offset[axis], h.Scale[axis]) {
			c.warnf("min "+name+" quantization", false, "stored value %.8f is not %s offset %g plus a multiple of scale %g",
				h.Min[axis], name, h.Offset[axis], h.Scale[axis])
		}
		if !IsQuantized(h.Max[axis], h.Offset[axis], h.Scale[axis]) {
			c.warnf("max "+name+" quantization", false, "stored value %.8f is not %s offset %g plus a multiple of scale %g",
				h.Max[axis], name, h.Offset[axis], h.Scale[axis])
		}
	}
}

// checkData reports stream-level oddities no correction exists for.
func (c *checker) checkData() {
	h, s := c.h, c.s
	if s.ZeroReturn > 0 {
		c.warnf("return number", false, "%d points with return number 0", s.ZeroReturn)
	}
	if s.ZeroPulse > 0 {
		c.warnf("number of returns", false, "%d points with number of returns 0", s.ZeroPulse)
	}
	if !h.HasExtendedCounters() {
		var tail uint64
		for i := 6; i < len(s.ByReturn); i++ {
			tail += s.ByReturn[i]
		}
		if tail > 0 {
			c.warnf("return number", false, "%d points with return numbers above 5 have no by-return counter", tail)
		}
	}
	if h.GPSWeekTime() && s.GPSTime.Set() {
		if s.GPSTime.Min() < 0 || s.GPSTime.Max() >= 604800 {
			c.warnf("gps time", false, "week seconds range [%g, %g] outside [0, 604800)",
				s.GPSTime.Min(), s.GPSTime.Max())
		}
	}
	if s.Red.Set() {
		top := math.Max(s.Red.Max(), math.Max(s.Green.Max(), s.Blue.Max()))
		if top > 0 && top <= 255 {
			c.warnf("rgb", false, "all color values fit 8 bits; 16-bit channels look upsampled")
		}
	}
	for axis := las.X; axis <= las.Z; axis++ {
		if level := s.FluffLevel(axis); level > 0 {
			c.warnf(axisName(axis)+" resolution", false,
				"stored %s coordinates are all multiples of %d; real resolution is coarser than scale %g",
				axisName(axis), pow10(level), h.Scale[axis])
		}
	}
}

func axisName(axis int) string { return strings.ToLower(las.AxisName(axis)) }

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
