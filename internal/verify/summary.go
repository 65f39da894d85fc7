package verify

import (
	"github.com/sudeepge/LAStools-M4/internal/las"
)

// IntRange tracks the min and max of raw integer coordinates. The zero value
// is unset; the first Add initializes both bounds.
type IntRange struct {
	min, max int32
	set      bool
}

// Add folds v into the range.
func (r *IntRange) Add(v int32) {
	if !r.set {
		r.min, r.max = v, v
		r.set = true
		return
	}
	if v < r.min {
		r.min = v
	}
	if v > r.max {
		r.max = v
	}
}

// Merge folds another range into r.
func (r *IntRange) Merge(o IntRange) {
	if o.set {
		r.Add(o.min)
		r.Add(o.max)
	}
}

// Set reports whether any value was added.
func (r *IntRange) Set() bool { return r.set }

// Min returns the smallest value added. Only meaningful when Set.
func (r *IntRange) Min() int32 { return r.min }

// Max returns the largest value added. Only meaningful when Set.
func (r *IntRange) Max() int32 { return r.max }

// MinMax tracks the min and max of a floating-point field. The zero value is
// unset, the sentinel for fields the point format does not carry.
type MinMax struct {
	min, max float64
	set      bool
}

// Add folds v into the range.
func (m *MinMax) Add(v float64) {
	if !m.set {
		m.min, m.max = v, v
		m.set = true
		return
	}
	if v < m.min {
		m.min = v
	}
	if v > m.max {
		m.max = v
	}
}

// Merge folds another range into m.
func (m *MinMax) Merge(o MinMax) {
	if o.set {
		m.Add(o.min)
		m.Add(o.max)
	}
}

// Set reports whether any value was added.
func (m *MinMax) Set() bool { return m.set }

// Min returns the smallest value added. Only meaningful when Set.
func (m *MinMax) Min() float64 { return m.min }

// Max returns the largest value added. Only meaningful when Set.
func (m *MinMax) Max() float64 { return m.max }

// Flagged counts points carrying a classification flag, with a breakdown by
// classification code.
type Flagged struct {
	Count   uint64
	ByClass [256]uint64
}

func (f *Flagged) add(class uint8) {
	f.Count++
	f.ByClass[class]++
}

func (f *Flagged) merge(o *Flagged) {
	f.Count += o.Count
	for i := range f.ByClass {
		f.ByClass[i] += o.ByClass[i]
	}
}

// Summary is the truth accumulated from one sequential pass over a point
// stream. It is built once per file and read-only after the pass: the
// cross-checker compares it against the header's declared values.
//
// Add is associative with the fresh summary as identity, so partial
// summaries over split streams combine with Merge.
type Summary struct {
	Count uint64

	// Raw quantized coordinate extrema.
	X, Y, Z IntRange

	// Return counters indexed by return number and by the pulse's number
	// of returns. Legal returns are 1-5 (legacy) or 1-15 (extended);
	// bucket 0 holds anomalous zero values.
	ByReturn [16]uint64
	ByPulse  [16]uint64

	First        uint64 // return number 1
	Last         uint64 // return number equals number of returns
	Single       uint64 // number of returns 1
	Intermediate uint64 // none of the other categories
	ZeroReturn   uint64
	ZeroPulse    uint64

	// Classification histograms: codes 0-31 (all formats), with codes
	// above 31 from extended formats counted separately.
	Classification         [32]uint64
	ExtendedClassification [256]uint64

	Synthetic Flagged
	KeyPoint  Flagged
	Withheld  Flagged
	Overlap   uint64 // extended formats only; no per-class breakdown

	Intensity   MinMax
	ScanAngle   MinMax
	UserData    MinMax
	PointSource MinMax
	GPSTime     MinMax
	Red         MinMax
	Green       MinMax
	Blue        MinMax
	NIR         MinMax

	WaveIndex    MinMax
	WaveOffset   MinMax
	WaveSize     MinMax
	WaveLocation MinMax

	// Extra attribute ranges, parallel to the descriptor table the summary
	// was built with.
	ExtraRanges []MinMax

	format uint8
	attrs  []las.ExtraAttr
}

// NewSummary returns a fresh summary for the given point format. attrs is
// the file's extra-bytes descriptor table, nil when it has none.
func NewSummary(format uint8, attrs []las.ExtraAttr) *Summary {
	return &Summary{
		format:      format,
		attrs:       attrs,
		ExtraRanges: make([]MinMax, len(attrs)),
	}
}

// Add folds one point into the summary. It never fails: malformed field
// values are accumulated as-is and surface later as header mismatches.
func (s *Summary) Add(p *las.Point) {
	s.Count++
	s.X.Add(p.X)
	s.Y.Add(p.Y)
	s.Z.Add(p.Z)

	rn, nr := p.ReturnNumber, p.NumberOfReturns
	s.ByReturn[rn&15]++
	s.ByPulse[nr&15]++
	if rn == 0 {
		s.ZeroReturn++
	}
	if nr == 0 {
		s.ZeroPulse++
	}
	if rn == 1 {
		s.First++
	}
	if rn == nr {
		s.Last++
	}
	if nr == 1 {
		s.Single++
	}
	if rn != 1 && rn != nr && nr != 1 {
		s.Intermediate++
	}

	extended := s.format >= 6
	if extended && p.Classification > 31 {
		s.ExtendedClassification[p.Classification]++
	} else {
		s.Classification[p.Classification&31]++
	}
	if p.Synthetic {
		s.Synthetic.add(p.Classification)
	}
	if p.KeyPoint {
		s.KeyPoint.add(p.Classification)
	}
	if p.Withheld {
		s.Withheld.add(p.Classification)
	}
	if extended && p.Overlap {
		s.Overlap++
	}

	s.Intensity.Add(float64(p.Intensity))
	s.ScanAngle.Add(float64(p.ScanAngle))
	s.UserData.Add(float64(p.UserData))
	s.PointSource.Add(float64(p.PointSourceID))
	if las.FormatHasGPS(s.format) {
		s.GPSTime.Add(p.GPSTime)
	}
	if las.FormatHasRGB(s.format) {
		s.Red.Add(float64(p.Red))
		s.Green.Add(float64(p.Green))
		s.Blue.Add(float64(p.Blue))
	}
	if las.FormatHasNIR(s.format) {
		s.NIR.Add(float64(p.NIR))
	}
	if las.FormatHasWave(s.format) {
		s.WaveIndex.Add(float64(p.Wave.DescriptorIndex))
		s.WaveOffset.Add(float64(p.Wave.ByteOffset))
		s.WaveSize.Add(float64(p.Wave.PacketSize))
		s.WaveLocation.Add(float64(p.Wave.ReturnLocation))
	}
	for i := range s.attrs {
		if v, ok := s.attrs[i].Value(p.Extra); ok {
			s.ExtraRanges[i].Add(v)
		}
	}
}

// Merge folds another summary into s. Both must have been built for the
// same point format and descriptor table.
func (s *Summary) Merge(o *Summary) {
	s.Count += o.Count
	s.X.Merge(o.X)
	s.Y.Merge(o.Y)
	s.Z.Merge(o.Z)
	for i := range s.ByReturn {
		s.ByReturn[i] += o.ByReturn[i]
		s.ByPulse[i] += o.ByPulse[i]
	}
	s.First += o.First
	s.Last += o.Last
	s.Single += o.Single
	s.Intermediate += o.Intermediate
	s.ZeroReturn += o.ZeroReturn
	s.ZeroPulse += o.ZeroPulse
	for i := range s.Classification {
		s.Classification[i] += o.Classification[i]
	}
	for i := range s.ExtendedClassification {
		s.ExtendedClassification[i] += o.ExtendedClassification[i]
	}
	s.Synthetic.merge(&o.Synthetic)
	s.KeyPoint.merge(&o.KeyPoint)
	s.Withheld.merge(&o.Withheld)
	s.Overlap += o.Overlap
	s.Intensity.Merge(o.Intensity)
	s.ScanAngle.Merge(o.ScanAngle)
	s.UserData.Merge(o.UserData)
	s.PointSource.Merge(o.PointSource)
	s.GPSTime.Merge(o.GPSTime)
	s.Red.Merge(o.Red)
	s.Green.Merge(o.Green)
	s.Blue.Merge(o.Blue)
	s.NIR.Merge(o.NIR)
	s.WaveIndex.Merge(o.WaveIndex)
	s.WaveOffset.Merge(o.WaveOffset)
	s.WaveSize.Merge(o.WaveSize)
	s.WaveLocation.Merge(o.WaveLocation)
	for i := range s.ExtraRanges {
		if i < len(o.ExtraRanges) {
			s.ExtraRanges[i].Merge(o.ExtraRanges[i])
		}
	}
}

// axisRange returns the raw coordinate range for an axis.
func (s *Summary) axisRange(axis int) *IntRange {
	switch axis {
	case las.X:
		return &s.X
	case las.Y:
		return &s.Y
	}
	return &s.Z
}

// FluffLevel classifies how many low decimal digits of an axis's stored
// integers are spurious, judged from the accumulated extrema: level 1 when
// min and max are multiples of 10, up to level 4 for multiples of 10000.
// Levels are tested finest first, so a reported level implies all lower
// levels hold. Purely diagnostic, never repaired.
func (s *Summary) FluffLevel(axis int) int {
	r := s.axisRange(axis)
	if !r.set {
		return 0
	}
	level := 0
	for div := int64(10); level < 4; div *= 10 {
		if int64(r.min)%div != 0 || int64(r.max)%div != 0 {
			break
		}
		level++
	}
	return level
}
