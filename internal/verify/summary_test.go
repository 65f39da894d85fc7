package verify

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

func TestSummaryCategories(t *testing.T) {
	s := NewSummary(1, nil)
	points := []struct{ rn, nr uint8 }{
		{1, 3}, // first
		{2, 3}, // intermediate
		{3, 3}, // last
		{1, 1}, // first, last and single
		{0, 2}, // intermediate: none of the other categories
	}
	for _, pt := range points {
		s.Add(&las.Point{ReturnNumber: pt.rn, NumberOfReturns: pt.nr})
	}

	if s.Count != 5 {
		t.Errorf("Count = %d, want 5", s.Count)
	}
	if s.First != 2 || s.Intermediate != 2 || s.Last != 2 || s.Single != 1 {
		t.Errorf("categories = first %d, intermediate %d, last %d, single %d, want 2, 2, 2, 1",
			s.First, s.Intermediate, s.Last, s.Single)
	}
	if s.ZeroReturn != 1 || s.ZeroPulse != 0 {
		t.Errorf("zero counters = %d, %d, want 1, 0", s.ZeroReturn, s.ZeroPulse)
	}
	wantByReturn := [16]uint64{0: 1, 1: 2, 2: 1, 3: 1}
	if s.ByReturn != wantByReturn {
		t.Errorf("ByReturn = %v, want %v", s.ByReturn, wantByReturn)
	}
	wantByPulse := [16]uint64{1: 1, 2: 1, 3: 3}
	if s.ByPulse != wantByPulse {
		t.Errorf("ByPulse = %v, want %v", s.ByPulse, wantByPulse)
	}
}

func TestSummaryClassification(t *testing.T) {
	ext := NewSummary(6, nil)
	ext.Add(&las.Point{Classification: 2})
	ext.Add(&las.Point{Classification: 200})
	if ext.Classification[2] != 1 {
		t.Errorf("Classification[2] = %d, want 1", ext.Classification[2])
	}
	if ext.ExtendedClassification[200] != 1 {
		t.Errorf("ExtendedClassification[200] = %d, want 1", ext.ExtendedClassification[200])
	}

	legacy := NewSummary(0, nil)
	legacy.Add(&las.Point{Classification: 31})
	if legacy.Classification[31] != 1 {
		t.Errorf("Classification[31] = %d, want 1", legacy.Classification[31])
	}
}

// TestSummaryFlags checks that the flag counters are independent bits, not
// exclusive states, and that overlap only counts on extended formats.
func TestSummaryFlags(t *testing.T) {
	s := NewSummary(6, nil)
	s.Add(&las.Point{Classification: 7, Synthetic: true, Withheld: true, Overlap: true})
	s.Add(&las.Point{Classification: 7, KeyPoint: true})

	if s.Synthetic.Count != 1 || s.Synthetic.ByClass[7] != 1 {
		t.Errorf("Synthetic = %d (class 7: %d), want 1 (1)", s.Synthetic.Count, s.Synthetic.ByClass[7])
	}
	if s.Withheld.Count != 1 || s.KeyPoint.Count != 1 {
		t.Errorf("Withheld = %d, KeyPoint = %d, want 1, 1", s.Withheld.Count, s.KeyPoint.Count)
	}
	if s.Overlap != 1 {
		t.Errorf("Overlap = %d, want 1", s.Overlap)
	}

	legacy := NewSummary(1, nil)
	legacy.Add(&las.Point{Overlap: true})
	if legacy.Overlap != 0 {
		t.Errorf("legacy format Overlap = %d, want 0", legacy.Overlap)
	}
}

// TestSummaryGating checks that absent fields keep their unset sentinel.
func TestSummaryGating(t *testing.T) {
	p := las.Point{GPSTime: 5, Red: 9, NIR: 3, Wave: las.WavePacket{PacketSize: 100}, Intensity: 40}

	s0 := NewSummary(0, nil)
	s0.Add(&p)
	if s0.GPSTime.Set() || s0.Red.Set() || s0.NIR.Set() || s0.WaveSize.Set() {
		t.Error("format 0 summary tracked fields the format does not carry")
	}
	if !s0.Intensity.Set() || s0.Intensity.Max() != 40 {
		t.Errorf("Intensity = %+v, want max 40", s0.Intensity)
	}

	s8 := NewSummary(8, nil)
	s8.Add(&p)
	if !s8.GPSTime.Set() || !s8.Red.Set() || !s8.NIR.Set() {
		t.Error("format 8 summary skipped gps, rgb or nir")
	}
	if s8.WaveSize.Set() {
		t.Error("format 8 summary tracked wave packets")
	}

	s10 := NewSummary(10, nil)
	s10.Add(&p)
	if !s10.WaveSize.Set() || s10.WaveSize.Max() != 100 {
		t.Errorf("WaveSize = %+v, want max 100", s10.WaveSize)
	}
}

func mixedPoint(i int) *las.Point {
	return &las.Point{
		X: int32(100*i - 311), Y: int32(-40 * i), Z: int32(7 * i),
		Intensity:       uint16(i * 11),
		ReturnNumber:    uint8(i % 4),
		NumberOfReturns: uint8(i%3 + 1),
		Classification:  uint8(i * 17),
		Synthetic:       i%2 == 0,
		Withheld:        i%5 == 0,
		ScanAngle:       int16(i - 5),
		PointSourceID:   uint16(4000 + i),
		GPSTime:         float64(i) * 99.5,
		Red:             uint16(i * 1000), Green: uint16(i * 500), Blue: uint16(i),
	}
}

func TestSummaryMerge(t *testing.T) {
	whole := NewSummary(7, nil)
	left := NewSummary(7, nil)
	right := NewSummary(7, nil)
	for i := 0; i < 10; i++ {
		p := mixedPoint(i)
		whole.Add(p)
		if i < 4 {
			left.Add(p)
		} else {
			right.Add(p)
		}
	}

	left.Merge(right)
	if !reflect.DeepEqual(left, whole) {
		t.Errorf("merged summary differs from whole-stream summary:\n got %+v\nwant %+v", left, whole)
	}

	// Identity: merging a fresh summary changes nothing.
	whole.Merge(NewSummary(7, nil))
	if !reflect.DeepEqual(left, whole) {
		t.Error("merging the identity summary changed the result")
	}
}

func TestFluffLevel(t *testing.T) {
	tests := []struct {
		name   string
		values []int32
		want   int
	}{
		{"no values", nil, 0},
		{"off grid", []int32{7, 123}, 0},
		{"tens", []int32{120, 340}, 1},
		{"hundreds", []int32{1200, 300}, 2},
		{"negative hundreds", []int32{-1200, -300}, 2},
		{"ten thousands", []int32{10000, 20000}, 4},
		{"mixed extrema", []int32{100, 340, 220}, 1},
		{"one bad extremum", []int32{100, 341}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummary(0, nil)
			for _, v := range tt.values {
				s.Add(&las.Point{X: v})
			}
			got := s.FluffLevel(las.X)
			if got != tt.want {
				t.Errorf("FluffLevel = %d, want %d", got, tt.want)
			}
			// A reported level implies every finer level holds.
			for k := 1; k <= got; k++ {
				if int64(s.X.Min())%pow10(k) != 0 || int64(s.X.Max())%pow10(k) != 0 {
					t.Errorf("level %d reported but level %d fails", got, k)
				}
			}
		})
	}
}

func TestSummaryExtraRanges(t *testing.T) {
	vlr := las.VLR{RecordID: las.ExtraBytesRecordID, Body: las.EncodeExtraBytesDescriptor("height", 3, 0)}
	copy(vlr.UserID[:], las.ExtraBytesUserID)
	attrs := las.ParseExtraBytes(&vlr)

	s := NewSummary(1, attrs)
	for _, v := range []uint16{500, 20, 310} {
		extra := make([]byte, 2)
		binary.LittleEndian.PutUint16(extra, v)
		s.Add(&las.Point{Extra: extra})
	}
	s.Add(&las.Point{}) // no payload: skipped, not zero

	if len(s.ExtraRanges) != 1 || !s.ExtraRanges[0].Set() {
		t.Fatalf("ExtraRanges = %+v, want one tracked range", s.ExtraRanges)
	}
	if s.ExtraRanges[0].Min() != 20 || s.ExtraRanges[0].Max() != 500 {
		t.Errorf("height range = [%g, %g], want [20, 500]", s.ExtraRanges[0].Min(), s.ExtraRanges[0].Max())
	}
}
