package las_test

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

// legacyPoint fits the format 0-5 field ranges (3-bit returns, 5-bit class,
// signed byte scan angle).
func legacyPoint() las.Point {
	return las.Point{
		X: -150000, Y: 2400000, Z: 8900,
		Intensity:       812,
		ReturnNumber:    2,
		NumberOfReturns: 3,
		ScanDirection:   true,
		Classification:  5,
		Synthetic:       true,
		Withheld:        true,
		ScanAngle:       -12,
		UserData:        7,
		PointSourceID:   3001,
		GPSTime:         123456.789,
		Red:             1000, Green: 2000, Blue: 3000,
		Wave: las.WavePacket{
			DescriptorIndex: 1,
			ByteOffset:      4096,
			PacketSize:      256,
			ReturnLocation:  1.5,
			Xt:              0.1, Yt: 0.2, Zt: -0.9,
		},
	}
}

func extendedPoint() las.Point {
	p := legacyPoint()
	p.ReturnNumber = 11
	p.NumberOfReturns = 14
	p.ScannerChannel = 2
	p.Overlap = true
	p.Classification = 200
	p.ScanAngle = -2500
	p.NIR = 4000
	return p
}

// trimForFormat zeroes the fields a format does not carry, producing the
// expected result of an encode/decode round trip.
func trimForFormat(p las.Point, format uint8) las.Point {
	if !las.FormatHasGPS(format) {
		p.GPSTime = 0
	}
	if !las.FormatHasRGB(format) {
		p.Red, p.Green, p.Blue = 0, 0, 0
	}
	if !las.FormatHasNIR(format) {
		p.NIR = 0
	}
	if !las.FormatHasWave(format) {
		p.Wave = las.WavePacket{}
	}
	return p
}

func TestPointRoundTrip(t *testing.T) {
	for format := uint8(0); format <= las.MaxPointFormat; format++ {
		in := extendedPoint()
		if format < 6 {
			in = legacyPoint()
		}
		want := trimForFormat(in, format)

		buf := las.EncodePoint(&in, format, las.PointRecordLen(format))
		if len(buf) != int(las.PointRecordLen(format)) {
			t.Fatalf("format %d: EncodePoint length = %d, want %d", format, len(buf), las.PointRecordLen(format))
		}
		var got las.Point
		las.DecodePoint(buf, format, &got)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("format %d round trip:\n got %+v\nwant %+v", format, got, want)
		}
	}
}

// TestDecodePointLegacyBits pins the legacy bit layout against hand-built
// bytes rather than the encoder.
func TestDecodePointLegacyBits(t *testing.T) {
	buf := make([]byte, 20)
	buf[14] = 0xCA // returns 010, pulse 001, direction 1, edge 1
	buf[15] = 0xAA // class 01010, synthetic 1, key-point 0, withheld 1
	buf[16] = 0xF4 // scan angle rank -12

	var p las.Point
	las.DecodePoint(buf, 0, &p)
	if p.ReturnNumber != 2 || p.NumberOfReturns != 1 {
		t.Errorf("returns = %d of %d, want 2 of 1", p.ReturnNumber, p.NumberOfReturns)
	}
	if !p.ScanDirection || !p.EdgeOfFlight {
		t.Errorf("direction/edge = %v/%v, want true/true", p.ScanDirection, p.EdgeOfFlight)
	}
	if p.Classification != 10 {
		t.Errorf("classification = %d, want 10", p.Classification)
	}
	if !p.Synthetic || p.KeyPoint || !p.Withheld {
		t.Errorf("flags = %v/%v/%v, want true/false/true", p.Synthetic, p.KeyPoint, p.Withheld)
	}
	if p.ScanAngle != -12 {
		t.Errorf("scan angle = %d, want -12", p.ScanAngle)
	}
}

func TestDecodePointExtendedBits(t *testing.T) {
	buf := make([]byte, 30)
	buf[14] = 0x53 // return 3 of 5
	buf[15] = 0xB9 // synthetic 1, withheld 0, overlap 1, channel 3, edge 1
	buf[16] = 200 // full classification byte
	angle := int16(-2500)
	binary.LittleEndian.PutUint16(buf[18:20], uint16(angle))

	var p las.Point
	las.DecodePoint(buf, 6, &p)
	if p.ReturnNumber != 3 || p.NumberOfReturns != 5 {
		t.Errorf("returns = %d of %d, want 3 of 5", p.ReturnNumber, p.NumberOfReturns)
	}
	if !p.Synthetic || p.KeyPoint || p.Withheld || !p.Overlap {
		t.Errorf("flags = %v/%v/%v/%v, want true/false/false/true",
			p.Synthetic, p.KeyPoint, p.Withheld, p.Overlap)
	}
	if p.ScannerChannel != 3 {
		t.Errorf("scanner channel = %d, want 3", p.ScannerChannel)
	}
	if p.ScanDirection || !p.EdgeOfFlight {
		t.Errorf("direction/edge = %v/%v, want false/true", p.ScanDirection, p.EdgeOfFlight)
	}
	if p.Classification != 200 {
		t.Errorf("classification = %d, want 200", p.Classification)
	}
	if p.ScanAngle != -2500 {
		t.Errorf("scan angle = %d, want -2500", p.ScanAngle)
	}
}

func TestPointExtraBytes(t *testing.T) {
	in := legacyPoint()
	in.Extra = []byte{0xDE, 0xAD, 0xBE}
	recLen := las.PointRecordLen(0) + 3

	buf := las.EncodePoint(&in, 0, recLen)
	var got las.Point
	las.DecodePoint(buf, 0, &got)
	if !bytes.Equal(got.Extra, in.Extra) {
		t.Errorf("extra = % x, want % x", got.Extra, in.Extra)
	}
}

// TestDecodePointResets confirms decoding overwrites every field, since the
// reader reuses one Point across records.
func TestDecodePointResets(t *testing.T) {
	p := extendedPoint()
	las.DecodePoint(make([]byte, 20), 0, &p)
	if !reflect.DeepEqual(p, las.Point{}) {
		t.Errorf("decode of zero record left stale fields: %+v", p)
	}
}
