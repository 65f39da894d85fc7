package las

import (
	"encoding/binary"
	"math"
)

// Point data record formats (little-endian)
//
// Legacy formats 0-5 share a 20-byte core:
//   0  4  X (i32)         14 1  return number (bits 0-2), number of returns
//   4  4  Y (i32)               (bits 3-5), scan direction (6), edge (7)
//   8  4  Z (i32)         15 1  classification (bits 0-4), synthetic (5),
//   12 2  intensity             key-point (6), withheld (7)
//                          16 1  scan angle rank (i8, degrees)
//                          17 1  user data
//                          18 2  point source ID
//   format 1: + GPS time (f64)         format 2: + red, green, blue (u16)
//   format 3: + GPS time + RGB         format 4: format 1 + wave packet
//   format 5: format 3 + wave packet
//
// Extended formats 6-10 share a 30-byte core:
//   0  4  X               14 1  return number (bits 0-3), number of
//   4  4  Y                     returns (bits 4-7)
//   8  4  Z               15 1  synthetic (0), key-point (1), withheld (2),
//   12 2  intensity             overlap (3), scanner channel (4-5),
//                                scan direction (6), edge (7)
//                          16 1  classification (full byte)
//                          17 1  user data
//                          18 2  scan angle (i16, 0.006 degree units)
//                          20 2  point source ID
//                          22 8  GPS time
//   format 7: + RGB        format 8: + RGB + NIR
//   format 9: + wave packet        format 10: + RGB + NIR + wave packet
//
// A wave packet is 29 bytes: descriptor index (u8), byte offset (u64),
// packet size (u32), return point location (f32), Xt, Yt, Zt (f32).

// Point is one decoded point record. Fields beyond the core are only
// meaningful for formats that carry them (see FormatHasGPS and friends).
type Point struct {
	X, Y, Z          int32 // raw quantized coordinates
	Intensity        uint16
	ReturnNumber     uint8
	NumberOfReturns  uint8
	ScannerChannel   uint8
	ScanDirection    bool
	EdgeOfFlight     bool
	Classification   uint8
	Synthetic        bool
	KeyPoint         bool
	Withheld         bool
	Overlap          bool
	ScanAngle        int16 // degrees for formats 0-5, 0.006 degree units for 6-10
	UserData         uint8
	PointSourceID    uint16
	GPSTime          float64
	Red, Green, Blue uint16
	NIR              uint16
	Wave             WavePacket
	Extra            []byte // bytes past the standard record layout
}

// WavePacket is the waveform packet carried by formats 4, 5, 9 and 10.
type WavePacket struct {
	DescriptorIndex uint8
	ByteOffset      uint64
	PacketSize      uint32
	ReturnLocation  float32
	Xt, Yt, Zt      float32
}

// DecodePoint decodes one point record of the given format into p. buf must
// be the full record (PointRecordLen(format) bytes or more); bytes past the
// standard layout are exposed as p.Extra, aliasing buf.
func DecodePoint(buf []byte, format uint8, p *Point) {
	*p = Point{}
	p.X = int32(binary.LittleEndian.Uint32(buf[0:4]))
	p.Y = int32(binary.LittleEndian.Uint32(buf[4:8]))
	p.Z = int32(binary.LittleEndian.Uint32(buf[8:12]))
	p.Intensity = binary.LittleEndian.Uint16(buf[12:14])

	var off int
	if format >= 6 {
		b := buf[14]
		p.ReturnNumber = b & 0x0F
		p.NumberOfReturns = b >> 4
		f := buf[15]
		p.Synthetic = f&0x01 != 0
		p.KeyPoint = f&0x02 != 0
		p.Withheld = f&0x04 != 0
		p.Overlap = f&0x08 != 0
		p.ScannerChannel = (f >> 4) & 0x03
		p.ScanDirection = f&0x40 != 0
		p.EdgeOfFlight = f&0x80 != 0
		p.Classification = buf[16]
		p.UserData = buf[17]
		p.ScanAngle = int16(binary.LittleEndian.Uint16(buf[18:20]))
		p.PointSourceID = binary.LittleEndian.Uint16(buf[20:22])
		p.GPSTime = math.Float64frombits(binary.LittleEndian.Uint64(buf[22:30]))
		off = 30
	} else {
		b := buf[14]
		p.ReturnNumber = b & 0x07
		p.NumberOfReturns = (b >> 3) & 0x07
		p.ScanDirection = b&0x40 != 0
		p.EdgeOfFlight = b&0x80 != 0
		c := buf[15]
		p.Classification = c & 0x1F
		p.Synthetic = c&0x20 != 0
		p.KeyPoint = c&0x40 != 0
		p.Withheld = c&0x80 != 0
		p.ScanAngle = int16(int8(buf[16]))
		p.UserData = buf[17]
		p.PointSourceID = binary.LittleEndian.Uint16(buf[18:20])
		off = 20
		if FormatHasGPS(format) {
			p.GPSTime = math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
			off += 8
		}
	}
	if FormatHasRGB(format) {
		p.Red = binary.LittleEndian.Uint16(buf[off : off+2])
		p.Green = binary.LittleEndian.Uint16(buf[off+2 : off+4])
		p.Blue = binary.LittleEndian.Uint16(buf[off+4 : off+6])
		off += 6
	}
	if FormatHasNIR(format) {
		p.NIR = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
	}
	if FormatHasWave(format) {
		p.Wave.DescriptorIndex = buf[off]
		p.Wave.ByteOffset = binary.LittleEndian.Uint64(buf[off+1 : off+9])
		p.Wave.PacketSize = binary.LittleEndian.Uint32(buf[off+9 : off+13])
		p.Wave.ReturnLocation = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+13 : off+17]))
		p.Wave.Xt = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+17 : off+21]))
		p.Wave.Yt = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+21 : off+25]))
		p.Wave.Zt = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+25 : off+29]))
		off += 29
	}
	if off < len(buf) {
		p.Extra = buf[off:]
	}
}

// EncodePoint encodes p as a record of the given format and total length.
// recLen must be at least PointRecordLen(format); bytes past the standard
// layout are filled from p.Extra and zero-padded.
func EncodePoint(p *Point, format uint8, recLen uint16) []byte {
	buf := make([]byte, recLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.X))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.Y))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Z))
	binary.LittleEndian.PutUint16(buf[12:14], p.Intensity)

	var off int
	if format >= 6 {
		buf[14] = p.ReturnNumber&0x0F | p.NumberOfReturns<<4
		buf[15] = bit(p.Synthetic, 0x01) | bit(p.KeyPoint, 0x02) | bit(p.Withheld, 0x04) | bit(p.Overlap, 0x08) |
			(p.ScannerChannel&0x03)<<4 | bit(p.ScanDirection, 0x40) | bit(p.EdgeOfFlight, 0x80)
		buf[16] = p.Classification
		buf[17] = p.UserData
		binary.LittleEndian.PutUint16(buf[18:20], uint16(p.ScanAngle))
		binary.LittleEndian.PutUint16(buf[20:22], p.PointSourceID)
		binary.LittleEndian.PutUint64(buf[22:30], math.Float64bits(p.GPSTime))
		off = 30
	} else {
		buf[14] = p.ReturnNumber&0x07 | (p.NumberOfReturns&0x07)<<3 |
			bit(p.ScanDirection, 0x40) | bit(p.EdgeOfFlight, 0x80)
		buf[15] = p.Classification&0x1F | bit(p.Synthetic, 0x20) | bit(p.KeyPoint, 0x40) | bit(p.Withheld, 0x80)
		buf[16] = uint8(int8(p.ScanAngle))
		buf[17] = p.UserData
		binary.LittleEndian.PutUint16(buf[18:20], p.PointSourceID)
		off = 20
		if FormatHasGPS(format) {
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(p.GPSTime))
			off += 8
		}
	}
	if FormatHasRGB(format) {
		binary.LittleEndian.PutUint16(buf[off:off+2], p.Red)
		binary.LittleEndian.PutUint16(buf[off+2:off+4], p.Green)
		binary.LittleEndian.PutUint16(buf[off+4:off+6], p.Blue)
		off += 6
	}
	if FormatHasNIR(format) {
		binary.LittleEndian.PutUint16(buf[off:off+2], p.NIR)
		off += 2
	}
	if FormatHasWave(format) {
		buf[off] = p.Wave.DescriptorIndex
		binary.LittleEndian.PutUint64(buf[off+1:off+9], p.Wave.ByteOffset)
		binary.LittleEndian.PutUint32(buf[off+9:off+13], p.Wave.PacketSize)
		binary.LittleEndian.PutUint32(buf[off+13:off+17], math.Float32bits(p.Wave.ReturnLocation))
		binary.LittleEndian.PutUint32(buf[off+17:off+21], math.Float32bits(p.Wave.Xt))
		binary.LittleEndian.PutUint32(buf[off+21:off+25], math.Float32bits(p.Wave.Yt))
		binary.LittleEndian.PutUint32(buf[off+25:off+29], math.Float32bits(p.Wave.Zt))
		off += 29
	}
	copy(buf[off:], p.Extra)
	return buf
}

func bit(set bool, mask uint8) uint8 {
	if set {
		return mask
	}
	return 0
}
