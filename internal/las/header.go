package las

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// LAS public header block (little-endian, versions 1.0-1.4)
//
// The block is a fixed layout whose size grows with the minor version:
//   1.0-1.2: 227 bytes
//   1.3:     235 bytes (adds start of waveform data)
//   1.4:     375 bytes (adds EVLR table position and 64-bit point counters)
//
// Layout:
//   0   4   file signature "LASF"
//   4   2   file source ID
//   6   2   global encoding
//   8   16  project ID GUID (u32, u16, u16, 8 raw bytes)
//   24  1   version major
//   25  1   version minor
//   26  32  system identifier
//   58  32  generating software
//   90  2   file creation day of year
//   92  2   file creation year
//   94  2   header size
//   96  4   offset to point data
//   100 4   number of VLRs
//   104 1   point data record format
//   105 2   point data record length
//   107 4   legacy number of point records
//   111 20  legacy number of points by return (5 x u32)
//   131 24  x/y/z scale factors
//   155 24  x/y/z offsets
//   179 48  max x, min x, max y, min y, max z, min z
//   227 8   start of waveform data packet record (1.3+)
//   235 8   start of first EVLR (1.4)
//   243 4   number of EVLRs (1.4)
//   247 8   number of point records (1.4)
//   255 120 number of points by return (15 x u64, 1.4)

const (
	Signature = "LASF"

	HeaderSize12 = 227 // versions 1.0-1.2
	HeaderSize13 = 235
	HeaderSize14 = 375

	MaxPointFormat = 10
)

// Byte offsets of the header fields the tools read, patch or edit. These are
// the file format's contract and never change.
const (
	OffFileSourceID         = 4
	OffGlobalEncoding       = 6
	OffProjectID            = 8
	OffVersionMajor         = 24
	OffVersionMinor         = 25
	OffSystemIdentifier     = 26
	OffGeneratingSoftware   = 58
	OffFileCreationDay      = 90
	OffFileCreationYear     = 92
	OffHeaderSize           = 94
	OffOffsetToPointData    = 96
	OffNumberOfVLRs         = 100
	OffPointFormat          = 104
	OffPointRecordLength    = 105
	OffLegacyNumberOfPoints = 107
	OffLegacyPointsByReturn = 111
	OffScaleFactors         = 131
	OffOffsets              = 155
	OffBoundingBox          = 179
	OffStartOfWaveform      = 227
	OffStartOfFirstEVLR     = 235
	OffNumberOfEVLRs        = 243
	OffNumberOfPoints       = 247
	OffPointsByReturn       = 255
)

// Axis indices for Scale, Offset, Min and Max.
const (
	X = 0
	Y = 1
	Z = 2
)

// ErrMalformedHeader is returned when the public header block fails
// structural validation. Files with malformed headers are not processed.
var ErrMalformedHeader = errors.New("malformed header")

// Header is the decoded public header block.
type Header struct {
	FileSignature        [4]byte
	FileSourceID         uint16
	GlobalEncoding       uint16
	ProjectID1           uint32
	ProjectID2           uint16
	ProjectID3           uint16
	ProjectID4           [8]byte
	VersionMajor         uint8
	VersionMinor         uint8
	SystemIdentifier     [32]byte
	GeneratingSoftware   [32]byte
	FileCreationDay      uint16
	FileCreationYear     uint16
	HeaderSize           uint16
	OffsetToPointData    uint32
	NumberOfVLRs         uint32
	PointFormat          uint8
	PointRecordLength    uint16
	LegacyNumberOfPoints uint32
	LegacyPointsByReturn [5]uint32
	Scale                [3]float64
	Offset               [3]float64
	Max                  [3]float64
	Min                  [3]float64
	StartOfWaveform      uint64     // 1.3+
	StartOfFirstEVLR     uint64     // 1.4
	NumberOfEVLRs        uint32     // 1.4
	NumberOfPoints       uint64     // 1.4
	PointsByReturn       [15]uint64 // 1.4
}

// DecodeHeader decodes a public header block. buf must hold at least the
// 227-byte core; version-gated fields are decoded when buf includes them.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize12 {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformedHeader, len(buf), HeaderSize12)
	}
	h := &Header{}
	copy(h.FileSignature[:], buf[0:4])
	h.FileSourceID = binary.LittleEndian.Uint16(buf[4:6])
	h.GlobalEncoding = binary.LittleEndian.Uint16(buf[6:8])
	h.ProjectID1 = binary.LittleEndian.Uint32(buf[8:12])
	h.ProjectID2 = binary.LittleEndian.Uint16(buf[12:14])
	h.ProjectID3 = binary.LittleEndian.Uint16(buf[14:16])
	copy(h.ProjectID4[:], buf[16:24])
	h.VersionMajor = buf[24]
	h.VersionMinor = buf[25]
	copy(h.SystemIdentifier[:], buf[26:58])
	copy(h.GeneratingSoftware[:], buf[58:90])
	h.FileCreationDay = binary.LittleEndian.Uint16(buf[90:92])
	h.FileCreationYear = binary.LittleEndian.Uint16(buf[92:94])
	h.HeaderSize = binary.LittleEndian.Uint16(buf[94:96])
	h.OffsetToPointData = binary.LittleEndian.Uint32(buf[96:100])
	h.NumberOfVLRs = binary.LittleEndian.Uint32(buf[100:104])
	h.PointFormat = buf[104]
	h.PointRecordLength = binary.LittleEndian.Uint16(buf[105:107])
	h.LegacyNumberOfPoints = binary.LittleEndian.Uint32(buf[107:111])
	for i := 0; i < 5; i++ {
		h.LegacyPointsByReturn[i] = binary.LittleEndian.Uint32(buf[111+4*i : 115+4*i])
	}
	for i := 0; i < 3; i++ {
		h.Scale[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[131+8*i : 139+8*i]))
		h.Offset[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[155+8*i : 163+8*i]))
		h.Max[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[179+16*i : 187+16*i]))
		h.Min[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[187+16*i : 195+16*i]))
	}
	if h.VersionMinor >= 3 && len(buf) >= HeaderSize13 {
		h.StartOfWaveform = binary.LittleEndian.Uint64(buf[227:235])
	}
	if h.VersionMinor >= 4 && len(buf) >= HeaderSize14 {
		h.StartOfFirstEVLR = binary.LittleEndian.Uint64(buf[235:243])
		h.NumberOfEVLRs = binary.LittleEndian.Uint32(buf[243:247])
		h.NumberOfPoints = binary.LittleEndian.Uint64(buf[247:255])
		for i := 0; i < 15; i++ {
			h.PointsByReturn[i] = binary.LittleEndian.Uint64(buf[255+8*i : 263+8*i])
		}
	}
	return h, nil
}

// EncodeHeader encodes the public header block. The result is h.HeaderSize
// bytes, or the minimum size for the version when HeaderSize is smaller.
func EncodeHeader(h *Header) []byte {
	size := int(h.HeaderSize)
	if min := MinHeaderSize(h.VersionMinor); size < min {
		size = min
	}
	buf := make([]byte, size)
	copy(buf[0:4], h.FileSignature[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.FileSourceID)
	binary.LittleEndian.PutUint16(buf[6:8], h.GlobalEncoding)
	binary.LittleEndian.PutUint32(buf[8:12], h.ProjectID1)
	binary.LittleEndian.PutUint16(buf[12:14], h.ProjectID2)
	binary.LittleEndian.PutUint16(buf[14:16], h.ProjectID3)
	copy(buf[16:24], h.ProjectID4[:])
	buf[24] = h.VersionMajor
	buf[25] = h.VersionMinor
	copy(buf[26:58], h.SystemIdentifier[:])
	copy(buf[58:90], h.GeneratingSoftware[:])
	binary.LittleEndian.PutUint16(buf[90:92], h.FileCreationDay)
	binary.LittleEndian.PutUint16(buf[92:94], h.FileCreationYear)
	binary.LittleEndian.PutUint16(buf[94:96], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[96:100], h.OffsetToPointData)
	binary.LittleEndian.PutUint32(buf[100:104], h.NumberOfVLRs)
	buf[104] = h.PointFormat
	binary.LittleEndian.PutUint16(buf[105:107], h.PointRecordLength)
	binary.LittleEndian.PutUint32(buf[107:111], h.LegacyNumberOfPoints)
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(buf[111+4*i:115+4*i], h.LegacyPointsByReturn[i])
	}
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint64(buf[131+8*i:139+8*i], math.Float64bits(h.Scale[i]))
		binary.LittleEndian.PutUint64(buf[155+8*i:163+8*i], math.Float64bits(h.Offset[i]))
		binary.LittleEndian.PutUint64(buf[179+16*i:187+16*i], math.Float64bits(h.Max[i]))
		binary.LittleEndian.PutUint64(buf[187+16*i:195+16*i], math.Float64bits(h.Min[i]))
	}
	if h.VersionMinor >= 3 && size >= HeaderSize13 {
		binary.LittleEndian.PutUint64(buf[227:235], h.StartOfWaveform)
	}
	if h.VersionMinor >= 4 && size >= HeaderSize14 {
		binary.LittleEndian.PutUint64(buf[235:243], h.StartOfFirstEVLR)
		binary.LittleEndian.PutUint32(buf[243:247], h.NumberOfEVLRs)
		binary.LittleEndian.PutUint64(buf[247:255], h.NumberOfPoints)
		for i := 0; i < 15; i++ {
			binary.LittleEndian.PutUint64(buf[255+8*i:263+8*i], h.PointsByReturn[i])
		}
	}
	return buf
}

// MinHeaderSize returns the smallest legal header size for a minor version.
func MinHeaderSize(minor uint8) int {
	switch {
	case minor >= 4:
		return HeaderSize14
	case minor == 3:
		return HeaderSize13
	default:
		return HeaderSize12
	}
}

// Validate checks the structural invariants the rest of the package relies
// on. A validation failure aborts processing of the file.
func (h *Header) Validate() error {
	if string(h.FileSignature[:]) != Signature {
		return fmt.Errorf("%w: signature %q", ErrMalformedHeader, h.FileSignature)
	}
	if h.VersionMajor != 1 || h.VersionMinor > 4 {
		return fmt.Errorf("%w: unsupported version %d.%d", ErrMalformedHeader, h.VersionMajor, h.VersionMinor)
	}
	if int(h.HeaderSize) < MinHeaderSize(h.VersionMinor) {
		return fmt.Errorf("%w: header size %d, version 1.%d needs %d", ErrMalformedHeader, h.HeaderSize, h.VersionMinor, MinHeaderSize(h.VersionMinor))
	}
	if h.OffsetToPointData < uint32(h.HeaderSize) {
		return fmt.Errorf("%w: point data offset %d inside %d-byte header", ErrMalformedHeader, h.OffsetToPointData, h.HeaderSize)
	}
	if h.PointFormat > MaxPointFormat {
		return fmt.Errorf("%w: point format %d", ErrMalformedHeader, h.PointFormat)
	}
	if std := PointRecordLen(h.PointFormat); h.PointRecordLength < std {
		return fmt.Errorf("%w: record length %d, format %d needs %d", ErrMalformedHeader, h.PointRecordLength, h.PointFormat, std)
	}
	for i := 0; i < 3; i++ {
		if h.Scale[i] == 0 {
			return fmt.Errorf("%w: zero %s scale factor", ErrMalformedHeader, AxisName(i))
		}
	}
	return nil
}

// pointRecordLens is the standard record length for each point format.
var pointRecordLens = [MaxPointFormat + 1]uint16{20, 28, 26, 34, 57, 63, 30, 36, 38, 59, 67}

// PointRecordLen returns the standard record length for a point format,
// or 0 for unknown formats.
func PointRecordLen(format uint8) uint16 {
	if int(format) < len(pointRecordLens) {
		return pointRecordLens[format]
	}
	return 0
}

// FormatHasGPS reports whether a point format carries a GPS time stamp.
func FormatHasGPS(format uint8) bool { return format == 1 || format >= 3 }

// FormatHasRGB reports whether a point format carries RGB color.
func FormatHasRGB(format uint8) bool {
	switch format {
	case 2, 3, 5, 7, 8, 10:
		return true
	}
	return false
}

// FormatHasNIR reports whether a point format carries a near-infrared channel.
func FormatHasNIR(format uint8) bool { return format == 8 || format == 10 }

// FormatHasWave reports whether a point format carries a waveform packet.
func FormatHasWave(format uint8) bool {
	switch format {
	case 4, 5, 9, 10:
		return true
	}
	return false
}

// AxisName returns "X", "Y" or "Z".
func AxisName(axis int) string { return [...]string{"X", "Y", "Z"}[axis] }

// HasExtendedCounters reports whether the header carries the 64-bit point
// counters (LAS 1.4).
func (h *Header) HasExtendedCounters() bool { return h.VersionMinor >= 4 }

// HasExtendedPointTypes reports whether points use the extended layout
// (4-bit return numbers, full classification byte, overlap flag).
func (h *Header) HasExtendedPointTypes() bool { return h.PointFormat >= 6 }

// DeclaredPoints returns the header's declared point count. For 1.4 files
// the 64-bit field is authoritative; older files only have the legacy field.
func (h *Header) DeclaredPoints() uint64 {
	if h.HasExtendedCounters() {
		return h.NumberOfPoints
	}
	return uint64(h.LegacyNumberOfPoints)
}

// GPSWeekTime reports whether GPS time stamps are GPS week seconds (global
// encoding bit 0 clear) rather than adjusted standard GPS time.
func (h *Header) GPSWeekTime() bool { return h.GlobalEncoding&1 == 0 }

// Coordinate converts a raw integer coordinate on the given axis to its
// georeferenced value.
func (h *Header) Coordinate(axis int, raw int32) float64 {
	return h.Offset[axis] + float64(raw)*h.Scale[axis]
}

// Version returns the version as "major.minor".
func (h *Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// SystemID returns the system identifier with trailing NULs removed.
func (h *Header) SystemID() string { return cstring(h.SystemIdentifier[:]) }

// Software returns the generating software with trailing NULs removed.
func (h *Header) Software() string { return cstring(h.GeneratingSoftware[:]) }

// GUID returns the Project ID as an RFC 4122 UUID.
func (h *Header) GUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], h.ProjectID1)
	binary.BigEndian.PutUint16(u[4:6], h.ProjectID2)
	binary.BigEndian.PutUint16(u[6:8], h.ProjectID3)
	copy(u[8:16], h.ProjectID4[:])
	return u
}

// SetGUID stores an RFC 4122 UUID into the Project ID fields.
func (h *Header) SetGUID(u uuid.UUID) {
	h.ProjectID1 = binary.BigEndian.Uint32(u[0:4])
	h.ProjectID2 = binary.BigEndian.Uint16(u[4:6])
	h.ProjectID3 = binary.BigEndian.Uint16(u[6:8])
	copy(h.ProjectID4[:], u[8:16])
}

// EncodeGUID returns the 16-byte on-disk Project ID encoding of u. The first
// three groups are little-endian, the rest is raw.
func EncodeGUID(u uuid.UUID) [16]byte {
	var g [16]byte
	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(g[8:16], u[8:16])
	return g
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
