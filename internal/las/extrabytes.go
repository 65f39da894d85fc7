package las

import (
	"encoding/binary"
	"math"
)

// Extra bytes VLR (user ID "LASF_Spec", record ID 4)
//
// The body is a run of 192-byte attribute descriptors:
//   0    2   reserved
//   2    1   data type
//   3    1   options (size of the attribute when data type is 0)
//   4    32  name
//   36   4   unused
//   40   24  no-data values
//   64   24  minimums
//   88   24  maximums
//   112  24  scales (3 x f64)
//   136  24  offsets (3 x f64)
//   160  32  description
//
// Descriptors describe, in order, the attribute bytes appended to each point
// record past its standard layout.

const (
	ExtraBytesUserID   = "LASF_Spec"
	ExtraBytesRecordID = 4

	extraDescriptorLen = 192
)

// ExtraAttr describes one extra-bytes attribute and where its value sits
// inside a point's extra payload.
type ExtraAttr struct {
	Name   string
	Type   uint8
	Offset int // byte offset inside Point.Extra
	Size   int
}

// extraTypeSizes maps the documented scalar data types 1-10 to their size.
var extraTypeSizes = [11]int{0, 1, 1, 2, 2, 4, 4, 8, 8, 4, 8}

// extraTypeSize returns the byte size of any extra-bytes data type,
// including type 0 (raw blob sized by options) and the deprecated tuple
// types 11-30.
func extraTypeSize(typ, options uint8) int {
	switch {
	case typ == 0:
		return int(options)
	case int(typ) < len(extraTypeSizes):
		return extraTypeSizes[typ]
	case typ <= 20:
		return 2 * extraTypeSizes[typ-10]
	case typ <= 30:
		return 3 * extraTypeSizes[typ-20]
	}
	return 0
}

// ParseExtraBytes decodes the attribute descriptors from an extra bytes
// VLR, assigning each attribute its offset within the per-point payload.
// A trailing partial descriptor is ignored.
func ParseExtraBytes(vlr *VLR) []ExtraAttr {
	var attrs []ExtraAttr
	offset := 0
	body := vlr.Body
	for len(body) >= extraDescriptorLen {
		d := body[:extraDescriptorLen]
		body = body[extraDescriptorLen:]
		typ := d[2]
		size := extraTypeSize(typ, d[3])
		attrs = append(attrs, ExtraAttr{
			Name:   cstring(d[4:36]),
			Type:   typ,
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	return attrs
}

// Value extracts the attribute's value from a point's extra payload as a
// float64. ok is false when the payload is too short or the type is not a
// documented scalar.
func (a *ExtraAttr) Value(extra []byte) (v float64, ok bool) {
	if a.Size == 0 || a.Offset+a.Size > len(extra) {
		return 0, false
	}
	b := extra[a.Offset:]
	switch a.Type {
	case 1:
		return float64(b[0]), true
	case 2:
		return float64(int8(b[0])), true
	case 3:
		return float64(binary.LittleEndian.Uint16(b)), true
	case 4:
		return float64(int16(binary.LittleEndian.Uint16(b))), true
	case 5:
		return float64(binary.LittleEndian.Uint32(b)), true
	case 6:
		return float64(int32(binary.LittleEndian.Uint32(b))), true
	case 7:
		return float64(binary.LittleEndian.Uint64(b)), true
	case 8:
		return float64(int64(binary.LittleEndian.Uint64(b))), true
	case 9:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case 10:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
	}
	return 0, false
}

// EncodeExtraBytesDescriptor builds one 192-byte descriptor for fixture and
// tooling use. Only the fields the verifier reads are populated.
func EncodeExtraBytesDescriptor(name string, typ, options uint8) []byte {
	d := make([]byte, extraDescriptorLen)
	d[2] = typ
	d[3] = options
	copy(d[4:36], name)
	return d
}
