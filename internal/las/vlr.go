package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Variable length record sub-header (54 bytes, little-endian)
//
//   0  2   reserved
//   2  16  user ID
//   18 2   record ID
//   20 2   record length after header (body length)
//   22 32  description
//
// VLR bodies follow their sub-headers back to back, starting directly after
// the public header block. Record i's sub-header therefore sits at
// header_size + sum(54 + body_length(k)) over all k < i.

const (
	VLRHeaderSize = 54

	// Field positions within a sub-header, relative to its start.
	VLRUserIDOff      = 2
	VLRUserIDLen      = 16
	VLRRecordIDOff    = 18
	VLRDescriptionOff = 22
	VLRDescriptionLen = 32
)

// ErrRecordNotFound is returned when a VLR index lies outside the file's
// VLR table. Edits hitting it are skipped, never written.
var ErrRecordNotFound = errors.New("vlr not found")

// VLR is one variable length record: sub-header fields plus raw body.
type VLR struct {
	Reserved    uint16
	UserID      [16]byte
	RecordID    uint16
	Description [32]byte
	Body        []byte
}

// User returns the user ID with trailing NULs removed.
func (v *VLR) User() string { return cstring(v.UserID[:]) }

// Desc returns the description with trailing NULs removed.
func (v *VLR) Desc() string { return cstring(v.Description[:]) }

// ReadVLRs reads count VLRs from r, which must be positioned at the first
// sub-header.
func ReadVLRs(r io.Reader, count uint32) ([]VLR, error) {
	vlrs := make([]VLR, 0, count)
	hdr := make([]byte, VLRHeaderSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return vlrs, fmt.Errorf("vlr %d header: %w", i, err)
		}
		v := VLR{
			Reserved: binary.LittleEndian.Uint16(hdr[0:2]),
			RecordID: binary.LittleEndian.Uint16(hdr[18:20]),
		}
		copy(v.UserID[:], hdr[2:18])
		copy(v.Description[:], hdr[22:54])
		bodyLen := binary.LittleEndian.Uint16(hdr[20:22])
		v.Body = make([]byte, bodyLen)
		if _, err := io.ReadFull(r, v.Body); err != nil {
			return vlrs, fmt.Errorf("vlr %d body: %w", i, err)
		}
		vlrs = append(vlrs, v)
	}
	return vlrs, nil
}

// EncodeVLR encodes a VLR sub-header and body.
func EncodeVLR(v *VLR) []byte {
	buf := make([]byte, VLRHeaderSize+len(v.Body))
	binary.LittleEndian.PutUint16(buf[0:2], v.Reserved)
	copy(buf[2:18], v.UserID[:])
	binary.LittleEndian.PutUint16(buf[18:20], v.RecordID)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(v.Body)))
	copy(buf[22:54], v.Description[:])
	copy(buf[VLRHeaderSize:], v.Body)
	return buf
}

// FindVLR returns the first VLR with the given user ID and record ID, or nil.
func FindVLR(vlrs []VLR, userID string, recordID uint16) *VLR {
	for i := range vlrs {
		if vlrs[i].RecordID == recordID && vlrs[i].User() == userID {
			return &vlrs[i]
		}
	}
	return nil
}

// VLRField identifies a sub-header field that may be edited in place.
// Bodies are never moved or resized, so these are the only legal targets.
type VLRField int

const (
	VLRUserID VLRField = iota
	VLRRecordID
	VLRDescription
)

// String returns the field name used in reports.
func (f VLRField) String() string {
	switch f {
	case VLRUserID:
		return "user ID"
	case VLRRecordID:
		return "record ID"
	case VLRDescription:
		return "description"
	}
	return fmt.Sprintf("field %d", int(f))
}

// LocateVLRField returns the absolute byte range of a sub-header field of
// the VLR at index, walking the table from headerSize. It fails with
// ErrRecordNotFound when index is outside the table.
func LocateVLRField(vlrs []VLR, headerSize int64, index int, field VLRField) (offset int64, width int, err error) {
	if index < 0 || index >= len(vlrs) {
		return 0, 0, fmt.Errorf("%w: index %d, table has %d", ErrRecordNotFound, index, len(vlrs))
	}
	offset = headerSize
	for i := 0; i < index; i++ {
		offset += VLRHeaderSize + int64(len(vlrs[i].Body))
	}
	switch field {
	case VLRUserID:
		return offset + VLRUserIDOff, VLRUserIDLen, nil
	case VLRRecordID:
		return offset + VLRRecordIDOff, 2, nil
	case VLRDescription:
		return offset + VLRDescriptionOff, VLRDescriptionLen, nil
	}
	return 0, 0, fmt.Errorf("unknown vlr field %d", int(field))
}
