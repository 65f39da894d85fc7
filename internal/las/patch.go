package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

// ErrNotSeekable is returned when a patch target is not a regular file.
// Pipes and compressed containers have no stable byte addresses to write to.
var ErrNotSeekable = errors.New("not a seekable regular file")

// Patch is one byte-range correction: Data replaces the len(Data) bytes at
// Offset. Patches produced by one check pass never overlap, so applying
// them in any order yields the same file.
type Patch struct {
	Offset int64
	Data   []byte
}

// PatchUint16 builds a little-endian u16 patch.
func PatchUint16(offset int64, v uint16) Patch {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return Patch{Offset: offset, Data: data}
}

// PatchUint32 builds a little-endian u32 patch.
func PatchUint32(offset int64, v uint32) Patch {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return Patch{Offset: offset, Data: data}
}

// PatchUint64 builds a little-endian u64 patch.
func PatchUint64(offset int64, v uint64) Patch {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)
	return Patch{Offset: offset, Data: data}
}

// PatchFloat64 builds an IEEE-754 double patch.
func PatchFloat64(offset int64, v float64) Patch {
	return PatchUint64(offset, math.Float64bits(v))
}

// PatchString builds a zero-padded fixed-width string patch. s must fit the
// field width.
func PatchString(offset int64, width int, s string) (Patch, error) {
	if len(s) > width {
		return Patch{}, fmt.Errorf("value %q longer than %d-byte field", s, width)
	}
	data := make([]byte, width)
	copy(data, s)
	return Patch{Offset: offset, Data: data}, nil
}

// Overlaps reports whether two patches touch a common byte.
func Overlaps(a, b Patch) bool {
	return a.Offset < b.Offset+int64(len(b.Data)) && b.Offset < a.Offset+int64(len(a.Data))
}

// ApplyPatches writes each patch at its offset, touching no other byte of
// the file. The target must be a regular file opened for writing; nothing
// is written when that check fails. Patches are applied in offset order to
// keep the I/O forward-moving, though order does not affect the result.
func ApplyPatches(f *os.File, patches []Patch) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", f.Name(), ErrNotSeekable)
	}
	sorted := make([]Patch, len(patches))
	copy(sorted, patches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for _, p := range sorted {
		if _, err := f.WriteAt(p.Data, p.Offset); err != nil {
			return fmt.Errorf("patch %d bytes at %d: %w", len(p.Data), p.Offset, err)
		}
	}
	return nil
}
