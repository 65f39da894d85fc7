// Package crs extracts coordinate reference system identifiers from the
// GeoTIFF key VLRs carried by LAS files.
package crs

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

// GeoTIFF keys ride in up to three LASF_Projection VLRs:
//
//   34735  key directory: a 4-u16 header (version, revision, minor revision,
//          key count) followed by one u16 quadruple per key
//          (key ID, tag location, count, value)
//   34736  double params: f64 array referenced by tag location 34736
//   34737  ascii params: byte array referenced by tag location 34737
//
// A key's value is inline when its tag location is 0; otherwise it is a
// count-sized slice of the referenced params record starting at value.

const (
	ProjectionUserID = "LASF_Projection"

	GeoKeyDirectoryID = 34735
	GeoDoubleParamsID = 34736
	GeoASCIIParamsID  = 34737

	// Key IDs consulted for the CRS summary.
	KeyGTModelType     = 1024
	KeyGTCitation      = 1026
	KeyGeographicType  = 2048
	KeyGeogCitation    = 2049
	KeyProjectedCSType = 3072
	KeyPCSCitation     = 3073
	KeyVerticalCSType  = 4096

	// 32767 marks a user-defined CRS; 0 marks an unset key.
	userDefined = 32767
)

// Entry is one decoded GeoTIFF key.
type Entry struct {
	KeyID  uint16
	Value  uint16    // inline value when the key is not a params reference
	Double []float64 // resolved double params
	ASCII  string    // resolved ascii params
}

// ParseGeoKeys decodes the GeoTIFF key directory from a VLR table, resolving
// double and ascii references against their params records. It returns nil
// with no error when the file carries no directory.
func ParseGeoKeys(vlrs []las.VLR) ([]Entry, error) {
	dir := las.FindVLR(vlrs, ProjectionUserID, GeoKeyDirectoryID)
	if dir == nil {
		return nil, nil
	}
	body := dir.Body
	if len(body) < 8 {
		return nil, fmt.Errorf("geokey directory: %d-byte body", len(body))
	}
	u16 := func(i int) uint16 { return binary.LittleEndian.Uint16(body[2*i:]) }
	if version := u16(0); version != 1 {
		return nil, fmt.Errorf("geokey directory: version %d", version)
	}
	n := int(u16(3))
	if len(body) < 8+8*n {
		return nil, fmt.Errorf("geokey directory: %d keys do not fit %d-byte body", n, len(body))
	}

	var doubles []float64
	if v := las.FindVLR(vlrs, ProjectionUserID, GeoDoubleParamsID); v != nil {
		doubles = make([]float64, len(v.Body)/8)
		for i := range doubles {
			doubles[i] = math.Float64frombits(binary.LittleEndian.Uint64(v.Body[8*i:]))
		}
	}
	var ascii []byte
	if v := las.FindVLR(vlrs, ProjectionUserID, GeoASCIIParamsID); v != nil {
		ascii = v.Body
	}

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e := Entry{KeyID: u16(4 + 4*i)}
		loc, count, value := u16(5+4*i), int(u16(6+4*i)), u16(7+4*i)
		switch loc {
		case 0:
			e.Value = value
		case GeoDoubleParamsID:
			if end := int(value) + count; end <= len(doubles) {
				e.Double = doubles[value:end]
			}
		case GeoASCIIParamsID:
			// ASCII values are "|"-terminated runs inside the params record.
			if end := int(value) + count; end <= len(ascii) {
				e.ASCII = strings.TrimRight(string(ascii[value:end]), "|\x00")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Find returns the entry for a key ID, or nil.
func Find(entries []Entry, keyID uint16) *Entry {
	for i := range entries {
		if entries[i].KeyID == keyID {
			return &entries[i]
		}
	}
	return nil
}

// EPSG returns the file's horizontal EPSG code: the projected CRS when one
// is set, the geographic CRS otherwise. Unset and user-defined codes yield
// ok false.
func EPSG(entries []Entry) (code uint16, ok bool) {
	for _, keyID := range []uint16{KeyProjectedCSType, KeyGeographicType} {
		if e := Find(entries, keyID); e != nil && e.Value != 0 && e.Value != userDefined {
			return e.Value, true
		}
	}
	return 0, false
}

// Citation returns the most specific nonempty citation text, or "".
func Citation(entries []Entry) string {
	for _, keyID := range []uint16{KeyPCSCitation, KeyGeogCitation, KeyGTCitation} {
		if e := Find(entries, keyID); e != nil && e.ASCII != "" {
			return e.ASCII
		}
	}
	return ""
}
