package las

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// FieldKind is the wire encoding of an editable header field.
type FieldKind uint8

const (
	KindU8 FieldKind = iota
	KindU16
	KindU32
	KindU64
	KindF64
	KindString
	KindGUID
)

// String returns the kind name used in field listings.
func (k FieldKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindGUID:
		return "guid"
	}
	return fmt.Sprintf("kind %d", int(k))
}

// FieldSpec pins a header field to its byte range in the public header block.
type FieldSpec struct {
	Offset int64
	Width  int
	Kind   FieldKind
}

// HeaderFields maps editable field names to their fixed positions. The table
// is the single source of truth for targeted header edits: every edit is a
// lookup here plus the generic codec in PatchField.
var HeaderFields = map[string]FieldSpec{
	"file_source_id":          {OffFileSourceID, 2, KindU16},
	"global_encoding":         {OffGlobalEncoding, 2, KindU16},
	"project_id":              {OffProjectID, 16, KindGUID},
	"version_minor":           {OffVersionMinor, 1, KindU8},
	"system_identifier":       {OffSystemIdentifier, 32, KindString},
	"generating_software":     {OffGeneratingSoftware, 32, KindString},
	"file_creation_day":       {OffFileCreationDay, 2, KindU16},
	"file_creation_year":      {OffFileCreationYear, 2, KindU16},
	"legacy_number_of_points": {OffLegacyNumberOfPoints, 4, KindU32},
	"number_of_points":        {OffNumberOfPoints, 8, KindU64},
	"x_scale":                 {OffScaleFactors, 8, KindF64},
	"y_scale":                 {OffScaleFactors + 8, 8, KindF64},
	"z_scale":                 {OffScaleFactors + 16, 8, KindF64},
	"x_offset":                {OffOffsets, 8, KindF64},
	"y_offset":                {OffOffsets + 8, 8, KindF64},
	"z_offset":                {OffOffsets + 16, 8, KindF64},
}

// PatchField builds a patch for a named header field from the string form of
// its new value. Strings shorter than the field are zero-padded; numeric
// values must fit the field's width; GUIDs use the canonical UUID form.
func PatchField(name, value string) (Patch, error) {
	spec, ok := HeaderFields[name]
	if !ok {
		return Patch{}, fmt.Errorf("unknown header field %q", name)
	}
	switch spec.Kind {
	case KindU8:
		n, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return Patch{Offset: spec.Offset, Data: []byte{uint8(n)}}, nil
	case KindU16:
		n, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return PatchUint16(spec.Offset, uint16(n)), nil
	case KindU32:
		n, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return PatchUint32(spec.Offset, uint32(n)), nil
	case KindU64:
		n, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return PatchUint64(spec.Offset, n), nil
	case KindF64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return PatchFloat64(spec.Offset, f), nil
	case KindString:
		p, err := PatchString(spec.Offset, spec.Width, value)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		return p, nil
	case KindGUID:
		u, err := uuid.Parse(value)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %v", name, err)
		}
		g := EncodeGUID(u)
		return Patch{Offset: spec.Offset, Data: g[:]}, nil
	}
	return Patch{}, fmt.Errorf("%s: unknown field kind %d", name, spec.Kind)
}
