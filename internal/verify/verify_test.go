package verify_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/sudeepge/LAStools-M4/internal/crs"
	"github.com/sudeepge/LAStools-M4/internal/las"
	"github.com/sudeepge/LAStools-M4/internal/verify"
)

// surveyPoints returns n single-return ground points. The coordinates sit
// off any coarse grid so resolution checks stay quiet.
func surveyPoints(n int) []las.Point {
	pts := make([]las.Point, n)
	for i := range pts {
		pts[i] = las.Point{
			X: int32(103 + 11*i), Y: int32(-52 + 7*i), Z: int32(9 + 3*i),
			Intensity:       uint16(10 * i),
			ReturnNumber:    1,
			NumberOfReturns: 1,
			Classification:  2,
			GPSTime:         280000.5 + float64(i),
			Red:             3000, Green: 2000, Blue: 1000,
		}
	}
	return pts
}

// surveyHeader returns a header whose declared counters and bounding box
// match surveyPoints(n) exactly.
func surveyHeader(minor, format uint8, n int) *las.Header {
	h := &las.Header{
		VersionMajor:      1,
		VersionMinor:      minor,
		PointFormat:       format,
		PointRecordLength: las.PointRecordLen(format),
		Scale:             [3]float64{0.01, 0.01, 0.01},
		Offset:            [3]float64{100, 200, 0},
	}
	copy(h.FileSignature[:], las.Signature)
	copy(h.SystemIdentifier[:], "UNITTEST")
	h.HeaderSize = uint16(las.MinHeaderSize(minor))
	h.OffsetToPointData = uint32(h.HeaderSize)

	if format < 6 {
		h.LegacyNumberOfPoints = uint32(n)
		h.LegacyPointsByReturn[0] = uint32(n)
	}
	if h.HasExtendedCounters() {
		h.NumberOfPoints = uint64(n)
		h.PointsByReturn[0] = uint64(n)
	}
	lo := [3]int32{103, -52, 9}
	step := [3]int32{11, 7, 3}
	for axis := las.X; axis <= las.Z; axis++ {
		h.Min[axis] = h.Coordinate(axis, lo[axis])
		h.Max[axis] = h.Coordinate(axis, lo[axis]+step[axis]*int32(n-1))
	}
	return h
}

func buildFile(h *las.Header, vlrs []las.VLR, points []las.Point) []byte {
	vlrBytes := 0
	for i := range vlrs {
		vlrBytes += las.VLRHeaderSize + len(vlrs[i].Body)
	}
	h.NumberOfVLRs = uint32(len(vlrs))
	h.OffsetToPointData = uint32(int(h.HeaderSize) + vlrBytes)

	var buf bytes.Buffer
	buf.Write(las.EncodeHeader(h))
	for i := range vlrs {
		buf.Write(las.EncodeVLR(&vlrs[i]))
	}
	for i := range points {
		buf.Write(las.EncodePoint(&points[i], h.PointFormat, h.PointRecordLength))
	}
	return buf.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func hasWarning(rep *verify.Report, field string) bool {
	for _, w := range rep.Warnings {
		if w.Field == field {
			return true
		}
	}
	return false
}

func TestVerifyFileClean(t *testing.T) {
	data := buildFile(surveyHeader(2, 1, 5), nil, surveyPoints(5))
	path := writeTemp(t, "clean.las", data)

	rep, err := verify.VerifyFile(context.Background(), path, verify.Options{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.Clean() {
		t.Errorf("warnings on a consistent file: %v", rep.Warnings)
	}
	if rep.Applied || len(rep.Patches) != 0 {
		t.Errorf("Applied = %v, %d patches, want untouched", rep.Applied, len(rep.Patches))
	}
	if rep.Summary.Count != 5 {
		t.Errorf("Count = %d, want 5", rep.Summary.Count)
	}
	if !bytes.Equal(readBack(t, path), data) {
		t.Error("check-only pass modified the file")
	}
}

func TestVerifyFileCheckOnly(t *testing.T) {
	h := surveyHeader(2, 1, 5)
	h.LegacyNumberOfPoints = 9 // truth is 5
	data := buildFile(h, nil, surveyPoints(5))
	path := writeTemp(t, "off.las", data)

	rep, err := verify.VerifyFile(context.Background(), path, verify.Options{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !hasWarning(rep, "legacy point count") {
		t.Errorf("warnings = %v, want a legacy point count warning", rep.Warnings)
	}
	if rep.Unfixed() != 1 || len(rep.Patches) != 0 {
		t.Errorf("Unfixed = %d, %d patches, want 1 and 0", rep.Unfixed(), len(rep.Patches))
	}
	if !bytes.Equal(readBack(t, path), data) {
		t.Error("check-only pass modified the file")
	}
}

func TestVerifyFileRepair(t *testing.T) {
	h := surveyHeader(4, 7, 5)
	h.LegacyNumberOfPoints = 42 // must be zero for format 7
	before := buildFile(h, nil, surveyPoints(5))
	path := writeTemp(t, "stale.las", before)

	opts := verify.Options{Mode: verify.RepairAll, Log: zerolog.Nop()}
	rep, err := verify.VerifyFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.Applied || len(rep.Patches) != 1 {
		t.Fatalf("Applied = %v, %d patches, want one applied correction", rep.Applied, len(rep.Patches))
	}
	if rep.Unfixed() != 0 {
		t.Errorf("Unfixed = %d, want 0", rep.Unfixed())
	}

	after := readBack(t, path)
	if got := binary.LittleEndian.Uint32(after[las.OffLegacyNumberOfPoints:]); got != 0 {
		t.Errorf("legacy count on disk = %d, want 0", got)
	}
	// Only the four patched bytes may differ.
	if len(after) != len(before) {
		t.Fatalf("file length changed: %d -> %d", len(before), len(after))
	}
	for i := range after {
		if i >= int(las.OffLegacyNumberOfPoints) && i < int(las.OffLegacyNumberOfPoints)+4 {
			continue
		}
		if after[i] != before[i] {
			t.Fatalf("byte %d changed outside the patched field", i)
		}
	}

	// A second pass finds nothing left to do.
	rep, err = verify.VerifyFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("VerifyFile (second pass): %v", err)
	}
	if !rep.Clean() || rep.Applied || len(rep.Patches) != 0 {
		t.Errorf("second pass = %v applied %v, %d patches, want clean", rep.Warnings, rep.Applied, len(rep.Patches))
	}
}

func TestVerifyFileBBoxRepair(t *testing.T) {
	h := surveyHeader(2, 1, 5)
	h.Max[las.X] += 4 // oversized: silent in check mode, still wrong
	before := buildFile(h, nil, surveyPoints(5))
	path := writeTemp(t, "box.las", before)

	rep, err := verify.VerifyFile(context.Background(), path,
		verify.Options{Mode: verify.RepairBBox, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.Applied || len(rep.Patches) != 1 {
		t.Fatalf("Applied = %v, %d patches, want one applied correction", rep.Applied, len(rep.Patches))
	}

	after := readBack(t, path)
	for i := range after {
		if i >= int(las.OffBoundingBox) && i < int(las.OffBoundingBox)+48 {
			continue
		}
		if after[i] != before[i] {
			t.Fatalf("byte %d changed outside the bounding box", i)
		}
	}

	rep, err = verify.VerifyFile(context.Background(), path,
		verify.Options{Mode: verify.RepairBBox, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile (second pass): %v", err)
	}
	if !rep.Clean() || rep.Applied {
		t.Errorf("second pass = %v applied %v, want clean", rep.Warnings, rep.Applied)
	}
}

func TestVerifyFileDryRun(t *testing.T) {
	h := surveyHeader(4, 7, 5)
	h.LegacyNumberOfPoints = 42
	data := buildFile(h, nil, surveyPoints(5))
	path := writeTemp(t, "dry.las", data)

	rep, err := verify.VerifyFile(context.Background(), path,
		verify.Options{Mode: verify.RepairAll, DryRun: true, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.Applied || len(rep.Patches) != 1 {
		t.Errorf("Applied = %v, %d patches, want one computed, none written", rep.Applied, len(rep.Patches))
	}
	if !bytes.Equal(readBack(t, path), data) {
		t.Error("dry run modified the file")
	}

	var out strings.Builder
	rep.WriteText(&out)
	if !strings.Contains(out.String(), "corrections computed, none written") {
		t.Errorf("report does not mention unwritten corrections:\n%s", out.String())
	}
}

func TestVerifyFileCompressed(t *testing.T) {
	data := buildFile(surveyHeader(2, 1, 5), nil, surveyPoints(5))
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	path := writeTemp(t, "pts.las.gz", buf.Bytes())

	rep, err := verify.VerifyFile(context.Background(), path, verify.Options{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile (check-only): %v", err)
	}
	if rep.Summary.Count != 5 || !rep.Clean() {
		t.Errorf("Count = %d, warnings = %v", rep.Summary.Count, rep.Warnings)
	}

	_, err = verify.VerifyFile(context.Background(), path,
		verify.Options{Mode: verify.RepairAll, Log: zerolog.Nop()})
	if !errors.Is(err, las.ErrNotSeekable) {
		t.Errorf("repairing compressed input: err = %v, want ErrNotSeekable", err)
	}
}

func TestVerifyFileTruncated(t *testing.T) {
	data := buildFile(surveyHeader(2, 1, 5), nil, surveyPoints(5))
	path := writeTemp(t, "cut.las", data[:len(data)-7])

	rep, err := verify.VerifyFile(context.Background(), path, verify.Options{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.Truncated || rep.Summary.Count != 4 {
		t.Errorf("Truncated = %v, Count = %d, want true and 4", rep.Truncated, rep.Summary.Count)
	}
	if !hasWarning(rep, "point data") {
		t.Errorf("warnings = %v, want a point data warning", rep.Warnings)
	}
	if !hasWarning(rep, "legacy point count") {
		t.Errorf("warnings = %v, want a count mismatch after truncation", rep.Warnings)
	}
}

func TestVerifyFileGeoKeys(t *testing.T) {
	dir := t.TempDir()
	tsv := "code\tname\n25832\tETRS89 / UTM zone 32N\n"
	if err := os.WriteFile(filepath.Join(dir, "pcs.tsv"), []byte(tsv), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	names := crs.NewNameTable()
	if err := names.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	body := make([]byte, 8+8*2)
	binary.LittleEndian.PutUint16(body[0:], 1) // key directory version
	binary.LittleEndian.PutUint16(body[2:], 1)
	binary.LittleEndian.PutUint16(body[6:], 2)
	quads := [][4]uint16{
		{crs.KeyGTModelType, 0, 1, 1},
		{crs.KeyProjectedCSType, 0, 1, 25832},
	}
	for i, k := range quads {
		for j, v := range k {
			binary.LittleEndian.PutUint16(body[8+8*i+2*j:], v)
		}
	}
	vlr := las.VLR{RecordID: crs.GeoKeyDirectoryID, Body: body}
	copy(vlr.UserID[:], crs.ProjectionUserID)

	data := buildFile(surveyHeader(2, 1, 3), []las.VLR{vlr}, surveyPoints(3))
	path := writeTemp(t, "crs.las", data)

	rep, err := verify.VerifyFile(context.Background(), path,
		verify.Options{Names: names, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.EPSG != 25832 || rep.EPSGName != "ETRS89 / UTM zone 32N" {
		t.Errorf("EPSG = %d %q, want 25832 with its name", rep.EPSG, rep.EPSGName)
	}

	var out strings.Builder
	rep.WriteText(&out)
	if !strings.Contains(out.String(), "EPSG 25832 (ETRS89 / UTM zone 32N)") {
		t.Errorf("report is missing the CRS line:\n%s", out.String())
	}
}

func TestVerifyFileExtraBytes(t *testing.T) {
	desc := make([]byte, 192)
	desc[2] = 3 // unsigned short
	copy(desc[4:], "height")
	vlr := las.VLR{RecordID: las.ExtraBytesRecordID, Body: desc}
	copy(vlr.UserID[:], las.ExtraBytesUserID)

	h := surveyHeader(2, 1, 3)
	h.PointRecordLength += 2
	pts := surveyPoints(3)
	for i := range pts {
		pts[i].Extra = make([]byte, 2)
		binary.LittleEndian.PutUint16(pts[i].Extra, uint16(500+10*i))
	}
	path := writeTemp(t, "extra.las", buildFile(h, []las.VLR{vlr}, pts))

	rep, err := verify.VerifyFile(context.Background(), path, verify.Options{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if len(rep.Summary.ExtraRanges) != 1 {
		t.Fatalf("ExtraRanges = %d, want 1", len(rep.Summary.ExtraRanges))
	}
	r := rep.Summary.ExtraRanges[0]
	if !r.Set() || r.Min() != 500 || r.Max() != 520 {
		t.Errorf("height range = [%g, %g], want [500, 520]", r.Min(), r.Max())
	}

	var out strings.Builder
	rep.WriteText(&out)
	if !strings.Contains(out.String(), "height:") {
		t.Errorf("report is missing the height range:\n%s", out.String())
	}
}

func TestVerifyFileCanceled(t *testing.T) {
	n := 4096 // first cancellation check happens at this count
	data := buildFile(surveyHeader(2, 1, n), nil, surveyPoints(n))
	path := writeTemp(t, "big.las", data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := verify.VerifyFile(ctx, path, verify.Options{Log: zerolog.Nop()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestVerifyFileMissing(t *testing.T) {
	_, err := verify.VerifyFile(context.Background(), filepath.Join(t.TempDir(), "nope.las"),
		verify.Options{Log: zerolog.Nop()})
	if err == nil {
		t.Fatal("VerifyFile on a missing file succeeded")
	}
}
