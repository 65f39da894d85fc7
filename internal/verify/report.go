package verify

import (
	"fmt"
	"io"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

// Report is the outcome of verifying one file.
type Report struct {
	Path      string
	Header    *las.Header
	Summary   *Summary
	EPSG      uint16 // 0 when the file names no usable CRS
	EPSGName  string
	Citation  string
	Truncated bool
	Warnings  []Warning
	Patches   []las.Patch
	Applied   bool // corrections were written to the file
}

// Clean reports whether verification found nothing to complain about.
func (r *Report) Clean() bool { return len(r.Warnings) == 0 }

// Unfixed counts warnings that no scheduled correction addresses.
func (r *Report) Unfixed() int {
	n := 0
	for _, w := range r.Warnings {
		if !w.Fixed {
			n++
		}
	}
	return n
}

// classNames are the standard classification names for codes 0-18.
var classNames = [...]string{
	"never classified", "unclassified", "ground", "low vegetation",
	"medium vegetation", "high vegetation", "building", "noise",
	"model key-point", "water", "rail", "road surface", "overlap",
	"wire guard", "wire conductor", "transmission tower", "wire connector",
	"bridge deck", "high noise",
}

func className(code int) string {
	if code < len(classNames) {
		return classNames[code]
	}
	return fmt.Sprintf("class %d", code)
}

// WriteText writes the human-readable report form.
func (r *Report) WriteText(w io.Writer) {
	h, s := r.Header, r.Summary
	fmt.Fprintf(w, "%s\n", r.Path)
	fmt.Fprintf(w, "  version:        %s\n", h.Version())
	fmt.Fprintf(w, "  source id:      %d\n", h.FileSourceID)
	fmt.Fprintf(w, "  system id:      %q\n", h.SystemID())
	fmt.Fprintf(w, "  software:       %q\n", h.Software())
	fmt.Fprintf(w, "  created:        day %d of %d\n", h.FileCreationDay, h.FileCreationYear)
	fmt.Fprintf(w, "  guid:           %s\n", h.GUID())
	fmt.Fprintf(w, "  point format:   %d (%d bytes per record)\n", h.PointFormat, h.PointRecordLength)
	fmt.Fprintf(w, "  declared:       %d points, %d vlrs\n", h.DeclaredPoints(), h.NumberOfVLRs)
	fmt.Fprintf(w, "  scale:          %g %g %g\n", h.Scale[las.X], h.Scale[las.Y], h.Scale[las.Z])
	fmt.Fprintf(w, "  offset:         %g %g %g\n", h.Offset[las.X], h.Offset[las.Y], h.Offset[las.Z])
	switch {
	case r.EPSG != 0 && r.EPSGName != "":
		fmt.Fprintf(w, "  crs:            EPSG %d (%s)\n", r.EPSG, r.EPSGName)
	case r.EPSG != 0:
		fmt.Fprintf(w, "  crs:            EPSG %d\n", r.EPSG)
	}
	if r.Citation != "" {
		fmt.Fprintf(w, "  citation:       %s\n", r.Citation)
	}

	fmt.Fprintf(w, "  points:         %d\n", s.Count)
	if s.X.Set() {
		fmt.Fprintf(w, "  x range:        %.8f .. %.8f\n",
			h.Coordinate(las.X, s.X.Min()), h.Coordinate(las.X, s.X.Max()))
		fmt.Fprintf(w, "  y range:        %.8f .. %.8f\n",
			h.Coordinate(las.Y, s.Y.Min()), h.Coordinate(las.Y, s.Y.Max()))
		fmt.Fprintf(w, "  z range:        %.8f .. %.8f\n",
			h.Coordinate(las.Z, s.Z.Min()), h.Coordinate(las.Z, s.Z.Max()))
	}
	if s.Count > 0 {
		fmt.Fprintf(w, "  returns:        %s\n", histogram(s.ByReturn[:]))
		fmt.Fprintf(w, "  categories:     first %d, intermediate %d, last %d, single %d\n",
			s.First, s.Intermediate, s.Last, s.Single)
		writeClassifications(w, s)
		writeFlags(w, s)
		writeRanges(w, r)
	}

	for _, warn := range r.Warnings {
		suffix := ""
		if warn.Fixed {
			suffix = " (repaired)"
		}
		fmt.Fprintf(w, "  WARNING: %s: %s%s\n", warn.Field, warn.Message, suffix)
	}
	switch {
	case r.Applied:
		fmt.Fprintf(w, "  %d corrections written\n", len(r.Patches))
	case len(r.Patches) > 0:
		fmt.Fprintf(w, "  %d corrections computed, none written\n", len(r.Patches))
	}
}

// histogram formats the nonzero buckets of a counter array as "i:n" pairs.
func histogram(buckets []uint64) string {
	out := ""
	for i, n := range buckets {
		if n == 0 {
			continue
		}
		if out != "" {
			out += "  "
		}
		out += fmt.Sprintf("%d:%d", i, n)
	}
	if out == "" {
		return "none"
	}
	return out
}

func writeClassifications(w io.Writer, s *Summary) {
	for code, n := range s.Classification {
		if n > 0 {
			fmt.Fprintf(w, "  class %3d:      %10d  %s\n", code, n, className(code))
		}
	}
	for code, n := range s.ExtendedClassification {
		if n > 0 {
			fmt.Fprintf(w, "  class %3d:      %10d  %s\n", code, n, className(code))
		}
	}
}

func writeFlags(w io.Writer, s *Summary) {
	flags := []struct {
		name string
		f    *Flagged
	}{
		{"synthetic", &s.Synthetic},
		{"key-point", &s.KeyPoint},
		{"withheld", &s.Withheld},
	}
	for _, fl := range flags {
		if fl.f.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-15s %d (%s)\n", fl.name+":", fl.f.Count, histogram(fl.f.ByClass[:]))
	}
	if s.Overlap > 0 {
		fmt.Fprintf(w, "  overlap:        %d\n", s.Overlap)
	}
}

func writeRanges(w io.Writer, r *Report) {
	s := r.Summary
	writeRange(w, "intensity", s.Intensity, "%.0f")
	if s.ScanAngle.Set() {
		if r.Header.HasExtendedPointTypes() {
			// Extended scan angles are stored in 0.006 degree units.
			fmt.Fprintf(w, "  scan angle:     %.3f .. %.3f degrees\n",
				s.ScanAngle.Min()*0.006, s.ScanAngle.Max()*0.006)
		} else {
			writeRange(w, "scan angle", s.ScanAngle, "%.0f")
		}
	}
	writeRange(w, "user data", s.UserData, "%.0f")
	writeRange(w, "point source", s.PointSource, "%.0f")
	writeRange(w, "gps time", s.GPSTime, "%f")
	writeRange(w, "red", s.Red, "%.0f")
	writeRange(w, "green", s.Green, "%.0f")
	writeRange(w, "blue", s.Blue, "%.0f")
	writeRange(w, "nir", s.NIR, "%.0f")
	writeRange(w, "wave index", s.WaveIndex, "%.0f")
	writeRange(w, "wave offset", s.WaveOffset, "%.0f")
	writeRange(w, "wave size", s.WaveSize, "%.0f")
	writeRange(w, "wave location", s.WaveLocation, "%g")
	for i := range s.ExtraRanges {
		writeRange(w, s.attrs[i].Name, s.ExtraRanges[i], "%g")
	}
}

func writeRange(w io.Writer, name string, m MinMax, verb string) {
	if !m.Set() {
		return
	}
	fmt.Fprintf(w, "  %-15s "+verb+" .. "+verb+"\n", name+":", m.Min(), m.Max())
}
