// Package verify checks LAS headers against the truth accumulated from a
// full pass over the file's points, and repairs wrong header fields in
// place.
//
// A verification pass is strictly sequential: one read pass builds a
// Summary, the cross-checker turns header disagreements into warnings and
// byte-range corrections, and only after the reader is closed is the file
// reopened for the corrections to be written. Nothing but the corrected
// header bytes ever changes; point data and VLR bodies are never moved.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudeepge/LAStools-M4/internal/crs"
	"github.com/sudeepge/LAStools-M4/internal/las"
)

// Options configure a verification pass.
type Options struct {
	// Mode selects the correction families to schedule. Zero checks only.
	Mode Mode

	// DryRun computes and reports corrections without writing any.
	DryRun bool

	// Names resolves EPSG codes to CRS names in reports. May be nil.
	Names *crs.NameTable

	// Log receives progress and debug output. Pass zerolog.Nop() to
	// silence it.
	Log zerolog.Logger

	// ProgressEvery is the interval between progress log lines during the
	// read pass. Zero disables them.
	ProgressEvery time.Duration
}

// VerifyFile runs one full verification pass over path. With a repair mode
// set it refuses compressed and non-seekable inputs before reading any
// point, reads the stream to its end, then reopens the file and applies the
// scheduled corrections.
func VerifyFile(ctx context.Context, path string, opts Options) (*Report, error) {
	repairing := opts.Mode != 0 && !opts.DryRun
	if repairing && las.DetectContainer(path) != las.ContainerPlain {
		return nil, fmt.Errorf("%s: cannot repair a compressed file: %w", path, las.ErrNotSeekable)
	}

	r, err := las.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if repairing && !r.Seekable() {
		return nil, fmt.Errorf("%s: cannot repair: %w", path, las.ErrNotSeekable)
	}

	var attrs []las.ExtraAttr
	if v := las.FindVLR(r.VLRs, las.ExtraBytesUserID, las.ExtraBytesRecordID); v != nil {
		attrs = las.ParseExtraBytes(v)
	}
	opts.Log.Debug().
		Str("file", filepath.Base(path)).
		Str("version", r.Header.Version()).
		Uint8("format", r.Header.PointFormat).
		Uint64("declared", r.Header.DeclaredPoints()).
		Int("vlrs", len(r.VLRs)).
		Msg("reading")

	summary := NewSummary(r.Header.PointFormat, attrs)
	lastLog := time.Now()
	var p las.Point
	for {
		err := r.ReadPoint(&p)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", path, summary.Count, err)
		}
		summary.Add(&p)

		if summary.Count&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if opts.ProgressEvery > 0 && time.Since(lastLog) >= opts.ProgressEvery {
				lastLog = time.Now()
				opts.Log.Info().
					Str("file", filepath.Base(path)).
					Uint64("points", summary.Count).
					Msg("reading")
			}
		}
	}

	rep := &Report{
		Path:      path,
		Header:    r.Header,
		Summary:   summary,
		Truncated: r.Truncated(),
	}
	if rep.Truncated {
		rep.Warnings = append(rep.Warnings, Warning{
			Field:   "point data",
			Message: "file ends inside a point record; trailing partial record ignored",
		})
	}

	entries, err := crs.ParseGeoKeys(r.VLRs)
	if err != nil {
		rep.Warnings = append(rep.Warnings, Warning{Field: "geokeys", Message: err.Error()})
	} else if entries != nil {
		if code, ok := crs.EPSG(entries); ok {
			rep.EPSG = code
			rep.EPSGName = opts.Names.Lookup(code)
		}
		rep.Citation = crs.Citation(entries)
	}

	patches, warnings := Check(r.Header, summary, opts.Mode)
	rep.Warnings = append(rep.Warnings, warnings...)
	rep.Patches = patches

	// Read pass done. Release the read handle before touching the file.
	if err := r.Close(); err != nil {
		return nil, err
	}
	if len(patches) == 0 || !repairing {
		return rep, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := las.ApplyPatches(f, patches); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	rep.Applied = true
	opts.Log.Info().
		Str("file", filepath.Base(path)).
		Int("corrections", len(patches)).
		Msg("repaired")
	return rep, nil
}
