package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sudeepge/LAStools-M4/internal/las"
)

// lasedit rewrites individual header and VLR sub-header fields of an
// uncompressed LAS file in place. Malformed edit arguments abort the run
// before anything is written; edits whose target does not exist in the file
// (a VLR index beyond the table, a field beyond this version's header
// block) are skipped and reported, the rest are applied.

// repeated collects every occurrence of a flag.
type repeated []string

func (r *repeated) String() string { return strings.Join(*r, ",") }
func (r *repeated) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	var (
		sets      repeated
		userIDs   repeated
		recordIDs repeated
		descs     repeated
	)
	flag.Var(&sets, "set", "Header edit as name=value (repeatable)")
	flag.Var(&userIDs, "set-vlr-user-id", "VLR user ID edit as index:value (repeatable)")
	flag.Var(&recordIDs, "set-vlr-record-id", "VLR record ID edit as index:value (repeatable)")
	flag.Var(&descs, "set-vlr-description", "VLR description edit as index:value (repeatable)")
	dryRun := flag.Bool("dry-run", false, "Print planned edits without writing them")
	listFields := flag.Bool("fields", false, "List editable header fields and exit")
	flag.Parse()

	if *listFields {
		printFields()
		return
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: lasedit [options] <file.las>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	if las.DetectContainer(path) != las.ContainerPlain {
		fmt.Fprintf(os.Stderr, "%s: editing needs an uncompressed .las file\n", path)
		os.Exit(1)
	}
	r, err := las.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	header := r.Header
	vlrs := r.VLRs
	r.Close()

	// Build every edit before writing anything. A bad argument means the
	// file stays untouched.
	var patches []las.Patch
	var skipped int
	bad := false

	for _, arg := range sets {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "-set %q: want name=value\n", arg)
			bad = true
			continue
		}
		spec, known := las.HeaderFields[name]
		if known && spec.Offset+int64(spec.Width) > int64(header.HeaderSize) {
			fmt.Fprintf(os.Stderr, "-set %s: not present in a version %s header, skipped\n", name, header.Version())
			skipped++
			continue
		}
		p, err := las.PatchField(name, value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "-set %s: %v\n", name, err)
			bad = true
			continue
		}
		patches = append(patches, p)
	}

	vlrEdits := []struct {
		flag  string
		args  repeated
		field las.VLRField
	}{
		{"-set-vlr-user-id", userIDs, las.VLRUserID},
		{"-set-vlr-record-id", recordIDs, las.VLRRecordID},
		{"-set-vlr-description", descs, las.VLRDescription},
	}
	for _, edit := range vlrEdits {
		for _, arg := range edit.args {
			index, value, err := splitIndexed(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", edit.flag, err)
				bad = true
				continue
			}
			offset, width, err := las.LocateVLRField(vlrs, int64(header.HeaderSize), index, edit.field)
			if errors.Is(err, las.ErrRecordNotFound) {
				fmt.Fprintf(os.Stderr, "%s %d: %v, skipped\n", edit.flag, index, err)
				skipped++
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %d: %v\n", edit.flag, index, err)
				bad = true
				continue
			}
			var p las.Patch
			if edit.field == las.VLRRecordID {
				n, err := strconv.ParseUint(value, 0, 16)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s %d: %v\n", edit.flag, index, err)
					bad = true
					continue
				}
				p = las.PatchUint16(offset, uint16(n))
			} else {
				p, err = las.PatchString(offset, width, value)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s %d: %v\n", edit.flag, index, err)
					bad = true
					continue
				}
			}
			patches = append(patches, p)
		}
	}

	if bad {
		fmt.Fprintln(os.Stderr, "bad arguments, nothing written")
		os.Exit(1)
	}
	if len(patches) == 0 && skipped == 0 {
		fmt.Fprintln(os.Stderr, "nothing to do; see -fields for editable header fields")
		os.Exit(1)
	}

	// Two edits landing on the same bytes is a caller mistake, not a
	// last-one-wins.
	for i := range patches {
		for j := i + 1; j < len(patches); j++ {
			if las.Overlaps(patches[i], patches[j]) {
				fmt.Fprintf(os.Stderr, "edits %d and %d target overlapping bytes, nothing written\n", i+1, j+1)
				os.Exit(1)
			}
		}
	}

	for _, p := range patches {
		fmt.Printf("%s: write %d bytes at offset %d\n", path, len(p.Data), p.Offset)
	}
	if *dryRun {
		fmt.Printf("dry run: %d edits not written\n", len(patches))
		return
	}

	if len(patches) > 0 {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open for writing: %v\n", err)
			os.Exit(1)
		}
		if err := las.ApplyPatches(f, patches); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "apply: %v\n", err)
			os.Exit(1)
		}
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("%s: %d edits written, %d skipped\n", path, len(patches), skipped)
	if skipped > 0 {
		os.Exit(1)
	}
}

func splitIndexed(arg string) (int, string, error) {
	idxStr, value, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, "", fmt.Errorf("want index:value, got %q", arg)
	}
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		return 0, "", fmt.Errorf("index %q: %v", idxStr, err)
	}
	return index, value, nil
}

func printFields() {
	names := make([]string, 0, len(las.HeaderFields))
	for name := range las.HeaderFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := las.HeaderFields[name]
		fmt.Printf("%-24s offset %3d  %2d bytes  %s\n", name, spec.Offset, spec.Width, spec.Kind)
	}
}
