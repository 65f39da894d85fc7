package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudeepge/LAStools-M4/internal/crs"
	"github.com/sudeepge/LAStools-M4/internal/las"
	"github.com/sudeepge/LAStools-M4/internal/logx"
	"github.com/sudeepge/LAStools-M4/internal/verify"
)

// Exit status: 0 all files clean (or repaired clean), 1 warnings left
// unfixed, 2 a file could not be processed at all.

func main() {
	defaultNamesDir := os.Getenv("LASTOOLS_EPSG_NAMES")

	var (
		repairAll      = flag.Bool("repair", false, "Repair counters and bounding box")
		repairCounters = flag.Bool("repair-counters", false, "Repair point counters only")
		repairBBox     = flag.Bool("repair-bbox", false, "Repair the bounding box only")
		dryRun         = flag.Bool("dry-run", false, "Compute corrections without writing them")
		recurse        = flag.Bool("recurse", false, "Descend into directories")
		namesDir       = flag.String("epsg-names", defaultNamesDir, "Directory of code<TAB>name TSV tables for CRS names")
		quiet          = flag.Bool("quiet", false, "Log errors only")
		verbose        = flag.Bool("verbose", false, "Log debug detail")
		progress       = flag.Duration("progress", 0, "Progress log interval during long reads (0 = off)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: lasrepair [options] <file.las[.gz|.zst]|directory> ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *quiet {
		level = zerolog.ErrorLevel
	}
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := logx.NewLogger(level)

	mode := verify.Mode(0)
	if *repairAll {
		mode = verify.RepairAll
	}
	if *repairCounters {
		mode |= verify.RepairCounters
	}
	if *repairBBox {
		mode |= verify.RepairBBox
	}

	var names *crs.NameTable
	if *namesDir != "" {
		names = crs.NewNameTable()
		if err := names.LoadDir(*namesDir); err != nil {
			logger.Warn().Err(err).Str("dir", *namesDir).Msg("epsg names not loaded")
			names = nil
		} else {
			logger.Debug().Int("codes", names.Count()).Msg("epsg names loaded")
		}
	}

	files, err := collectFiles(flag.Args(), *recurse)
	if err != nil {
		logger.Error().Err(err).Msg("collect inputs")
		os.Exit(2)
	}
	if len(files) == 0 {
		logger.Warn().Msg("no las files found")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := verify.Options{
		Mode:          mode,
		DryRun:        *dryRun,
		Names:         names,
		Log:           logger,
		ProgressEvery: *progress,
	}

	start := time.Now()
	var checked, repaired, failed, unfixed int
	for _, path := range files {
		rep, err := verify.VerifyFile(ctx, path, opts)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn().Str("file", path).Msg("interrupted")
				failed++
				break
			}
			logger.Error().Err(err).Str("file", path).Msg("verify failed")
			failed++
			continue
		}
		checked++
		rep.WriteText(os.Stdout)
		unfixed += rep.Unfixed()
		if rep.Applied {
			repaired++
		}
	}

	logger.Info().
		Int("files", checked).
		Int("repaired", repaired).
		Int("failed", failed).
		Int("unfixed_warnings", unfixed).
		Dur("elapsed", time.Since(start)).
		Msg("done")

	switch {
	case failed > 0:
		os.Exit(2)
	case unfixed > 0:
		os.Exit(1)
	}
}

// collectFiles expands the positional arguments into a sorted list of LAS
// paths. Directories contribute their LAS entries, one level deep unless
// recurse is set.
func collectFiles(args []string, recurse bool) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		if recurse {
			err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && las.IsLASFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && las.IsLASFile(e.Name()) {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
