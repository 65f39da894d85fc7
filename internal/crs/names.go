package crs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NameTable maps EPSG codes to CRS names.
type NameTable struct {
	byCode map[uint16]string
	count  int
}

// NewNameTable creates an empty name table.
func NewNameTable() *NameTable {
	return &NameTable{
		byCode: make(map[uint16]string),
	}
}

// LoadDir loads all .tsv files from a directory.
func (t *NameTable) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := t.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file.
func (t *NameTable) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip header
		if lineNum == 1 && strings.HasPrefix(line, "code\t") {
			continue
		}

		// Parse TSV: code\tname
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}

		code, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			// Skip invalid lines silently
			continue
		}

		t.byCode[uint16(code)] = parts[1]
		t.count++
	}

	return scanner.Err()
}

// Lookup returns the name for an EPSG code, or "". A nil table is empty.
func (t *NameTable) Lookup(code uint16) string {
	if t == nil {
		return ""
	}
	return t.byCode[code]
}

// Count returns the number of codes loaded.
func (t *NameTable) Count() int {
	if t == nil {
		return 0
	}
	return t.count
}
