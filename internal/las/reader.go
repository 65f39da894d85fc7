package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrLAZNotSupported is returned for .laz input. Decoding the LAZ point
// stream needs an external codec; only whole-file gzip/zstd wrapping of
// plain LAS is handled here.
var ErrLAZNotSupported = errors.New("laz point compression not supported")

// Container describes how a LAS byte stream is wrapped on disk.
type Container int

const (
	ContainerPlain Container = iota
	ContainerGzip
	ContainerZstd
	ContainerLAZ
)

// DetectContainer classifies a path by extension. .las.gz and .las.zst are
// whole-file compressed LAS; .laz is LAZ point compression.
func DetectContainer(path string) Container {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return ContainerGzip
	case ".zst":
		return ContainerZstd
	case ".laz":
		return ContainerLAZ
	}
	return ContainerPlain
}

// IsLASFile reports whether name looks like a readable LAS file, including
// the .las.gz and .las.zst compressed forms.
func IsLASFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".las" {
		return true
	}
	if ext == ".gz" || ext == ".zst" {
		base := name[:len(name)-len(ext)]
		return strings.ToLower(filepath.Ext(base)) == ".las"
	}
	return false
}

// Reader streams points out of a LAS file. The header and VLR table are
// decoded and validated by Open; points come one at a time from ReadPoint.
type Reader struct {
	Header *Header
	VLRs   []VLR

	f         *os.File
	r         io.Reader // f, or a decompressor wrapping it
	zr        *zstd.Decoder
	gz        *gzip.Reader
	seekable  bool
	fileSize  int64
	recLen    int
	buf       []byte
	remain    int64 // bytes left in the point region, -1 when unbounded
	truncated bool
	read      uint64
}

// Open opens path, decodes and validates the header and reads the VLR
// table, leaving the reader positioned at the first point. Compressed
// containers are read transparently but are not seekable.
func Open(path string) (*Reader, error) {
	container := DetectContainer(path)
	if container == ContainerLAZ {
		return nil, fmt.Errorf("%s: %w", path, ErrLAZNotSupported)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{f: f}
	switch container {
	case ContainerGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: gzip: %w", path, err)
		}
		r.gz = gz
		r.r = gz
	case ContainerZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: zstd: %w", path, err)
		}
		r.zr = zr
		r.r = zr
	default:
		r.r = f
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			r.seekable = true
			r.fileSize = fi.Size()
		}
	}

	if err := r.init(); err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) init() error {
	core := make([]byte, HeaderSize12)
	if _, err := io.ReadFull(r.r, core); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	buf := core
	if hdrSize := int(binary.LittleEndian.Uint16(core[OffHeaderSize : OffHeaderSize+2])); hdrSize > len(core) {
		buf = append(core, make([]byte, hdrSize-len(core))...)
		if _, err := io.ReadFull(r.r, buf[len(core):]); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		}
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return err
	}
	if err := h.Validate(); err != nil {
		return err
	}
	r.Header = h
	consumed := int64(len(buf))

	vlrs, err := ReadVLRs(r.r, h.NumberOfVLRs)
	if err != nil {
		return err
	}
	r.VLRs = vlrs
	for i := range vlrs {
		consumed += VLRHeaderSize + int64(len(vlrs[i].Body))
	}

	if int64(h.OffsetToPointData) < consumed {
		return fmt.Errorf("%w: point data offset %d inside vlr table ending at %d", ErrMalformedHeader, h.OffsetToPointData, consumed)
	}
	if skip := int64(h.OffsetToPointData) - consumed; skip > 0 {
		if _, err := io.CopyN(io.Discard, r.r, skip); err != nil {
			return fmt.Errorf("skip to point data: %w", err)
		}
	}

	r.recLen = int(h.PointRecordLength)
	r.buf = make([]byte, r.recLen)

	// The point region ends at the first structure that follows it, never at
	// a declared point count: counts are exactly what we are here to verify.
	end := int64(-1)
	bound := func(v uint64) {
		if v > 0 && (end < 0 || int64(v) < end) {
			end = int64(v)
		}
	}
	bound(h.StartOfWaveform)
	bound(h.StartOfFirstEVLR)
	if r.seekable {
		bound(uint64(r.fileSize))
	}
	if end >= 0 {
		if end < int64(h.OffsetToPointData) {
			return fmt.Errorf("%w: point region ends at %d, before point data offset %d", ErrMalformedHeader, end, h.OffsetToPointData)
		}
		r.remain = end - int64(h.OffsetToPointData)
	} else {
		r.remain = -1 // compressed stream without trailing structures
	}
	return nil
}

// ReadPoint reads the next point record into p. It returns io.EOF at the
// end of the point region. A trailing partial record sets Truncated and is
// not surfaced as a point.
func (r *Reader) ReadPoint(p *Point) error {
	if r.remain == 0 {
		return io.EOF
	}
	if r.remain > 0 && r.remain < int64(r.recLen) {
		r.truncated = true
		r.remain = 0
		return io.EOF
	}
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			r.truncated = true
			return io.EOF
		}
		return err
	}
	if r.remain > 0 {
		r.remain -= int64(r.recLen)
	}
	DecodePoint(r.buf, r.Header.PointFormat, p)
	r.read++
	return nil
}

// PointsRead returns the number of whole point records decoded so far.
func (r *Reader) PointsRead() uint64 { return r.read }

// Truncated reports whether the point region ended inside a record.
func (r *Reader) Truncated() bool { return r.truncated }

// Seekable reports whether the underlying file is a plain regular file that
// can take in-place patches.
func (r *Reader) Seekable() bool { return r.seekable }

// Close releases the underlying file and any decompressor. It is safe to
// call more than once.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
	if r.gz != nil {
		r.gz.Close()
		r.gz = nil
	}
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
