// Package las reads and patches ASPRS LAS point cloud files.
//
// The package covers LAS versions 1.0 through 1.4: the fixed public header
// block, the variable length record (VLR) table that follows it, and point
// data record formats 0-10. Reading is streaming (one point at a time) and
// never trusts the header's declared point counts; writing is surgical
// (byte-range patches against an existing file), which is all a header
// repair tool needs.
//
// File layout:
//   - Public header block (227, 235 or 375 bytes depending on version)
//   - VLR table: repeated 54-byte sub-header + body
//   - Point records at OffsetToPointData, PointRecordLength bytes each
//   - Optional waveform data and EVLRs after the points (1.3+/1.4)
//
// Whole-file gzip and zstd wrappers (.las.gz, .las.zst) are read
// transparently but cannot take in-place patches. LAZ point compression is
// out of scope.
package las
