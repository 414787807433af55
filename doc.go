// Package m4b reads and writes m4b archives: a single file holding a
// directory tree and the contents of its files.
//
// An archive is a header followed by a payload region:
//   - Signature: a string record holding "UBI_BF_SIG"
//   - Version: two little-endian uint32 fields, 1 and 0
//   - Root directory record (anonymous)
//   - Payload: file contents, concatenated with no padding
//
// A directory record is an optional name string, a uint8 subdirectory count
// followed by that many directory records, and a uint32 file count followed
// by that many file records. A file record is a name string, a uint32 length
// and a uint32 absolute offset. Strings are a uint32 length that counts a
// trailing null, the ASCII bytes, and the null. All integers are
// little-endian.
//
// Offsets are assigned by a single running counter in the order files are
// written: within each directory subdirectories come first, depth first, then
// the directory's own files. The first file starts right after the header.
// Build records entries in the order the filesystem enumerates them, so the
// same tree may produce different (equally valid) layouts on different hosts.
package m4b
