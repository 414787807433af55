package m4b

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/m4b/internal/wire"
)

// Signature is the tag every archive begins with, stored as a string record.
const Signature = "UBI_BF_SIG"

// Format version written by Write. Open reads these fields without checking them.
const (
	VersionMajor uint32 = 1
	VersionMinor uint32 = 0
)

// FixedHeaderSize is the size of the signature and version fields that
// precede the root directory record.
const FixedHeaderSize = 4 + len(Signature) + 1 + 4 + 4

// Binding records what an Archive's payload sources refer to.
type Binding uint8

const (
	// Unbound archives were created empty and have not been built or opened.
	Unbound Binding = iota
	// BoundArchive archives were parsed from an archive file by Open.
	BoundArchive
	// BoundSource archives were scanned from a directory by Build.
	BoundSource
)

func (b Binding) String() string {
	switch b {
	case BoundArchive:
		return "archive"
	case BoundSource:
		return "source"
	default:
		return "unbound"
	}
}

// Archive is an in-memory m4b archive: an anonymous root directory record
// plus the file or directory it was loaded from.
//
// An Archive is not safe for concurrent use.
type Archive struct {
	root    *Directory
	binding Binding
	path    string
	major   uint32
	minor   uint32
	logger  *slog.Logger
}

// New returns an empty, unbound archive.
func New(opts ...Option) *Archive {
	a := &Archive{
		root:  NewRoot(),
		major: VersionMajor,
		minor: VersionMinor,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open parses the header of the archive at path. The whole directory tree is
// read eagerly; payload bytes are not touched until Extract or Write.
func Open(path string, opts ...Option) (*Archive, error) {
	a := New(opts...)

	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, ioError("open", path, err)
	}
	defer f.Close()

	major, minor, root, err := readArchiveHeader(bufio.NewReader(f), path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	a.root, a.major, a.minor = root, major, minor
	a.binding, a.path = BoundArchive, path
	stats := root.Stats()
	a.log().Info("opened archive", "path", path, "dirs", stats.Dirs, "files", stats.Files, "bytes", stats.Bytes)
	return a, nil
}

// ReadHeader parses an archive header from r and returns its root directory.
// Files in the result have an ArchiveSource with no backing file.
func ReadHeader(r io.Reader) (*Directory, error) {
	_, _, root, err := readArchiveHeader(r, "")
	return root, err
}

func readArchiveHeader(r io.Reader, path string) (major, minor uint32, root *Directory, err error) {
	siglen, err := wire.ReadUint32(r)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: signature length: %w", ErrFormat, err)
	}
	if siglen != uint32(len(Signature)+1) {
		return 0, 0, nil, fmt.Errorf("%w: signature length %d, want %d", ErrFormat, siglen, len(Signature)+1)
	}
	sig := make([]byte, siglen)
	if _, err := io.ReadFull(r, sig); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: signature: %w", ErrFormat, io.ErrUnexpectedEOF)
	}
	if !bytes.Equal(sig, []byte(Signature+"\x00")) {
		return 0, 0, nil, fmt.Errorf("%w: bad signature %q", ErrFormat, sig)
	}

	if major, err = wire.ReadUint32(r); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: major version: %w", ErrFormat, err)
	}
	if minor, err = wire.ReadUint32(r); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: minor version: %w", ErrFormat, err)
	}

	root, err = readDirectory(r, true, path)
	if err != nil {
		return 0, 0, nil, err
	}
	return major, minor, root, nil
}

// Build replaces the archive's contents with a scan of the directory at
// path. On failure the archive is left unchanged.
func (a *Archive) Build(ctx context.Context, path string) error {
	a.log().Info("building archive", "dir", path)

	root := NewRoot()
	if err := root.Build(ctx, path); err != nil {
		return err
	}

	a.root = root
	a.binding, a.path = BoundSource, path
	a.major, a.minor = VersionMajor, VersionMinor
	stats := root.Stats()
	a.log().Debug("archive built", "dirs", stats.Dirs, "files", stats.Files, "bytes", stats.Bytes)
	return nil
}

// Root returns the anonymous root directory record.
func (a *Archive) Root() *Directory {
	return a.root
}

// Binding reports whether the archive was opened, built, or neither.
func (a *Archive) Binding() Binding {
	return a.binding
}

// Path returns the archive file (for opened archives) or source directory
// (for built ones). It is empty for unbound archives.
func (a *Archive) Path() string {
	return a.path
}

// Version returns the version fields read by Open, or the ones Write emits.
func (a *Archive) Version() (major, minor uint32) {
	return a.major, a.minor
}

// ListContents writes an indented tree of the archive's contents to w, or to
// standard output if w is nil.
func (a *Archive) ListContents(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	return a.root.ListContents().Print(w)
}

// Extract writes every file in the archive below dest, creating directories
// as needed. The archive must have been opened from a file. Existing files
// are overwritten; on failure, files already written are left in place.
func (a *Archive) Extract(ctx context.Context, dest string, opts ...ExtractOption) error {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if a.binding != BoundArchive {
		return fmt.Errorf("%w: extract needs an opened archive, have %s", ErrState, a.binding)
	}
	if cfg.only != "" {
		return fmt.Errorf("%w: extracting a single file (%s)", ErrNotImplemented, cfg.only)
	}

	f, err := os.Open(a.path)
	if err != nil {
		return ioError("open", a.path, err)
	}
	defer f.Close()

	a.log().Info("extracting archive", "path", a.path, "dest", dest)
	if err := a.root.Extract(ctx, dest, f); err != nil {
		return err
	}
	a.log().Debug("archive extracted", "files", a.root.Stats().Files)
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}
