package m4b

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/m4b/internal/file"
	"github.com/meigma/m4b/internal/wire"
)

// File is a file record: one archived file inside a Directory.
type File struct {
	// Name is the file name relative to its parent directory.
	Name string

	// Length is the byte length of the payload.
	Length uint32

	// Offset is the absolute position of the payload within the archive.
	// It is assigned by Write for built files and read from the header for
	// opened ones.
	Offset uint32

	// Source supplies the payload bytes.
	Source Source
}

// SerializedSize returns the number of header bytes the record occupies.
// It depends only on the name, never on the payload.
func (f *File) SerializedSize() int {
	return wire.StringSize(f.Name) + 8
}

// ReadFileRecord decodes one file record: the name, then length and offset.
// No payload bytes are consumed.
func ReadFileRecord(r io.Reader) (*File, error) {
	return readFileRecord(r, "")
}

func readFileRecord(r io.Reader, archive string) (*File, error) {
	name, err := wire.ReadString(r)
	if err != nil {
		return nil, fmt.Errorf("file name: %w", err)
	}
	length, err := wire.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: length of %q: %w", ErrFormat, name, err)
	}
	offset, err := wire.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: offset of %q: %w", ErrFormat, name, err)
	}
	return &File{
		Name:   name,
		Length: length,
		Offset: offset,
		Source: ArchiveSource{Archive: archive, Offset: offset},
	}, nil
}

// WriteHeader encodes the record with the given payload offset.
func (f *File) WriteHeader(w io.Writer, offset uint32) error {
	if err := wire.WriteString(w, f.Name); err != nil {
		return err
	}
	return wire.WriteUint32Pair(w, f.Length, offset)
}

// Extract copies the payload from archive to a new file named f.Name inside
// dir. The payload is read in chunks of at most file.ChunkSize bytes.
func (f *File) Extract(ctx context.Context, dir string, archive io.ReadSeeker) error {
	if err := checkName(f.Name); err != nil {
		return err
	}
	offset, err := f.archiveOffset()
	if err != nil {
		return err
	}
	if _, err := archive.Seek(int64(offset), io.SeekStart); err != nil {
		return ioError("seek", f.Name, err)
	}

	dest := filepath.Join(dir, f.Name)
	out, err := os.Create(dest) //nolint:gosec // Name checked above
	if err != nil {
		return ioError("create", dest, err)
	}

	if _, err := file.CopyN(ctx, out, archive, int64(f.Length), file.NewBuffer()); err != nil {
		out.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return ioError("extract", dest, err)
	}
	if err := out.Close(); err != nil {
		return ioError("close", dest, err)
	}
	return nil
}

// archiveOffset returns where the payload sits in the archive being read.
// Write reassigns Offset, so archive-backed files keep their original
// position in the Source.
func (f *File) archiveOffset() (uint32, error) {
	switch src := f.Source.(type) {
	case ArchiveSource:
		return src.Offset, nil
	case PathSource:
		return 0, fmt.Errorf("%w: %s is not stored in the archive", ErrState, f.Name)
	default:
		return f.Offset, nil
	}
}

// checkName rejects names that would resolve outside their parent directory.
// Only the host's separators count: a backslash is an ordinary name byte on
// Unix.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}
