package m4b

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/m4b/internal/sizing"
)

// Source locates the payload bytes of a File.
//
// A File built from a directory has a PathSource; a File read from an
// archive has an ArchiveSource. The set of variants is closed.
type Source interface {
	isSource()
}

// PathSource is payload held in a regular file on disk.
type PathSource struct {
	Path string
}

// ArchiveSource is payload held in an existing archive at a fixed offset.
// Archive is empty when the record was decoded from a stream with no backing
// file; such a source can be listed but not copied.
type ArchiveSource struct {
	Archive string
	Offset  uint32
}

func (PathSource) isSource()    {}
func (ArchiveSource) isSource() {}

// sourceSet opens payload sources during Write, sharing one handle per
// archive file.
type sourceSet struct {
	archives map[string]*os.File
}

func newSourceSet() *sourceSet {
	return &sourceSet{archives: make(map[string]*os.File)}
}

// check verifies that src can supply exactly length bytes.
func (s *sourceSet) check(name string, src Source, length uint32) error {
	switch src := src.(type) {
	case PathSource:
		info, err := os.Stat(src.Path)
		if err != nil {
			return ioError("stat", src.Path, err)
		}
		if !info.Mode().IsRegular() {
			return ioError("stat", src.Path, errors.New("not a regular file"))
		}
		if info.Size() != int64(length) {
			return fmt.Errorf("%w: %s: recorded %d bytes, found %d", ErrSourceChanged, src.Path, length, info.Size())
		}
		return nil
	case ArchiveSource:
		f, err := s.archive(src.Archive)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			return ioError("stat", src.Archive, err)
		}
		if !sizing.Within(src.Offset, length, info.Size()) {
			return ioError("read", src.Archive, fmt.Errorf("%s: payload at %d+%d: %w", name, src.Offset, length, io.ErrUnexpectedEOF))
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has no payload source", ErrState, name)
	}
}

// open returns a reader over the payload of src and a function releasing it.
func (s *sourceSet) open(src Source, length uint32) (io.Reader, func() error, error) {
	switch src := src.(type) {
	case PathSource:
		f, err := os.Open(src.Path) //nolint:gosec // Paths come from Build
		if err != nil {
			return nil, nil, ioError("open", src.Path, err)
		}
		return f, f.Close, nil
	case ArchiveSource:
		f, err := s.archive(src.Archive)
		if err != nil {
			return nil, nil, err
		}
		return io.NewSectionReader(f, int64(src.Offset), int64(length)), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: no payload source", ErrState)
	}
}

func (s *sourceSet) archive(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: payload belongs to an archive stream with no file", ErrState)
	}
	if f, ok := s.archives[path]; ok {
		return f, nil
	}
	f, err := os.Open(path) //nolint:gosec // Path was bound by Open
	if err != nil {
		return nil, ioError("open", path, err)
	}
	s.archives[path] = f
	return f, nil
}

// Close releases every archive handle opened by the set.
func (s *sourceSet) Close() error {
	var first error
	for path, f := range s.archives {
		if err := f.Close(); err != nil && first == nil {
			first = ioError("close", path, err)
		}
		delete(s.archives, path)
	}
	return first
}
