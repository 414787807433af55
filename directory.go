package m4b

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/meigma/m4b/internal/sizing"
	"github.com/meigma/m4b/internal/walk"
	"github.com/meigma/m4b/internal/wire"
)

// MaxSubdirectories is the most immediate subdirectories a directory record
// can hold; the count is stored in a single byte.
const MaxSubdirectories = math.MaxUint8

// Directory is a directory record. Subdirectories and files keep the order
// in which they were read or scanned; that order is both the header layout
// and the order in which payload offsets are assigned.
type Directory struct {
	// Name is the directory name. It is unused for the root.
	Name    string
	Subdirs []*Directory
	Files   []*File

	root bool
}

// NewRoot returns an empty anonymous root directory.
func NewRoot() *Directory {
	return &Directory{root: true}
}

// NewDirectory returns an empty directory named name.
func NewDirectory(name string) *Directory {
	return &Directory{Name: name}
}

// IsRoot reports whether d is an anonymous root record.
func (d *Directory) IsRoot() bool {
	return d.root
}

// SerializedSize returns the number of header bytes d and everything below
// it occupy.
func (d *Directory) SerializedSize() int {
	size := 0
	if !d.root {
		size += wire.StringSize(d.Name)
	}
	size++
	for _, sub := range d.Subdirs {
		size += sub.SerializedSize()
	}
	size += 4
	for _, f := range d.Files {
		size += f.SerializedSize()
	}
	return size
}

// ReadDirectory decodes a directory record and all of its children. The root
// record carries no name.
func ReadDirectory(r io.Reader, root bool) (*Directory, error) {
	return readDirectory(r, root, "")
}

func readDirectory(r io.Reader, root bool, archive string) (*Directory, error) {
	d := &Directory{root: root}
	if !root {
		name, err := wire.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("directory name: %w", err)
		}
		d.Name = name
	}

	nsub, err := wire.ReadUint8(r)
	if err != nil {
		return nil, fmt.Errorf("%w: subdirectory count of %q: %w", ErrFormat, d.Name, err)
	}
	d.Subdirs = make([]*Directory, 0, nsub)
	for range nsub {
		sub, err := readDirectory(r, false, archive)
		if err != nil {
			return nil, err
		}
		d.Subdirs = append(d.Subdirs, sub)
	}

	nfiles, err := wire.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: file count of %q: %w", ErrFormat, d.Name, err)
	}
	// The count is untrusted; let the slice grow as records decode.
	d.Files = make([]*File, 0, min(nfiles, 1024))
	for range nfiles {
		f, err := readFileRecord(r, archive)
		if err != nil {
			return nil, err
		}
		d.Files = append(d.Files, f)
	}
	return d, nil
}

// Build appends the contents of the directory at path to d, in the order
// the filesystem enumerates them. Directories (and links to them) become
// subdirectory records, regular files (and links to them) become file records
// with a PathSource; anything else is ignored. No offsets are assigned.
func (d *Directory) Build(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := walk.ReadDir(path)
	if err != nil {
		return ioError("scan", path, err)
	}

	for _, e := range entries {
		switch e.Kind {
		case walk.Dir:
			sub := NewDirectory(e.Name)
			if err := sub.Build(ctx, e.Path); err != nil {
				return err
			}
			d.Subdirs = append(d.Subdirs, sub)
		case walk.File:
			length, err := sizing.ToUint32(e.Size, ErrSizeOverflow)
			if err != nil {
				return fmt.Errorf("%s: %d bytes: %w", e.Path, e.Size, err)
			}
			d.Files = append(d.Files, &File{
				Name:   e.Name,
				Length: length,
				Source: PathSource{Path: e.Path},
			})
		case walk.Skip:
		}
	}
	return nil
}

// Write encodes d and its children, assigning every file its payload offset
// from c. parent is the display path of d's parent ("/" for the root's).
func (d *Directory) Write(w io.Writer, c *Cursor, parent string) error {
	path := parent
	if !d.root {
		if err := wire.WriteString(w, d.Name); err != nil {
			return fmt.Errorf("directory %s: %w", parent, err)
		}
		path = parent + d.Name + "/"
	}

	if len(d.Subdirs) > MaxSubdirectories {
		return fmt.Errorf("%w: %s has %d subdirectories (max %d)", ErrEncoding, path, len(d.Subdirs), MaxSubdirectories)
	}
	if err := wire.WriteUint8(w, uint8(len(d.Subdirs))); err != nil {
		return err
	}
	for _, sub := range d.Subdirs {
		if err := sub.Write(w, c, path); err != nil {
			return err
		}
	}

	nfiles, err := sizing.IntToUint32(len(d.Files), ErrSizeOverflow)
	if err != nil {
		return fmt.Errorf("%s: file count: %w", path, err)
	}
	if err := wire.WriteUint32(w, nfiles); err != nil {
		return err
	}
	for _, f := range d.Files {
		offset, err := c.assign(path+f.Name, f)
		if err != nil {
			return err
		}
		if err := f.WriteHeader(w, offset); err != nil {
			return fmt.Errorf("file %s%s: %w", path, f.Name, err)
		}
	}
	return nil
}

// Extract recreates d below dest: it creates the directory (if named, as
// dest/Name), then extracts subdirectories, then files.
func (d *Directory) Extract(ctx context.Context, dest string, archive io.ReadSeeker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.root {
		if err := checkName(d.Name); err != nil {
			return err
		}
		dest = filepath.Join(dest, d.Name)
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return ioError("mkdir", dest, err)
	}

	for _, sub := range d.Subdirs {
		if err := sub.Extract(ctx, dest, archive); err != nil {
			return err
		}
	}
	for _, f := range d.Files {
		if err := f.Extract(ctx, dest, archive); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for every file in write order: subdirectories first, depth
// first, then the directory's own files. path is the file's display path.
func (d *Directory) Walk(fn func(path string, f *File) error) error {
	return d.walk("/", fn)
}

func (d *Directory) walk(parent string, fn func(string, *File) error) error {
	path := parent
	if !d.root {
		path = parent + d.Name + "/"
	}
	for _, sub := range d.Subdirs {
		if err := sub.walk(path, fn); err != nil {
			return err
		}
	}
	for _, f := range d.Files {
		if err := fn(path+f.Name, f); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes a directory tree.
type Stats struct {
	Dirs  int
	Files int
	Bytes uint64
}

// Stats counts the directories (excluding d), files and payload bytes below d.
func (d *Directory) Stats() Stats {
	var s Stats
	for _, sub := range d.Subdirs {
		ss := sub.Stats()
		s.Dirs += ss.Dirs + 1
		s.Files += ss.Files
		s.Bytes += ss.Bytes
	}
	for _, f := range d.Files {
		s.Files++
		s.Bytes += uint64(f.Length)
	}
	return s
}
