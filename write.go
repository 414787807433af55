package m4b

import (
	"bytes"
	"context"
	_ "crypto/sha256" // digest.Canonical
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/m4b/internal/file"
	"github.com/meigma/m4b/internal/wire"
)

// WriteResult describes an archive emitted by Write.
type WriteResult struct {
	// HeaderSize is the offset of the first payload byte.
	HeaderSize uint32

	// Size is the total number of bytes written.
	Size int64

	// Files is the number of file records written.
	Files int

	// Digest is the sha256 digest of every byte written.
	Digest digest.Digest
}

// plan is a fully encoded header plus the payload copies that follow it.
type plan struct {
	header  []byte
	pending []Pending
	sources *sourceSet
}

// Write emits the archive to w: signature, version fields, the directory
// tree with freshly assigned offsets, then each file's payload back to back
// in the order the offsets were assigned.
//
// The header is encoded and every payload source is checked before anything
// is written, so a bad name, an oversized tree or a missing source produces
// no output. A failure while copying payload leaves w partially written.
func (a *Archive) Write(ctx context.Context, w io.Writer) (*WriteResult, error) {
	p, err := a.plan()
	if err != nil {
		return nil, err
	}
	defer p.sources.Close()

	return a.emit(ctx, p, w)
}

// WriteFile writes the archive to a new file at path. The file is not created
// if the archive cannot be planned.
func (a *Archive) WriteFile(ctx context.Context, path string) (*WriteResult, error) {
	if err := a.checkNotSource(path); err != nil {
		return nil, err
	}
	p, err := a.plan()
	if err != nil {
		return nil, err
	}
	defer p.sources.Close()

	out, err := os.Create(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, ioError("create", path, err)
	}
	res, err := a.emit(ctx, p, out)
	if err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, ioError("close", path, err)
	}
	return res, nil
}

// checkNotSource refuses to overwrite the archive the payload is read from.
func (a *Archive) checkNotSource(path string) error {
	if a.binding != BoundArchive {
		return nil
	}
	dst, err := os.Stat(path)
	if err != nil {
		return nil //nolint:nilerr // a missing destination cannot be the source
	}
	src, err := os.Stat(a.path)
	if err != nil {
		return ioError("stat", a.path, err)
	}
	if os.SameFile(src, dst) {
		return fmt.Errorf("%w: %s is the archive being read", ErrState, path)
	}
	return nil
}

// HeaderSize returns the offset at which the payload region of the written
// archive will begin.
func (a *Archive) HeaderSize() (uint32, error) {
	size := FixedHeaderSize + a.root.SerializedSize()
	if int64(size) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: header is %d bytes", ErrSizeOverflow, size)
	}
	return uint32(size), nil //nolint:gosec // bounded above
}

func (a *Archive) plan() (_ *plan, err error) {
	headerSize, err := a.HeaderSize()
	if err != nil {
		return nil, err
	}

	// Write assigns offsets as it encodes; a plan that fails leaves the
	// tree as it was.
	restore := saveOffsets(a.root)
	defer func() {
		if err != nil {
			restore()
		}
	}()

	var buf bytes.Buffer
	buf.Grow(int(headerSize))
	if err := wire.WriteString(&buf, Signature); err != nil {
		return nil, err
	}
	if err := wire.WriteUint32Pair(&buf, VersionMajor, VersionMinor); err != nil {
		return nil, err
	}

	c := NewCursor(headerSize)
	if err := a.root.Write(&buf, c, "/"); err != nil {
		return nil, err
	}
	if buf.Len() != int(headerSize) {
		return nil, fmt.Errorf("m4b: encoded header is %d bytes, planned %d", buf.Len(), headerSize)
	}

	sources := newSourceSet()
	for _, pc := range c.Pending() {
		if err := sources.check(pc.Path, pc.Source, pc.File.Length); err != nil {
			sources.Close()
			return nil, err
		}
	}

	a.log().Debug("archive planned", "header_size", headerSize, "files", len(c.Pending()), "end", c.Next())
	return &plan{header: buf.Bytes(), pending: c.Pending(), sources: sources}, nil
}

// saveOffsets returns a function that puts every file's Offset back to its
// current value.
func saveOffsets(root *Directory) func() {
	type saved struct {
		f      *File
		offset uint32
	}
	var offsets []saved
	_ = root.Walk(func(_ string, f *File) error {
		offsets = append(offsets, saved{f, f.Offset})
		return nil
	})
	return func() {
		for _, s := range offsets {
			s.f.Offset = s.offset
		}
	}
}

func (a *Archive) emit(ctx context.Context, p *plan, w io.Writer) (*WriteResult, error) {
	digester := digest.Canonical.Digester()
	out := io.MultiWriter(w, digester.Hash())

	a.log().Info("writing archive", "header_size", len(p.header), "files", len(p.pending))
	if _, err := out.Write(p.header); err != nil {
		return nil, ioError("write", "header", err)
	}
	written := int64(len(p.header))

	buf := file.NewBuffer()
	for _, pc := range p.pending {
		n, err := a.copyPayload(ctx, out, p.sources, pc, buf)
		written += n
		if err != nil {
			return nil, err
		}
		if written != int64(pc.End) {
			return nil, fmt.Errorf("m4b: %s ends at %d, assigned %d", pc.Path, written, pc.End)
		}
	}

	res := &WriteResult{
		HeaderSize: uint32(len(p.header)), //nolint:gosec // checked by plan
		Size:       written,
		Files:      len(p.pending),
		Digest:     digester.Digest(),
	}
	a.log().Info("archive written", "size", res.Size, "digest", res.Digest.String())
	return res, nil
}

func (a *Archive) copyPayload(ctx context.Context, w io.Writer, sources *sourceSet, pc Pending, buf []byte) (int64, error) {
	r, release, err := sources.open(pc.Source, pc.File.Length)
	if err != nil {
		return 0, err
	}
	defer release() //nolint:errcheck // read-only handle

	n, err := file.CopyN(ctx, w, r, int64(pc.File.Length), buf)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return n, err
		}
		return n, ioError("copy", pc.Path, err)
	}
	a.log().Debug("copied payload", "path", pc.Path, "offset", pc.File.Offset, "length", pc.File.Length)
	return n, nil
}
