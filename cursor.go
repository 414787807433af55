package m4b

import (
	"fmt"

	"github.com/meigma/m4b/internal/sizing"
)

// Cursor assigns payload offsets while a header is written.
//
// A single cursor runs across the whole tree and is never reset per
// directory: each file's offset is the end of the file assigned before it,
// and the first file starts at the header size. The resulting layout is a
// pure function of visitation order.
type Cursor struct {
	next    uint32
	pending []Pending
}

// Pending is one payload copy queued by a Cursor.
type Pending struct {
	// Path is the display path of the file within the archive.
	Path   string
	File   *File
	Source Source
	// End is the cursor value after this file.
	End uint32
}

// NewCursor returns a cursor whose first assigned offset is headerSize.
func NewCursor(headerSize uint32) *Cursor {
	return &Cursor{next: headerSize}
}

// Next returns the offset the next file will receive.
func (c *Cursor) Next() uint32 {
	return c.next
}

// Pending returns the queued copies in assignment order.
func (c *Cursor) Pending() []Pending {
	return c.pending
}

// assign sets f.Offset to the cursor position and advances past f's payload.
func (c *Cursor) assign(path string, f *File) (uint32, error) {
	end, ok := sizing.AddUint32(c.next, f.Length)
	if !ok {
		return 0, fmt.Errorf("%w: %s ends past 4 GiB", ErrSizeOverflow, path)
	}
	offset := c.next
	c.pending = append(c.pending, Pending{Path: path, File: f, Source: f.Source, End: end})
	f.Offset = offset
	c.next = end
	return offset, nil
}
