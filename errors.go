package m4b

import (
	"errors"
	"fmt"

	"github.com/meigma/m4b/internal/wire"
)

// Errors re-exported from the wire codec.
var (
	// ErrFormat is returned when an archive's signature or header cannot be
	// decoded.
	ErrFormat = wire.ErrFormat

	// ErrEncoding is returned when a name cannot be written to a header
	// (non-ASCII, embedded null, or too many subdirectories).
	ErrEncoding = wire.ErrEncoding
)

var (
	// ErrIO is returned when reading a source or archive, or writing a
	// destination, fails. The underlying error is wrapped alongside it.
	ErrIO = errors.New("m4b: i/o failure")

	// ErrState is returned when an operation needs a binding the archive does
	// not have, such as extracting an archive that was built rather than opened.
	ErrState = errors.New("m4b: archive not bound for this operation")

	// ErrNotImplemented is returned when a single file is requested from Extract.
	ErrNotImplemented = errors.New("m4b: not implemented")

	// ErrSizeOverflow is returned when a length, offset or header size does not
	// fit the format's 32-bit fields.
	ErrSizeOverflow = errors.New("m4b: size overflow")

	// ErrUnsafeName is returned when a stored name would place an extracted
	// file outside the destination directory.
	ErrUnsafeName = errors.New("m4b: unsafe name")

	// ErrSourceChanged is returned when a source file no longer has the length
	// recorded for it by Build.
	ErrSourceChanged = errors.New("m4b: source file changed")
)

// ioError tags err as an ErrIO while keeping it reachable through errors.Is.
func ioError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
