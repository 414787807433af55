// Package wire implements the primitive encodings of the m4b header: fixed
// width little-endian integers and length-prefixed, null-terminated ASCII
// strings.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Sentinel errors for header encoding.
var (
	// ErrFormat is returned when bytes read from a stream are not a valid encoding.
	ErrFormat = errors.New("m4b: invalid format")

	// ErrEncoding is returned when a value cannot be represented on the wire.
	ErrEncoding = errors.New("m4b: value cannot be encoded")
)

// StringSize returns the number of bytes WriteString emits for s.
func StringSize(s string) int {
	return 4 + len(s) + 1
}

// ReadString reads a uint32 length n (which counts the trailing null), then n
// bytes, and returns the first n-1 of them as text.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return "", fmt.Errorf("%w: string length: %w", ErrFormat, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: zero string length", ErrFormat)
	}

	// Grow as bytes arrive rather than trusting n for the allocation.
	buf, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return "", fmt.Errorf("%w: string body: %w", ErrFormat, err)
	}
	if uint64(len(buf)) != uint64(n) {
		return "", fmt.Errorf("%w: string body: %w", ErrFormat, io.ErrUnexpectedEOF)
	}
	text := buf[:n-1]
	for i, c := range text {
		if c >= 0x80 {
			return "", fmt.Errorf("%w: non-ASCII byte 0x%02x at position %d", ErrFormat, c, i)
		}
	}
	return string(text), nil
}

// WriteString writes len(s)+1, the bytes of s and a single null byte.
// s must be ASCII and must not contain a null byte.
func WriteString(w io.Writer, s string) error {
	if err := ValidateString(s); err != nil {
		return err
	}
	if len(s) >= math.MaxUint32 {
		return fmt.Errorf("%w: string of %d bytes is too long", ErrEncoding, len(s))
	}

	buf := make([]byte, StringSize(s))
	binary.LittleEndian.PutUint32(buf, uint32(len(s)+1)) //nolint:gosec // bounded above
	copy(buf[4:], s)
	_, err := w.Write(buf)
	return err
}

// ValidateString reports whether s can be written by WriteString.
func ValidateString(s string) error {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == 0:
			return fmt.Errorf("%w: %q contains a null byte", ErrEncoding, s)
		case c >= 0x80:
			return fmt.Errorf("%w: %q is not ASCII", ErrEncoding, s)
		}
	}
	return nil
}

// ReadUint8 reads a single byte.
func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated(err)
	}
	return b[0], nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated(err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteUint8 writes a single byte.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint32 writes v as a little-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteUint32Pair writes a and b back to back, as used by file records.
func WriteUint32Pair(w io.Writer, a, b uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], a)
	binary.LittleEndian.PutUint32(buf[4:], b)
	_, err := w.Write(buf[:])
	return err
}

// truncated converts a short read into io.ErrUnexpectedEOF so that callers
// can tell a truncated stream from one that was empty.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
