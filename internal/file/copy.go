// Package file moves payload bytes between archives and the filesystem in
// bounded chunks.
package file

import (
	"context"
	"io"
)

// ChunkSize is the largest single read issued while copying payload bytes.
const ChunkSize = 4096

// NewBuffer returns a copy buffer of ChunkSize bytes.
func NewBuffer() []byte {
	return make([]byte, ChunkSize)
}

// CopyN copies exactly n bytes from src to dst using buf, never reading more
// than len(buf) bytes at a time. Context cancellation is checked between
// chunks. If src ends before n bytes, CopyN returns io.ErrUnexpectedEOF along
// with the number of bytes written so far.
//
//nolint:gocognit // Follows stdlib io.Copy pattern; complexity is inherent to correct I/O handling
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = NewBuffer()
	}
	var written int64
	for written < n {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := buf
		if remain := n - written; remain < int64(len(chunk)) {
			chunk = chunk[:remain]
		}
		nr, er := src.Read(chunk)
		if nr > 0 {
			nw, ew := dst.Write(chunk[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				if written < n {
					return written, io.ErrUnexpectedEOF
				}
				return written, nil
			}
			return written, er
		}
	}
	return written, nil
}
