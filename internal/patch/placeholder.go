package patch

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// black8x8 is a Bink video holding a single black 8x8 frame, gzip-compressed.
//
//go:embed black8x8.bik.gz
var black8x8 []byte

// Placeholder returns the default replacement payload.
func Placeholder() ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(black8x8))
	if err != nil {
		return nil, fmt.Errorf("open placeholder: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate placeholder: %w", err)
	}
	return data, nil
}
