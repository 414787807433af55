package m4b

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/m4b/internal/testutil"
)

func TestFile_SerializedSize(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"", 13},
		{"a", 14},
		{"a.txt", 18},
		{"w4_z06_n200_p_yee_s25_p01.bik", 4 + 29 + 1 + 8},
	}
	for _, tt := range tests {
		f := &File{Name: tt.name, Length: 1 << 30, Offset: 99}
		assert.Equal(t, tt.want, f.SerializedSize(), tt.name)
	}
}

func TestFile_HeaderRoundTrip(t *testing.T) {
	f := &File{Name: "movie.bik", Length: 140, Offset: 7, Source: PathSource{Path: "/src/movie.bik"}}

	var buf bytes.Buffer
	require.NoError(t, f.WriteHeader(&buf, 0x01020304))
	assert.Equal(t, f.SerializedSize(), buf.Len())

	want := []byte{10, 0, 0, 0}
	want = append(want, "movie.bik\x00"...)
	want = append(want, 140, 0, 0, 0, 4, 3, 2, 1)
	assert.Equal(t, want, buf.Bytes())

	got, err := ReadFileRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, "movie.bik", got.Name)
	assert.Equal(t, uint32(140), got.Length)
	assert.Equal(t, uint32(0x01020304), got.Offset)
	assert.Equal(t, ArchiveSource{Offset: 0x01020304}, got.Source)
}

func TestFile_WriteHeaderRejectsBadName(t *testing.T) {
	var buf bytes.Buffer
	err := (&File{Name: "bad\x00name"}).WriteHeader(&buf, 0)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestReadFileRecord_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&File{Name: "x", Length: 1}).WriteHeader(&buf, 2))
	data := buf.Bytes()

	for _, n := range []int{0, 3, 6, 8, len(data) - 1} {
		_, err := ReadFileRecord(bytes.NewReader(data[:n]))
		require.ErrorIs(t, err, ErrFormat, "truncated at %d", n)
	}
}

func TestFile_Extract(t *testing.T) {
	content := testutil.Pattern(10000)
	prefix := []byte("header bytes")
	archive := bytes.NewReader(append(append([]byte{}, prefix...), content...))

	f := &File{Name: "big.bin", Length: uint32(len(content)), Offset: uint32(len(prefix))}
	dir := t.TempDir()
	require.NoError(t, f.Extract(context.Background(), dir, archive))

	got, err := os.ReadFile(filepath.Join(dir, "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFile_ExtractEmpty(t *testing.T) {
	f := &File{Name: "empty", Length: 0, Offset: 3}
	dir := t.TempDir()
	require.NoError(t, f.Extract(context.Background(), dir, bytes.NewReader([]byte("abc"))))

	info, err := os.Stat(filepath.Join(dir, "empty"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFile_ExtractPastEOF(t *testing.T) {
	f := &File{Name: "short", Length: 100, Offset: 10}
	err := f.Extract(context.Background(), t.TempDir(), bytes.NewReader(make([]byte, 50)))
	require.ErrorIs(t, err, ErrIO)
}

func TestFile_ExtractUnsafeName(t *testing.T) {
	names := []string{"", ".", "..", "../escape", "a/b"}
	if runtime.GOOS == "windows" {
		names = append(names, `a\b`, `..\escape`)
	}
	for _, name := range names {
		f := &File{Name: name, Length: 1}
		err := f.Extract(context.Background(), t.TempDir(), bytes.NewReader([]byte("x")))
		require.ErrorIs(t, err, ErrUnsafeName, "name %q", name)
	}
}

func TestFile_ExtractUncreatableDestination(t *testing.T) {
	f := &File{Name: "x", Length: 1}
	err := f.Extract(context.Background(), filepath.Join(t.TempDir(), "missing"), bytes.NewReader([]byte("x")))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_ExtractUsesArchiveOffset(t *testing.T) {
	f := &File{Name: "moved", Length: 3, Offset: 0, Source: ArchiveSource{Offset: 4}}
	dir := t.TempDir()
	require.NoError(t, f.Extract(context.Background(), dir, bytes.NewReader([]byte("....abc"))))

	got, err := os.ReadFile(filepath.Join(dir, "moved"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	f.Source = PathSource{Path: "/elsewhere"}
	err = f.Extract(context.Background(), dir, bytes.NewReader([]byte("....abc")))
	require.ErrorIs(t, err, ErrState)
}

func TestFile_ExtractBackslashName(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backslash is a path separator on windows")
	}
	f := &File{Name: `a\b.txt`, Length: 3, Source: ArchiveSource{Offset: 1}}
	dir := t.TempDir()
	require.NoError(t, f.Extract(context.Background(), dir, bytes.NewReader([]byte(".abc"))))

	got, err := os.ReadFile(filepath.Join(dir, `a\b.txt`))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
