package patch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/m4b"
	"github.com/meigma/m4b/internal/testutil"
)

// writeSourceArchive builds tree into <dir>/<name>.m4b.
func writeSourceArchive(t *testing.T, dir, name string, tree map[string][]byte) {
	t.Helper()
	src := t.TempDir()
	testutil.WriteTree(t, src, tree)
	a := m4b.New()
	require.NoError(t, a.Build(context.Background(), src))
	_, err := a.WriteFile(context.Background(), filepath.Join(dir, name+".m4b"))
	require.NoError(t, err)
}

// readArchive extracts the archive at path and returns its tree.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	a, err := m4b.Open(path)
	require.NoError(t, err)
	dest := t.TempDir()
	require.NoError(t, a.Extract(context.Background(), dest))
	return testutil.ReadTree(t, dest)
}

func newManifest(t *testing.T, archives []string, blank []string) *Manifest {
	t.Helper()
	base := t.TempDir()
	m := &Manifest{
		SourceDir: filepath.Join(base, "orig"),
		DestDir:   filepath.Join(base, "mod"),
		WorkDir:   filepath.Join(base, "work"),
		Archives:  archives,
		Blank:     blank,
	}
	require.NoError(t, os.MkdirAll(m.SourceDir, 0o750))
	return m
}

func TestPatcher_Run(t *testing.T) {
	m := newManifest(t, []string{"video_2", "video_3"}, []string{
		"video_2/shared/video/cut.bik",
		"video_3/w1/z07/a.bik",
		"video_3/w1/z07/b.bik",
	})
	writeSourceArchive(t, m.SourceDir, "video_2", map[string][]byte{
		"shared/video/cut.bik":  testutil.Pattern(9000),
		"shared/video/keep.bik": []byte("keep me"),
	})
	writeSourceArchive(t, m.SourceDir, "video_3", map[string][]byte{
		"w1/z07/a.bik": testutil.Pattern(5000),
		"w1/z07/b.bik": testutil.Pattern(6000),
		"w1/readme":    []byte("untouched"),
	})

	payload := []byte("PLACEHOLDER")
	p, err := New(m, WithPayload(payload), WithJobs(2))
	require.NoError(t, err)

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "video_2", results[0].Name)
	assert.Equal(t, 1, results[0].Replaced)
	assert.Equal(t, "video_3", results[1].Name)
	assert.Equal(t, 2, results[1].Replaced)

	for _, res := range results {
		info, err := os.Stat(res.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), res.Size)
		assert.NoError(t, res.Digest.Validate())
	}

	assert.Equal(t, map[string][]byte{
		"shared/":               nil,
		"shared/video/":         nil,
		"shared/video/cut.bik":  payload,
		"shared/video/keep.bik": []byte("keep me"),
	}, readArchive(t, filepath.Join(m.DestDir, "video_2.m4b")))

	assert.Equal(t, map[string][]byte{
		"w1/":          nil,
		"w1/z07/":      nil,
		"w1/z07/a.bik": payload,
		"w1/z07/b.bik": payload,
		"w1/readme":    []byte("untouched"),
	}, readArchive(t, filepath.Join(m.DestDir, "video_3.m4b")))
}

func TestPatcher_DefaultPayload(t *testing.T) {
	m := newManifest(t, []string{"v"}, []string{"v/x.bik"})
	writeSourceArchive(t, m.SourceDir, "v", map[string][]byte{"x.bik": testutil.Pattern(100)})

	p, err := New(m)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	want, err := Placeholder()
	require.NoError(t, err)
	got := readArchive(t, filepath.Join(m.DestDir, "v.m4b"))
	assert.Equal(t, want, got["x.bik"])
}

func TestPatcher_MissingTarget(t *testing.T) {
	m := newManifest(t, []string{"v"}, []string{"v/absent.bik"})
	writeSourceArchive(t, m.SourceDir, "v", map[string][]byte{"x.bik": []byte("x")})

	p, err := New(m, WithPayload([]byte("p")))
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrMissingTarget)
	assert.NoFileExists(t, filepath.Join(m.DestDir, "v.m4b"))
}

func TestPatcher_MissingArchive(t *testing.T) {
	m := newManifest(t, []string{"gone"}, nil)

	p, err := New(m, WithPayload([]byte("p")))
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, m4b.ErrIO)
}

func TestNew_InvalidManifest(t *testing.T) {
	_, err := New(&Manifest{SourceDir: "s", DestDir: "d"})
	require.ErrorIs(t, err, ErrManifest)
}
