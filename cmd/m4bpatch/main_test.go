package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/m4b"
	"github.com/meigma/m4b/internal/patch"
	"github.com/meigma/m4b/internal/testutil"
)

func TestRun_Manifest(t *testing.T) {
	base := t.TempDir()
	orig := filepath.Join(base, "orig")
	require.NoError(t, os.MkdirAll(orig, 0o750))

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{
		"w1/cut.bik":  testutil.Pattern(2048),
		"w1/keep.bik": []byte("keep"),
	})
	a := m4b.New()
	require.NoError(t, a.Build(context.Background(), src))
	_, err := a.WriteFile(context.Background(), filepath.Join(orig, "video_9.m4b"))
	require.NoError(t, err)

	manifest := filepath.Join(base, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(fmt.Sprintf(`
source_dir: %s
dest_dir: %s
work_dir: %s
archives: [video_9]
blank: [video_9/w1/cut.bik]
`, orig, filepath.Join(base, "mod"), filepath.Join(base, "work"))), 0o600))

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), []string{"--manifest", manifest}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.True(t, strings.HasPrefix(stdout.String(), filepath.Join(base, "mod", "video_9.m4b")+"\t1 replaced\t"))

	out, err := m4b.Open(filepath.Join(base, "mod", "video_9.m4b"))
	require.NoError(t, err)
	dest := t.TempDir()
	require.NoError(t, out.Extract(context.Background(), dest))

	want, err := patch.Placeholder()
	require.NoError(t, err)
	got := testutil.ReadTree(t, dest)
	assert.Equal(t, want, got["w1/cut.bik"])
	assert.Equal(t, []byte("keep"), got["w1/keep.bik"])
}

func TestRun_BadManifest(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("archives: []\n"), 0o600))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--manifest", manifest}, &stdout, &stderr)
	require.ErrorIs(t, err, patch.ErrManifest)
}
