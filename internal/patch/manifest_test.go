package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "orig", m.SourceDir)
	assert.Equal(t, "mod", m.DestDir)
	assert.Equal(t, ".", m.WorkDir)
	assert.Equal(t, []string{"video_2", "video_3", "video_6", "video_7"}, m.Archives)
	assert.Len(t, m.Blank, 22)
	assert.Equal(t, []string{"shared/video/w5_z01_n010_p_yee2_s02b_p01.bik"}, m.BlankFor("video_2"))
	assert.Len(t, m.BlankFor("video_7"), 11)
	assert.Empty(t, m.BlankFor("video_9"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "archives: [unclosed"},
		{"missing dirs", "archives: [a]"},
		{"no archives", "source_dir: s\ndest_dir: d\n"},
		{"duplicate archive", "source_dir: s\ndest_dir: d\narchives: [a, a]\n"},
		{"bad archive name", "source_dir: s\ndest_dir: d\narchives: [a/b]\n"},
		{"unknown archive", "source_dir: s\ndest_dir: d\narchives: [a]\nblank: [b/x.bik]\n"},
		{"archive only", "source_dir: s\ndest_dir: d\narchives: [a]\nblank: [a]\n"},
		{"escapes", "source_dir: s\ndest_dir: d\narchives: [a]\nblank: [a/../../x]\n"},
		{"absolute", "source_dir: s\ndest_dir: d\narchives: [a]\nblank: [/a/x]\n"},
		{"unclean", "source_dir: s\ndest_dir: d\narchives: [a]\nblank: [a//x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrManifest)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source_dir: in
dest_dir: out
work_dir: tmp
archives: [one, two]
blank:
  - two/deep/file.bik
  - one/top.bik
  - two/other.bik
`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tmp", m.WorkDir)
	assert.Equal(t, []string{"deep/file.bik", "other.bik"}, m.BlankFor("two"))
	assert.Equal(t, []string{"top.bik"}, m.BlankFor("one"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
