// Package patch rewrites archives with selected files replaced by a fixed
// placeholder payload.
//
// For each archive named in a Manifest the patcher extracts
// <source_dir>/<name>.m4b into <work_dir>/<name>, overwrites every listed
// file below it, rebuilds the tree and writes <dest_dir>/<name>.m4b.
package patch

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultManifest []byte

// ErrManifest is returned when a manifest is malformed.
var ErrManifest = errors.New("patch: invalid manifest")

// Manifest lists the archives to patch and the files to blank in them.
type Manifest struct {
	// SourceDir holds the original <name>.m4b archives.
	SourceDir string `yaml:"source_dir"`

	// DestDir receives the rebuilt archives. It is created if missing.
	DestDir string `yaml:"dest_dir"`

	// WorkDir receives the extracted trees, one directory per archive.
	WorkDir string `yaml:"work_dir"`

	// Archives are archive base names without the .m4b extension.
	Archives []string `yaml:"archives"`

	// Blank lists slash-separated paths of files to replace. The first
	// element names the archive; the rest is the path inside it.
	Blank []string `yaml:"blank"`
}

// Default returns the built-in manifest.
func Default() (*Manifest, error) {
	return Parse(defaultManifest)
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	if m.WorkDir == "" {
		m.WorkDir = "."
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every blanked path belongs to a listed archive and
// stays inside it.
func (m *Manifest) Validate() error {
	if m.SourceDir == "" || m.DestDir == "" {
		return fmt.Errorf("%w: source_dir and dest_dir are required", ErrManifest)
	}
	if len(m.Archives) == 0 {
		return fmt.Errorf("%w: no archives listed", ErrManifest)
	}

	known := make(map[string]bool, len(m.Archives))
	for _, name := range m.Archives {
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%w: bad archive name %q", ErrManifest, name)
		}
		if known[name] {
			return fmt.Errorf("%w: archive %q listed twice", ErrManifest, name)
		}
		known[name] = true
	}

	for _, p := range m.Blank {
		archive, _, err := splitBlank(p)
		if err != nil {
			return err
		}
		if !known[archive] {
			return fmt.Errorf("%w: %s: archive %q is not listed", ErrManifest, p, archive)
		}
	}
	return nil
}

// BlankFor returns the in-archive paths to blank for archive, in manifest order.
func (m *Manifest) BlankFor(archive string) []string {
	var out []string
	for _, p := range m.Blank {
		name, rest, err := splitBlank(p)
		if err == nil && name == archive {
			out = append(out, rest)
		}
	}
	return out
}

func splitBlank(p string) (archive, rest string, err error) {
	clean := path.Clean(p)
	if clean != p || path.IsAbs(p) || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", "", fmt.Errorf("%w: %q is not a clean relative path", ErrManifest, p)
	}
	archive, rest, ok := strings.Cut(clean, "/")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("%w: %q names no file inside an archive", ErrManifest, p)
	}
	return archive, rest, nil
}
