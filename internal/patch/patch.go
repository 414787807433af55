package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/m4b"
)

// DefaultJobs is the number of archives patched concurrently when no
// WithJobs option is set.
const DefaultJobs = 1

// ErrMissingTarget is returned when a file to blank is not in the extracted tree.
var ErrMissingTarget = errors.New("patch: file to blank not found")

// Result describes one rebuilt archive.
type Result struct {
	Name     string
	Path     string
	Replaced int
	Size     int64
	Digest   digest.Digest
}

// Patcher applies a Manifest.
type Patcher struct {
	manifest *Manifest
	payload  []byte
	jobs     int
	logger   *slog.Logger
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithPayload replaces the placeholder written over blanked files.
func WithPayload(data []byte) Option {
	return func(p *Patcher) {
		p.payload = data
	}
}

// WithJobs sets how many archives are processed at once.
// Values < 1 are treated as 1.
func WithJobs(n int) Option {
	return func(p *Patcher) {
		p.jobs = max(n, 1)
	}
}

// WithLogger sets the logger for progress messages.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		p.logger = logger
	}
}

// New returns a Patcher for m. Unless WithPayload is given the built-in
// placeholder is used.
func New(m *Manifest, opts ...Option) (*Patcher, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p := &Patcher{manifest: m, jobs: DefaultJobs}
	for _, opt := range opts {
		opt(p)
	}
	if p.payload == nil {
		data, err := Placeholder()
		if err != nil {
			return nil, err
		}
		p.payload = data
	}
	return p, nil
}

// Run patches every archive in the manifest. Archives are independent, so up
// to the configured number run concurrently; the first failure cancels the
// rest. Results are returned in manifest order.
func (p *Patcher) Run(ctx context.Context) ([]Result, error) {
	if err := os.MkdirAll(p.manifest.DestDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	results := make([]Result, len(p.manifest.Archives))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.jobs)
	for i, name := range p.manifest.Archives {
		eg.Go(func() error {
			res, err := p.patchOne(ctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Patcher) patchOne(ctx context.Context, name string) (Result, error) {
	logger := p.log().With("archive", name)
	src := filepath.Join(p.manifest.SourceDir, name+".m4b")
	tree := filepath.Join(p.manifest.WorkDir, name)
	dst := filepath.Join(p.manifest.DestDir, name+".m4b")

	logger.Info("extracting", "from", src, "to", tree)
	a, err := m4b.Open(src, m4b.WithLogger(logger))
	if err != nil {
		return Result{}, err
	}
	if err := a.Extract(ctx, tree); err != nil {
		return Result{}, err
	}

	blank := p.manifest.BlankFor(name)
	for _, rel := range blank {
		if err := p.replace(filepath.Join(tree, filepath.FromSlash(rel))); err != nil {
			return Result{}, err
		}
		logger.Info("replaced", "file", rel)
	}

	logger.Info("rebuilding", "from", tree, "to", dst)
	rebuilt := m4b.New(m4b.WithLogger(logger))
	if err := rebuilt.Build(ctx, tree); err != nil {
		return Result{}, err
	}
	res, err := rebuilt.WriteFile(ctx, dst)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Name:     name,
		Path:     dst,
		Replaced: len(blank),
		Size:     res.Size,
		Digest:   res.Digest,
	}, nil
}

// replace overwrites an existing file with the payload.
func (p *Patcher) replace(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissingTarget, path)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrMissingTarget, path)
	}
	return os.WriteFile(path, p.payload, info.Mode().Perm())
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Patcher) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}
