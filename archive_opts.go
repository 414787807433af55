package m4b

import "log/slog"

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	only string
}

// ExtractOnly restricts extraction to the file at path within the archive.
// Single-file extraction is not supported: Extract returns ErrNotImplemented
// when this option names a file.
func ExtractOnly(path string) ExtractOption {
	return func(c *extractConfig) {
		c.only = path
	}
}
