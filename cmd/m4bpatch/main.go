// m4bpatch rebuilds m4b archives with selected files replaced by a
// placeholder video. Without --manifest it applies the built-in manifest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/meigma/m4b/internal/patch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var manifestPath, payloadPath string
	var jobs int
	var verbose bool

	flagSet := pflag.NewFlagSet("m4bpatch", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&manifestPath, "manifest", "", "YAML manifest of archives and files to blank (default: built-in)")
	flagSet.StringVar(&payloadPath, "payload", "", "file whose contents replace blanked files (default: black 8x8 Bink frame)")
	flagSet.IntVarP(&jobs, "jobs", "j", patch.DefaultJobs, "archives to process concurrently")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	opts := []patch.Option{
		patch.WithJobs(jobs),
		patch.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))),
	}
	if payloadPath != "" {
		data, err := os.ReadFile(payloadPath) //nolint:gosec // User-provided path is intentional
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		opts = append(opts, patch.WithPayload(data))
	}

	p, err := patch.New(m, opts...)
	if err != nil {
		return err
	}
	results, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s\t%d replaced\t%d bytes\t%s\n", r.Path, r.Replaced, r.Size, r.Digest)
	}
	return nil
}

func loadManifest(path string) (*patch.Manifest, error) {
	if path == "" {
		return patch.Default()
	}
	return patch.Load(path)
}
