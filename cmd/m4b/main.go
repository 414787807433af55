// m4b creates, lists and extracts m4b archives.
//
// One invocation handles one archive: it is either opened (--open) or built
// from a directory (--build), then any of --list, --extract and --write-m4b
// run in that order.
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

	"github.com/meigma/m4b"
)

type options struct {
	open    string
	build   string
	list    bool
	extract string
	write   string
	verbose bool
}

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
	var opts options
	flagSet := pflag.NewFlagSet("m4b", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.open, "open", "", "open an existing archive file")
	flagSet.StringVar(&opts.build, "build", "", "build an archive from a directory tree")
	flagSet.BoolVar(&opts.list, "list", false, "print a listing of the archive contents")
	flagSet.StringVar(&opts.extract, "extract", "", "extract the contents of an opened archive into this directory")
	flagSet.StringVar(&opts.write, "write-m4b", "", "write the archive to this file")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Create, list and extract m4b archive files.\n\nUsage:\n  m4b [flags]\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	logger := newLogger(stderr, opts.verbose)

	var a *m4b.Archive
	if opts.open != "" {
		opened, err := m4b.Open(opts.open, m4b.WithLogger(logger))
		if err != nil {
			return err
		}
		a = opened
	}
	if opts.build != "" {
		a = m4b.New(m4b.WithLogger(logger))
		if err := a.Build(ctx, opts.build); err != nil {
			return err
		}
	}
	if a == nil {
		if opts.list || opts.extract != "" || opts.write != "" {
			return errors.New("no archive: use --open or --build")
		}
		flagSet.Usage()
		return nil
	}

	if opts.list {
		if err := a.ListContents(stdout); err != nil {
			return err
		}
	}
	if opts.extract != "" {
		if err := a.Extract(ctx, opts.extract); err != nil {
			return err
		}
	}
	if opts.write != "" {
		res, err := a.WriteFile(ctx, opts.write)
		if err != nil {
			return err
		}
		logger.Info("wrote archive", "path", opts.write, "files", res.Files, "size", res.Size, "digest", res.Digest.String())
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
