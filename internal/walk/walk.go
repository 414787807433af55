// Package walk enumerates source directories for archive creation.
package walk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Kind classifies a directory entry for archiving.
type Kind uint8

const (
	// Skip marks entries that are neither directories nor regular files.
	Skip Kind = iota
	// Dir marks a directory, or a symbolic link to one.
	Dir
	// File marks a regular file, or a symbolic link to one.
	File
)

// Entry is one resolved child of a source directory.
type Entry struct {
	Name string
	Path string
	Kind Kind
	// Size is the byte length of a File entry.
	Size int64
}

// ReadDir lists dir in the order the filesystem returns its entries.
//
// Unlike os.ReadDir the result is not sorted: archive layout follows
// enumeration order, so two hosts may produce different layouts for the
// same tree.
func ReadDir(dir string) ([]Entry, error) {
	f, err := os.Open(dir) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dirents, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		path := filepath.Join(dir, d.Name())
		entry, err := Resolve(path, d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Resolve classifies d, following symbolic links. A dangling link resolves
// to Skip.
func Resolve(path string, d fs.DirEntry) (Entry, error) {
	entry := Entry{Name: d.Name(), Path: path}

	var info fs.FileInfo
	var err error
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return entry, nil
			}
			return entry, err
		}
	} else {
		info, err = d.Info()
		if err != nil {
			return entry, err
		}
	}

	switch {
	case info.IsDir():
		entry.Kind = Dir
	case info.Mode().IsRegular():
		entry.Kind = File
		entry.Size = info.Size()
	}
	return entry, nil
}
