// Package layout prepares the on disk layout of a chatbot project.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dirs are created by Setup, relative to the project root.
var Dirs = []string{
	"data",
	filepath.Join("data", "json"),
	filepath.Join("data", "embeddings"),
	"logs",
	"config",
}

type Entry struct {
	Path    string
	Created bool
	Err     error
}

// Setup creates the missing Dirs under root. A failing directory does not
// stop the others, all errors are joined.
func Setup(root string) ([]Entry, error) {
	entries := make([]Entry, 0, len(Dirs))
	var errs []error
	for _, dir := range Dirs {
		path := filepath.Join(root, dir)
		e := Entry{Path: path}
		e.Created, e.Err = mkdir(path)
		if e.Err != nil {
			errs = append(errs, e.Err)
		}
		entries = append(entries, e)
	}
	return entries, errors.Join(errs...)
}

func mkdir(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		return false, fmt.Errorf("creating directory %s: not a directory", path)
	case !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("creating directory %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, fmt.Errorf("creating directory %s: %w", path, err)
	}
	return true, nil
}
