// Package corpus finds the documents to index under a directory tree.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// Filter decides whether a directory entry is a document.
type Filter func(path string, d fs.DirEntry) bool

// ExtensionFilter accepts regular files whose extension matches one of exts,
// ignoring case. Extensions may be given with or without the leading dot.
func ExtensionFilter(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return func(path string, d fs.DirEntry) bool {
		if !d.Type().IsRegular() {
			return false
		}
		_, ok := set[strings.ToLower(filepath.Ext(path))]
		return ok
	}
}

// Failure is a document or directory that could not be read.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Discover walks root and returns the sorted paths accepted by filter.
// Hidden directories are not entered. Entries that cannot be read are
// returned as failures; only an unreadable root is an error.
func Discover(ctx context.Context, root string, filter Filter) ([]string, []Failure, error) {
	var (
		paths    []string
		failures []Failure
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			failures = append(failures, Failure{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if filter == nil || filter(path, d) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, failures, fmt.Errorf("walking %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, failures, nil
}
