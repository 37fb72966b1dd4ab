// Package fileutil locates comic archives on disk.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNotArchive is returned when a named file is not a comic archive.
var ErrNotArchive = errors.New("not a comic archive")

var archiveExts = map[string]bool{".cbz": true, ".zip": true}

// IsArchive reports whether path has a supported archive extension.
func IsArchive(path string) bool {
	return archiveExts[strings.ToLower(filepath.Ext(path))]
}

// ScanArchives expands roots into a sorted list of absolute archive paths.
// Directories are walked recursively and hidden entries are skipped. A root
// that names a file must itself be an archive.
func ScanArchives(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !IsArchive(abs) {
				return nil, fmt.Errorf("%s: %w", root, ErrNotArchive)
			}
			add(abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && IsArchive(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	slices.Sort(out)
	return out, nil
}
