// Package backup implements the backup pipeline: scan, plan, execute.
package backup

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Entry is one regular file found by the scanner.
type Entry struct {
	Abs     string
	Rel     string
	MtimeNS int64
}

// ExcludeRules filters entries out of the scan by name. Excluded
// directories are not descended into.
type ExcludeRules struct {
	DirNames   []string
	FileNames  []string
	NoDefaults bool
}

// defaultExcludedDirNames are skipped unless NoDefaults is set: tool and
// editor state directories that never belong in a backup. Matches are on
// the directory name only, anywhere in the tree.
var defaultExcludedDirNames = []string{
	".venv",
	".git",
	"__pycache__",
	".ruff_cache",
	".mypy_cache",
	".pytest_cache",
	".idea",
	".vscode",
	".vs",
}

func (r ExcludeRules) excludesDir(name string) bool {
	if !r.NoDefaults {
		for _, d := range defaultExcludedDirNames {
			if name == d {
				return true
			}
		}
	}
	for _, d := range r.DirNames {
		if name == d {
			return true
		}
	}
	return false
}

func (r ExcludeRules) excludesFile(name string) bool {
	for _, f := range r.FileNames {
		if name == f {
			return true
		}
	}
	return false
}

// Scan walks sourceRoot depth-first with directories sorted and returns
// the regular files, ordered lexicographically by forward-slash rel path.
// Hidden files are included. Symlinks and other non-regular entries abort
// the scan with unsupported_entry before any copy happens.
func Scan(sourceRoot string, rules ExcludeRules) ([]Entry, error) {
	root, err := pathsafety.Normalize(sourceRoot)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: scan %s: %v", wcbterrors.ErrUnreadable, path, err)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink %s", wcbterrors.ErrUnsupportedEntry, path)
		}
		if d.IsDir() {
			if path != root && rules.excludesDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", wcbterrors.ErrUnsupportedEntry, path)
		}
		if rules.excludesFile(d.Name()) {
			return nil
		}
		rel, err := pathsafety.SafeRelPath(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("%w: stat %s: %v", wcbterrors.ErrUnreadable, path, err)
		}
		entries = append(entries, Entry{Abs: path, Rel: rel, MtimeNS: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}
