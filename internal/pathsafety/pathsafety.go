// Package pathsafety is the single choke point for path manipulation in
// the engine. Every join of a root with a relative path, and every
// derivation of a relative path from an absolute one, routes through here.
// Raw concatenation elsewhere is forbidden.
package pathsafety

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Normalize resolves p to an absolute, cleaned path with symlinks in the
// existing portion resolved.
func Normalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: normalize %s: %v", wcbterrors.ErrUnsafePath, p, err)
	}
	return resolveExisting(filepath.Clean(abs)), nil
}

// CheckRelPath validates the canonical forward-slash relative form used in
// manifests and plans: relative, no empty/dot/dotdot segments, no
// backslashes, never absolute.
func CheckRelPath(rel string) error {
	if rel == "" {
		return fmt.Errorf("%w: empty rel_path", wcbterrors.ErrUnsafePath)
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: rel_path is absolute: %s", wcbterrors.ErrUnsafePath, rel)
	}
	if strings.Contains(rel, "\\") {
		return fmt.Errorf("%w: rel_path contains backslash: %s", wcbterrors.ErrUnsafePath, rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("%w: rel_path segment %q in %s", wcbterrors.ErrUnsafePath, seg, rel)
		}
	}
	return nil
}

// SafeJoin joins the canonical relative path rel onto base and returns the
// absolute result. It fails if rel is absolute, contains dotdot segments,
// or the join would escape base.
func SafeJoin(base, rel string) (string, error) {
	if err := CheckRelPath(rel); err != nil {
		return "", err
	}
	absBase, err := Normalize(base)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(absBase, filepath.FromSlash(rel))
	back, err := filepath.Rel(absBase, joined)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", wcbterrors.ErrUnsafePath, rel, absBase)
	}
	return joined, nil
}

// SafeRelPath computes the canonical forward-slash relative path of child
// within base after full resolution. It fails if child is not inside base.
func SafeRelPath(base, child string) (string, error) {
	absBase, err := Normalize(base)
	if err != nil {
		return "", err
	}
	absChild, err := Normalize(child)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absChild)
	if err != nil {
		return "", fmt.Errorf("%w: %s not within %s", wcbterrors.ErrUnsafePath, absChild, absBase)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s not within %s", wcbterrors.ErrUnsafePath, absChild, absBase)
	}
	slashed := filepath.ToSlash(rel)
	if err := CheckRelPath(slashed); err != nil {
		return "", err
	}
	return slashed, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of abs
// and reattaches the remainder. Paths that do not exist yet (destinations,
// stage roots) still normalize deterministically.
func resolveExisting(abs string) string {
	remainder := ""
	p := abs
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			if remainder == "" {
				return resolved
			}
			return filepath.Join(resolved, remainder)
		}
		if !os.IsNotExist(err) {
			return abs
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		if remainder == "" {
			remainder = filepath.Base(p)
		} else {
			remainder = filepath.Join(filepath.Base(p), remainder)
		}
		p = parent
	}
}
