package profilestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// ProfilePaths are the resolved directories for a named profile under the
// WCBT data root.
type ProfilePaths struct {
	DataRoot    string
	ProfileRoot string
	RulesDBPath string
	LogsRoot    string
}

// DefaultDataRoot resolves the WCBT data root under the user's config
// directory.
func DefaultDataRoot() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: no user config dir: %v", wcbterrors.ErrIO, err)
	}
	return filepath.Join(base, "wcbt"), nil
}

// ResolveProfilePaths validates the profile name and returns its paths.
// Profile names are simple folder names; separators, traversal and drive
// hints are rejected.
func ResolveProfilePaths(profileName, dataRoot string) (*ProfilePaths, error) {
	name := strings.TrimSpace(profileName)
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: profile name %q", wcbterrors.ErrUnsafePath, profileName)
	}
	if strings.ContainsAny(name, `\/:*?"<>|`) {
		return nil, fmt.Errorf("%w: profile name contains invalid characters: %q", wcbterrors.ErrUnsafePath, name)
	}
	root := dataRoot
	if root == "" {
		var err error
		root, err = DefaultDataRoot()
		if err != nil {
			return nil, err
		}
	}
	profileRoot := filepath.Join(root, "profiles", name)
	return &ProfilePaths{
		DataRoot:    root,
		ProfileRoot: profileRoot,
		RulesDBPath: filepath.Join(profileRoot, "rules.db"),
		LogsRoot:    filepath.Join(profileRoot, "logs"),
	}, nil
}

// EnsureProfileDirectories creates the profile directory skeleton. It
// only ever creates; nothing is deleted.
func (p *ProfilePaths) EnsureProfileDirectories() error {
	for _, dir := range []string{p.ProfileRoot, p.LogsRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, dir, err)
		}
	}
	return nil
}

// AsText renders the resolved paths for display.
func (p *ProfilePaths) AsText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data_root    %s\n", p.DataRoot)
	fmt.Fprintf(&b, "profile_root %s\n", p.ProfileRoot)
	fmt.Fprintf(&b, "rules_db     %s\n", p.RulesDBPath)
	fmt.Fprintf(&b, "logs_root    %s\n", p.LogsRoot)
	return b.String()
}
