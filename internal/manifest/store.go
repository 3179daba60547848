package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/PolymathAlchemist/wcbt/internal/artifact"
	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Write serializes m as the run's manifest.json in canonical form. The
// rename of the temp file is the commit point of a backup run.
func Write(runDir string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return artifact.WriteJSON(filepath.Join(runDir, ManifestFilename), m)
}

// Read loads and validates the manifest of a run directory. A run
// directory with no manifest is reported as incomplete_run, which a
// read-side consumer must tolerate without crashing.
func Read(runDir string) (*Manifest, error) {
	path := filepath.Join(runDir, ManifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no manifest in %s", wcbterrors.ErrIncompleteRun, runDir)
		}
		return nil, fmt.Errorf("%w: read %s: %v", wcbterrors.ErrIO, path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", wcbterrors.ErrManifestInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRuns returns the run ids under destRoot sorted ascending. A missing
// destination root lists as empty, not as an error. Entries that are not
// well-formed run ids are ignored.
func ListRuns(destRoot string) ([]string, error) {
	entries, err := os.ReadDir(destRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", wcbterrors.ErrIO, destRoot, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := clock.ParseRunID(e.Name()); ok {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
