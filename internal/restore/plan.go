// Package restore implements the restore pipeline: plan, materialize,
// stage, verify stage, and atomic promotion. The contract is add-only:
// nothing under an existing destination is ever overwritten or deleted;
// a prior destination is preserved under a sibling name.
package restore

import (
	"fmt"
	"strings"

	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Plan is the ordered restore intent derived from a run manifest. Order
// mirrors manifest order.
type Plan struct {
	Schema            string               `json:"schema"`
	RunID             string               `json:"run_id"`
	ManifestRunStatus string               `json:"manifest_run_status"`
	HashAlgorithm     string               `json:"hash_algorithm"`
	Files             []manifest.FileEntry `json:"files"`
}

// BuildPlan reads the manifest of runDir and produces the restore plan.
// Manifests with unknown schema tags are rejected; rel_path sets that
// would collide after case-insensitive merge are rejected with
// case_collision so a case-insensitive destination cannot silently lose
// data. A partial manifest is restorable: the plan covers what is
// present.
func BuildPlan(runDir string) (*Plan, error) {
	m, err := manifest.Read(runDir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(m.Files))
	for _, e := range m.Files {
		folded := strings.ToLower(e.RelPath)
		if prior, ok := seen[folded]; ok {
			return nil, fmt.Errorf("%w: %q and %q merge on a case-insensitive target",
				wcbterrors.ErrCaseCollision, prior, e.RelPath)
		}
		seen[folded] = e.RelPath
	}
	return &Plan{
		Schema:            manifest.SchemaRestorePlan,
		RunID:             m.RunID,
		ManifestRunStatus: m.RunStatus,
		HashAlgorithm:     m.HashAlgorithm,
		Files:             m.Files,
	}, nil
}
