package backup

import (
	"path"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
)

// Op is one intended copy: source file to payload path, with the size and
// hash observed at plan time. Hashing happens here so the plan itself is
// content-addressed; a dry run is meaningful and later verification does
// not re-read the source.
type Op struct {
	RelPath      string `json:"rel_path"`
	SourceAbs    string `json:"source_abs"`
	DestAbs      string `json:"dest_abs"`
	SizeBytes    int64  `json:"size_bytes"`
	ExpectedHash string `json:"expected_hash"`
	MtimeNS      int64  `json:"mtime_ns"`
}

// Plan is an ordered sequence of ops. Order equals manifest order:
// lexicographic by rel_path.
type Plan struct {
	Schema          string `json:"schema"`
	RunID           string `json:"run_id"`
	SourceRoot      string `json:"source_root"`
	DestinationRoot string `json:"destination_root"`
	HashAlgorithm   string `json:"hash_algorithm"`
	Ops             []Op   `json:"ops"`
}

// RunDir returns the run directory the plan materializes into.
func (p *Plan) RunDir() string {
	return filepath.Join(p.DestinationRoot, p.RunID)
}

// BuildPlan hashes every scanned entry and produces the deterministic
// plan for a run. The size recorded per op is the byte count observed
// while hashing, so size and hash always describe the same content.
func BuildPlan(entries []Entry, sourceRoot, destRoot, runID string, h *hasher.Hasher) (*Plan, error) {
	srcAbs, err := pathsafety.Normalize(sourceRoot)
	if err != nil {
		return nil, err
	}
	destAbs, err := pathsafety.Normalize(destRoot)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Schema:          manifest.SchemaBackupPlan,
		RunID:           runID,
		SourceRoot:      srcAbs,
		DestinationRoot: destAbs,
		HashAlgorithm:   h.Algorithm(),
		Ops:             []Op{},
	}
	runDir := filepath.Join(destAbs, runID)
	for _, e := range entries {
		digest, n, err := h.HashFile(e.Abs)
		if err != nil {
			return nil, err
		}
		dest, err := pathsafety.SafeJoin(runDir, path.Join(manifest.PayloadDirName, e.Rel))
		if err != nil {
			return nil, err
		}
		plan.Ops = append(plan.Ops, Op{
			RelPath:      e.Rel,
			SourceAbs:    e.Abs,
			DestAbs:      dest,
			SizeBytes:    n,
			ExpectedHash: digest,
			MtimeNS:      e.MtimeNS,
		})
	}
	return plan, nil
}
