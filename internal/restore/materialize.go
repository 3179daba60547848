package restore

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Candidate is one materialized restore op: a payload file mapped to its
// absolute location under the restore destination.
type Candidate struct {
	Schema       string `json:"schema"`
	SourceAbs    string `json:"source_abs"`
	RelPath      string `json:"rel_path"`
	DestAbs      string `json:"dest_abs"`
	ExpectedHash string `json:"expected_hash"`
	SizeBytes    int64  `json:"size_bytes"`
}

// Paths fixes the on-disk geometry of a staged restore. The stage lives
// beside the destination so both promotion renames stay on one
// filesystem.
type Paths struct {
	Destination  string
	StageBase    string // <dest>.wcbt_stage
	RunStageDir  string // <dest>.wcbt_stage/<run_id>
	StageRoot    string // <dest>.wcbt_stage/<run_id>/stage_root
	ArtifactsDir string // artifacts staged next to stage_root, published under <dest>/.wcbt_restore/<run_id>
}

// StagePaths computes the stage geometry for a destination and run id.
func StagePaths(dest, runID string) Paths {
	base := dest + ".wcbt_stage"
	runStage := filepath.Join(base, runID)
	return Paths{
		Destination:  dest,
		StageBase:    base,
		RunStageDir:  runStage,
		StageRoot:    filepath.Join(runStage, "stage_root"),
		ArtifactsDir: runStage,
	}
}

// Materialize resolves every plan entry into a Candidate, with both
// endpoints routed through path safety. Order mirrors plan order.
func Materialize(plan *Plan, runDir, dest string) ([]Candidate, error) {
	absDest, err := pathsafety.Normalize(dest)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(plan.Files))
	for _, e := range plan.Files {
		src, err := pathsafety.SafeJoin(runDir, path.Join(manifest.PayloadDirName, e.RelPath))
		if err != nil {
			return nil, err
		}
		dst, err := pathsafety.SafeJoin(absDest, e.RelPath)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{
			Schema:       manifest.SchemaRestoreCandidate,
			SourceAbs:    src,
			RelPath:      e.RelPath,
			DestAbs:      dst,
			ExpectedHash: e.HashHex,
			SizeBytes:    e.SizeBytes,
		})
	}
	return candidates, nil
}

// CheckSameDevice rejects destinations whose promotion renames would
// cross a filesystem boundary. The stage base shares the destination's
// parent directory; if the destination itself sits on a different device
// (a mount point), both renames would degrade to copies and lose their
// atomicity.
func CheckSameDevice(dest string) error {
	parent := filepath.Dir(filepath.Clean(dest))
	parentDev, err := deviceOf(parent)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: stat %s: %v", wcbterrors.ErrIO, dest, err)
	}
	destDev, err := deviceOf(dest)
	if err != nil {
		return err
	}
	if destDev != parentDev {
		return fmt.Errorf("%w: %s is a mount point", wcbterrors.ErrCrossDeviceStage, dest)
	}
	return nil
}

func deviceOf(p string) (uint64, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(p, &st); err != nil {
		return 0, fmt.Errorf("%w: stat %s: %v", wcbterrors.ErrIO, p, err)
	}
	return uint64(st.Dev), nil
}
