package restore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// PreservedPriorName returns the sibling name a prior destination is
// preserved under during promotion.
func PreservedPriorName(destName, runID string) string {
	return ".wcbt_restore_previous_" + destName + "_" + runID
}

// RestoreArtifactsDirName is the directory, under a promoted destination,
// that receives the stage artifacts.
const RestoreArtifactsDirName = ".wcbt_restore"

// Promote publishes the stage root as the destination. The destination is
// never modified in place: an existing destination is first renamed to a
// preserved sibling, then the stage root takes its name. Both renames are
// same-filesystem and atomic. If the second rename fails, the preserved
// prior is renamed back and promotion_failed is reported. Returns the
// preserved path, empty when the destination did not exist.
func Promote(paths Paths, runID string) (string, error) {
	dest := filepath.Clean(paths.Destination)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: create parent of %s: %v", wcbterrors.ErrIO, dest, err)
	}

	_, err := os.Lstat(dest)
	if os.IsNotExist(err) {
		if err := os.Rename(paths.StageRoot, dest); err != nil {
			return "", fmt.Errorf("%w: promote stage to %s: %v", wcbterrors.ErrPromotionFailed, dest, err)
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", wcbterrors.ErrIO, dest, err)
	}

	preserved := filepath.Join(filepath.Dir(dest), PreservedPriorName(filepath.Base(dest), runID))
	if _, err := os.Lstat(preserved); err == nil {
		return "", fmt.Errorf("%w: preserved path %s already exists", wcbterrors.ErrPromotionFailed, preserved)
	}
	if err := os.Rename(dest, preserved); err != nil {
		return "", fmt.Errorf("%w: preserve prior %s: %v", wcbterrors.ErrPromotionFailed, dest, err)
	}
	if err := os.Rename(paths.StageRoot, dest); err != nil {
		// Roll the prior destination back under its own name.
		if rbErr := os.Rename(preserved, dest); rbErr != nil {
			logging.Error("rollback of preserved destination failed",
				logging.String("preserved", preserved),
				logging.String("error", rbErr.Error()))
			return preserved, fmt.Errorf("%w: promote and rollback both failed for %s: %v (prior at %s)",
				wcbterrors.ErrPromotionFailed, dest, err, preserved)
		}
		return "", fmt.Errorf("%w: promote stage to %s: %v", wcbterrors.ErrPromotionFailed, dest, err)
	}
	logging.Info("prior destination preserved", logging.String("path", preserved))
	return preserved, nil
}

// PublishArtifacts moves the stage artifacts under the promoted
// destination at .wcbt_restore/<run_id>/ and removes the now-empty stage
// directories. Only WCBT's own work directories are ever removed.
func PublishArtifacts(paths Paths, runID string) error {
	target := filepath.Join(paths.Destination, RestoreArtifactsDirName, runID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, filepath.Dir(target), err)
	}
	if err := os.Rename(paths.ArtifactsDir, target); err != nil {
		return fmt.Errorf("%w: publish restore artifacts to %s: %v", wcbterrors.ErrIO, target, err)
	}
	// The stage base is left only if another run is staged there.
	os.Remove(paths.StageBase)
	return nil
}
