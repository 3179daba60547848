package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/artifact"
	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/profilelock"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Options configures one restore pipeline invocation.
type Options struct {
	ManifestPath string // path to a run's manifest.json
	Destination  string
	DryRun       bool
	VerifyMode   string // none | size
}

// Result summarizes a restore.
type Result struct {
	RunID             string
	Destination       string
	PreservedPrior    string
	ManifestRunStatus string
	DryRun            bool
	Staged            int
	Verified          int
}

// Run executes the restore pipeline: plan from the manifest, materialize
// candidates, build the stage, verify it, and atomically promote it to
// the destination. A dry run stops before promotion. The stage is
// retained on any failure for inspection.
func Run(ctx context.Context, opts Options, clk clock.Clock) (*Result, error) {
	if filepath.Base(opts.ManifestPath) != manifest.ManifestFilename {
		return nil, fmt.Errorf("%w: --manifest must point at a run's %s",
			wcbterrors.ErrManifestInvalid, manifest.ManifestFilename)
	}
	runDir, err := pathsafety.Normalize(filepath.Dir(opts.ManifestPath))
	if err != nil {
		return nil, err
	}
	dest, err := pathsafety.Normalize(opts.Destination)
	if err != nil {
		return nil, err
	}
	mode := opts.VerifyMode
	if mode == "" {
		mode = VerifyModeNone
	}

	plan, err := BuildPlan(runDir)
	if err != nil {
		return nil, err
	}
	h, err := hasher.New(plan.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	if err := CheckSameDevice(dest); err != nil {
		return nil, err
	}

	lock, err := profilelock.Acquire(dest, "restore", clk)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	candidates, err := Materialize(plan, runDir, dest)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:             plan.RunID,
		Destination:       dest,
		ManifestRunStatus: plan.ManifestRunStatus,
		DryRun:            opts.DryRun,
	}
	logging.Info("restore started",
		logging.String("run_id", plan.RunID),
		logging.String("destination", dest),
		logging.Bool("dry_run", opts.DryRun))

	paths := StagePaths(dest, plan.RunID)
	if err := writePlanArtifact(paths, plan, candidates); err != nil {
		return res, err
	}
	copySummary, err := BuildStage(ctx, paths, candidates, plan.RunID, h, opts.DryRun)
	if copySummary != nil {
		res.Staged = copySummary.Copied + copySummary.Skipped
	}
	if err != nil {
		return res, err
	}

	if opts.DryRun {
		// Nothing was committed into the stage, so there is nothing to
		// verify and nothing to promote.
		logging.Info("restore dry run complete", logging.String("run_id", plan.RunID))
		return res, nil
	}

	verifySummary, err := VerifyStage(paths, candidates, plan.RunID, mode)
	if verifySummary != nil {
		res.Verified = verifySummary.Verified
	}
	if err != nil {
		return res, err
	}

	preserved, err := Promote(paths, plan.RunID)
	if err != nil {
		return res, err
	}
	res.PreservedPrior = preserved

	if err := PublishArtifacts(paths, plan.RunID); err != nil {
		return res, err
	}
	logging.Info("restore complete",
		logging.String("run_id", plan.RunID),
		logging.String("destination", dest),
		logging.String("manifest_status", plan.ManifestRunStatus))
	return res, nil
}

// restorePlanDocument is restore_plan.json: the plan plus its
// materialized candidates, written before staging begins so an aborted
// restore is inspectable.
type restorePlanDocument struct {
	Schema            string      `json:"schema"`
	RunID             string      `json:"run_id"`
	ManifestRunStatus string      `json:"manifest_run_status"`
	HashAlgorithm     string      `json:"hash_algorithm"`
	Candidates        []Candidate `json:"candidates"`
}

func writePlanArtifact(paths Paths, plan *Plan, candidates []Candidate) error {
	if err := os.MkdirAll(paths.ArtifactsDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, paths.ArtifactsDir, err)
	}
	doc := restorePlanDocument{
		Schema:            manifest.SchemaRestorePlan,
		RunID:             plan.RunID,
		ManifestRunStatus: plan.ManifestRunStatus,
		HashAlgorithm:     plan.HashAlgorithm,
		Candidates:        candidates,
	}
	return artifact.WriteJSON(filepath.Join(paths.ArtifactsDir, RestorePlanFilename), doc)
}
