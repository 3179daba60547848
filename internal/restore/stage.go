package restore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/artifact"
	"github.com/PolymathAlchemist/wcbt/internal/fscopy"
	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Stage artifact filenames, staged beside stage_root and published under
// <dest>/.wcbt_restore/<run_id>/ after promotion.
const (
	RestorePlanFilename        = "restore_plan.json"
	StageCopyResultsFilename   = "stage_copy_results.jsonl"
	StageCopySummaryFilename   = "stage_copy_summary.json"
	StageVerifyResultsFilename = "stage_verify_results.jsonl"
	StageVerifySummaryFilename = "stage_verify_summary.json"
)

// Stage copy outcomes.
const (
	StageOutcomeCopied        = "copied"
	StageOutcomeSkippedDryRun = "skipped_dry_run"
	StageOutcomeFailed        = "failed"
)

// Summary statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// CopyRecord is one line of stage_copy_results.jsonl.
type CopyRecord struct {
	Schema  string `json:"schema"`
	RunID   string `json:"run_id"`
	RelPath string `json:"rel_path"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// CopySummary is stage_copy_summary.json.
type CopySummary struct {
	Schema  string `json:"schema"`
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Copied  int    `json:"copied"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// BuildStage copies every candidate into the isolated stage root, one
// record per candidate in plan order. The first failure aborts the build
// after that record is flushed; the stage is retained for inspection and
// no promotion is attempted. Dry-run streams and discards, recording
// skipped_dry_run.
func BuildStage(ctx context.Context, paths Paths, candidates []Candidate, runID string, h *hasher.Hasher, dryRun bool) (*CopySummary, error) {
	results, err := artifact.NewLineWriter(filepath.Join(paths.ArtifactsDir, StageCopyResultsFilename))
	if err != nil {
		return nil, err
	}
	defer results.Close()

	summary := &CopySummary{Schema: manifest.SchemaStageCopyRecord, RunID: runID, Status: StatusSuccess}
	var abort error
	for _, cand := range candidates {
		rec := CopyRecord{Schema: manifest.SchemaStageCopyRecord, RunID: runID, RelPath: cand.RelPath}

		if err := ctx.Err(); err != nil {
			rec.Outcome = StageOutcomeFailed
			rec.Error = wcbterrors.ErrCancelled.Error()
			abort = fmt.Errorf("%w: restore stage", wcbterrors.ErrCancelled)
		} else {
			stageDst, err := pathsafety.SafeJoin(paths.StageRoot, cand.RelPath)
			if err == nil {
				_, err = fscopy.Copy(ctx, cand.SourceAbs, stageDst, h, nil, !dryRun)
			}
			switch {
			case err == nil && dryRun:
				rec.Outcome = StageOutcomeSkippedDryRun
				summary.Skipped++
			case err == nil:
				rec.Outcome = StageOutcomeCopied
				summary.Copied++
			default:
				rec.Outcome = StageOutcomeFailed
				rec.Error = wcbterrors.Kind(err)
				if errors.Is(err, wcbterrors.ErrCancelled) {
					abort = fmt.Errorf("%w: restore stage", wcbterrors.ErrCancelled)
				} else {
					abort = err
				}
			}
		}

		if jerr := results.Append(rec); jerr != nil {
			return summary, jerr
		}
		if abort != nil {
			summary.Failed++
			break
		}
	}
	if err := results.Close(); err != nil {
		return summary, err
	}

	if summary.Failed > 0 {
		summary.Status = StatusFailed
	}
	if err := artifact.WriteJSON(filepath.Join(paths.ArtifactsDir, StageCopySummaryFilename), summary); err != nil {
		return summary, err
	}
	if abort != nil {
		logging.Warn("stage build aborted",
			logging.String("run_id", runID),
			logging.String("error", abort.Error()))
		return summary, abort
	}
	return summary, nil
}
