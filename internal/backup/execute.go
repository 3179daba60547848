package backup

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
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Journal outcomes.
const (
	OutcomeCopied        = "copied"
	OutcomeSkippedDryRun = "skipped_dry_run"
	OutcomeFailed        = "failed"
)

// JournalRecord is one line of execution_journal.jsonl.
type JournalRecord struct {
	Schema       string `json:"schema"`
	RunID        string `json:"run_id"`
	RelPath      string `json:"rel_path"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
	ObservedHash string `json:"observed_hash,omitempty"`
	ObservedSize *int64 `json:"observed_size,omitempty"`
}

// Result summarizes an executed (or dry-run) backup.
type Result struct {
	RunID   string
	RunDir  string
	Status  string
	DryRun  bool
	Copied  int
	Skipped int
	Failed  int
}

// Execute runs the plan against its run directory: copy each planned file
// to payload/<rel_path>, journal every op in plan order, then commit the
// manifest. Per-op faults are recorded and the pipeline continues;
// journal or manifest write faults are fatal. Dry-run copies and hashes
// but never renames a part file into place, writes plan.json instead of a
// manifest, and journals skipped_dry_run.
//
// The run directory must have been created (exclusively) by the caller.
func Execute(ctx context.Context, plan *Plan, h *hasher.Hasher, createdAt string, dryRun bool) (*Result, error) {
	runDir := plan.RunDir()
	res := &Result{RunID: plan.RunID, RunDir: runDir, DryRun: dryRun}

	journal, err := artifact.NewLineWriter(filepath.Join(runDir, manifest.JournalFilename))
	if err != nil {
		return res, err
	}
	defer journal.Close()

	var files []manifest.FileEntry
	cancelled := false
	for _, op := range plan.Ops {
		if err := ctx.Err(); err != nil {
			if jerr := journal.Append(JournalRecord{
				Schema:  manifest.SchemaJournalRecord,
				RunID:   plan.RunID,
				RelPath: op.RelPath,
				Outcome: OutcomeFailed,
				Error:   wcbterrors.ErrCancelled.Error(),
			}); jerr != nil {
				return res, jerr
			}
			res.Failed++
			cancelled = true
			break
		}

		rec := executeOp(ctx, plan, op, h, dryRun)
		if jerr := journal.Append(rec); jerr != nil {
			return res, jerr
		}
		switch rec.Outcome {
		case OutcomeCopied:
			res.Copied++
			files = append(files, manifest.FileEntry{
				RelPath:   op.RelPath,
				SizeBytes: op.SizeBytes,
				HashHex:   op.ExpectedHash,
				MtimeNS:   op.MtimeNS,
			})
		case OutcomeSkippedDryRun:
			res.Skipped++
		default:
			res.Failed++
			logging.Warn("backup op failed",
				logging.String("rel_path", op.RelPath),
				logging.String("error", rec.Error))
			if rec.Error == wcbterrors.ErrCancelled.Error() {
				cancelled = true
			}
		}
		if cancelled {
			break
		}
	}
	if err := journal.Close(); err != nil {
		return res, err
	}

	if dryRun {
		res.Status = manifest.RunStatusOK
		if res.Failed > 0 {
			res.Status = manifest.RunStatusPartial
		}
		if err := artifact.WriteJSON(filepath.Join(runDir, manifest.PlanFilename), plan); err != nil {
			return res, err
		}
		if cancelled {
			return res, fmt.Errorf("%w: backup dry run", wcbterrors.ErrCancelled)
		}
		return res, nil
	}

	res.Status = manifest.RunStatusOK
	if res.Failed > 0 {
		res.Status = manifest.RunStatusPartial
	}
	if files == nil {
		files = []manifest.FileEntry{}
	}
	m := &manifest.Manifest{
		Schema:          manifest.SchemaRunManifest,
		RunID:           plan.RunID,
		CreatedAt:       createdAt,
		SourceRoot:      plan.SourceRoot,
		DestinationRoot: plan.DestinationRoot,
		HashAlgorithm:   plan.HashAlgorithm,
		RunStatus:       res.Status,
		Files:           files,
	}
	if err := manifest.Write(runDir, m); err != nil {
		// The journal is the authoritative fallback when the manifest
		// cannot be committed.
		return res, err
	}
	if cancelled {
		return res, fmt.Errorf("%w: backup", wcbterrors.ErrCancelled)
	}
	return res, nil
}

// executeOp copies one planned file and reports the journal record for
// it. All failures are folded into the record; only journal I/O is fatal
// to the pipeline.
func executeOp(ctx context.Context, plan *Plan, op Op, h *hasher.Hasher, dryRun bool) JournalRecord {
	rec := JournalRecord{
		Schema:  manifest.SchemaJournalRecord,
		RunID:   plan.RunID,
		RelPath: op.RelPath,
	}

	expected := &fscopy.Expected{HashHex: op.ExpectedHash, SizeBytes: op.SizeBytes}
	obs, err := fscopy.Copy(ctx, op.SourceAbs, op.DestAbs, h, expected, !dryRun)
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = wcbterrors.Kind(err)
		if !errors.Is(err, wcbterrors.ErrCancelled) && obs.HashHex != "" {
			rec.ObservedHash = obs.HashHex
			size := obs.SizeBytes
			rec.ObservedSize = &size
		}
		return rec
	}

	if dryRun {
		rec.Outcome = OutcomeSkippedDryRun
	} else {
		rec.Outcome = OutcomeCopied
	}
	rec.ObservedHash = obs.HashHex
	size := obs.SizeBytes
	rec.ObservedSize = &size
	return rec
}
