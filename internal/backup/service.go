package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/profilelock"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Options configures one backup pipeline invocation.
type Options struct {
	Source          string
	DestinationRoot string
	DryRun          bool
	Excludes        ExcludeRules
	HashAlgorithm   string
}

// Run executes the full backup pipeline: validate the source, take the
// profile lock, mint a run id, scan, plan, execute. The returned Result
// is valid whenever a run directory was created, even when err is
// non-nil.
func Run(ctx context.Context, opts Options, clk clock.Clock) (*Result, error) {
	source, err := validateSource(opts.Source)
	if err != nil {
		return nil, err
	}
	algorithm := opts.HashAlgorithm
	if algorithm == "" {
		algorithm = hasher.Default
	}
	h, err := hasher.New(algorithm)
	if err != nil {
		return nil, err
	}
	destRoot, err := pathsafety.Normalize(opts.DestinationRoot)
	if err != nil {
		return nil, err
	}

	lock, err := profilelock.Acquire(destRoot, "backup", clk)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	now := clk.Now()
	runID := clock.RunID(now)

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create destination root %s: %v", wcbterrors.ErrIO, destRoot, err)
	}
	runDir := filepath.Join(destRoot, runID)
	if err := os.Mkdir(runDir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: run id %s already exists under %s", wcbterrors.ErrRunExists, runID, destRoot)
		}
		return nil, fmt.Errorf("%w: create run dir %s: %v", wcbterrors.ErrIO, runDir, err)
	}

	logging.Info("backup run started",
		logging.String("run_id", runID),
		logging.String("source", source),
		logging.Bool("dry_run", opts.DryRun))

	entries, err := Scan(source, opts.Excludes)
	if err != nil {
		return &Result{RunID: runID, RunDir: runDir, DryRun: opts.DryRun}, err
	}
	plan, err := BuildPlan(entries, source, destRoot, runID, h)
	if err != nil {
		return &Result{RunID: runID, RunDir: runDir, DryRun: opts.DryRun}, err
	}

	res, err := Execute(ctx, plan, h, clock.Timestamp(now), opts.DryRun)
	if err != nil {
		return res, err
	}
	logging.Info("backup run finished",
		logging.String("run_id", runID),
		logging.String("status", res.Status),
		logging.Int("copied", res.Copied),
		logging.Int("failed", res.Failed))
	return res, nil
}

// validateSource resolves the backup source and refuses non-directories
// and filesystem roots.
func validateSource(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: empty source", wcbterrors.ErrUnsafePath)
	}
	abs, err := pathsafety.Normalize(source)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: source %s: %v", wcbterrors.ErrUnsafePath, source, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: source is not a directory: %s", wcbterrors.ErrUnsafePath, abs)
	}
	if abs == filepath.Dir(abs) {
		return "", fmt.Errorf("%w: refusing filesystem root as source: %s", wcbterrors.ErrUnsafePath, abs)
	}
	return abs, nil
}
