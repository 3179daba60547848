package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/testutil"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

func decodeJournal(t *testing.T, runDir string) []JournalRecord {
	t.Helper()
	var records []JournalRecord
	for _, line := range testutil.Lines(t, filepath.Join(runDir, manifest.JournalFilename)) {
		var rec JournalRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "journal line must be valid JSON")
		records = append(records, rec)
	}
	return records
}

func TestExecuteHappyBackup(t *testing.T) {
	src := testutil.ScenarioSource(t)
	dest := t.TempDir()

	res, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest}, testutil.FixedClock())
	require.NoError(t, err, "backup failed")
	assert.Equal(t, testutil.FixedRunID, res.RunID)
	assert.Equal(t, manifest.RunStatusOK, res.Status)
	assert.Equal(t, 2, res.Copied)
	assert.Zero(t, res.Failed)

	runDir := filepath.Join(dest, testutil.FixedRunID)

	m, err := manifest.Read(runDir)
	require.NoError(t, err, "manifest must be readable")
	require.Len(t, m.Files, 2)
	assert.Equal(t, "a.txt", m.Files[0].RelPath)
	assert.Equal(t, testutil.SHA256Hex([]byte("hello\n")), m.Files[0].HashHex)
	assert.Equal(t, "sub/b.bin", m.Files[1].RelPath)
	assert.Equal(t, "2025-01-01T12:00:00Z", m.CreatedAt)
	assert.Equal(t, "sha256", m.HashAlgorithm)

	records := decodeJournal(t, runDir)
	require.Len(t, records, 2, "one journal line per op")
	assert.Equal(t, "a.txt", records[0].RelPath)
	assert.Equal(t, OutcomeCopied, records[0].Outcome)
	assert.Equal(t, "sub/b.bin", records[1].RelPath)
	assert.Equal(t, OutcomeCopied, records[1].Outcome)

	// Payload mirrors the source with matching content.
	assert.Equal(t, "hello\n", testutil.ReadFileString(t, filepath.Join(runDir, "payload", "a.txt")))
	assert.Equal(t, "\x00\x01\x02", testutil.ReadFileString(t, filepath.Join(runDir, "payload", "sub", "b.bin")))
}

func TestExecuteEmptySource(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	res, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest}, testutil.FixedClock())
	require.NoError(t, err, "empty source must back up cleanly")
	assert.Equal(t, manifest.RunStatusOK, res.Status)
	assert.Zero(t, res.Copied)

	runDir := filepath.Join(dest, testutil.FixedRunID)
	m, err := manifest.Read(runDir)
	require.NoError(t, err)
	assert.Empty(t, m.Files, "manifest files must be an empty list")

	data := testutil.ReadFileString(t, filepath.Join(runDir, manifest.JournalFilename))
	assert.Empty(t, data, "no journal lines for an empty source")
}

func TestExecuteDryRun(t *testing.T) {
	src := testutil.ScenarioSource(t)
	dest := t.TempDir()

	res, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest, DryRun: true}, testutil.FixedClock())
	require.NoError(t, err, "dry run failed")
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Copied)

	runDir := filepath.Join(dest, testutil.FixedRunID)

	_, err = os.Stat(filepath.Join(runDir, manifest.ManifestFilename))
	assert.True(t, os.IsNotExist(err), "dry run must not write a manifest")

	var plan Plan
	data := testutil.ReadFileString(t, filepath.Join(runDir, manifest.PlanFilename))
	require.NoError(t, json.Unmarshal([]byte(data), &plan), "plan.json must be valid")
	assert.Equal(t, manifest.SchemaBackupPlan, plan.Schema)
	assert.Len(t, plan.Ops, 2)

	records := decodeJournal(t, runDir)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, OutcomeSkippedDryRun, rec.Outcome)
	}

	payload, err := os.ReadDir(filepath.Join(runDir, "payload"))
	if err == nil {
		for _, entry := range payload {
			walkForFiles(t, filepath.Join(runDir, "payload", entry.Name()))
		}
	}
}

// walkForFiles fails the test if any regular file exists under path.
func walkForFiles(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	if !info.IsDir() {
		t.Fatalf("dry run left file under payload: %s", path)
	}
	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	for _, e := range entries {
		walkForFiles(t, filepath.Join(path, e.Name()))
	}
}

func TestExecutePartialBackup(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{
		"denied.bin":   []byte("soon gone"),
		"readable.txt": []byte("fine\n"),
	})

	h, entries := scenarioScanAndHasher(t, src)
	plan, err := BuildPlan(entries, src, dest, testutil.FixedRunID, h)
	require.NoError(t, err)

	// The file disappears between plan and execute.
	require.NoError(t, os.Remove(filepath.Join(src, "denied.bin")))

	runDir := filepath.Join(dest, testutil.FixedRunID)
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	res, err := Execute(context.Background(), plan, h, "2025-01-01T12:00:00Z", false)
	require.NoError(t, err, "per-op faults must not fail the pipeline")
	assert.Equal(t, manifest.RunStatusPartial, res.Status)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.Failed)

	records := decodeJournal(t, runDir)
	require.Len(t, records, 2)
	assert.Equal(t, "denied.bin", records[0].RelPath)
	assert.Equal(t, OutcomeFailed, records[0].Outcome)
	assert.Equal(t, "unreadable", records[0].Error)
	assert.Equal(t, "readable.txt", records[1].RelPath)
	assert.Equal(t, OutcomeCopied, records[1].Outcome)

	m, err := manifest.Read(runDir)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunStatusPartial, m.RunStatus)
	require.Len(t, m.Files, 1, "manifest lists only successful entries")
	assert.Equal(t, "readable.txt", m.Files[0].RelPath)
	assert.Equal(t, "fine\n", testutil.ReadFileString(t, filepath.Join(runDir, "payload", "readable.txt")))
}

func TestExecuteHashMismatchWhenSourceChanges(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{"mutating.txt": []byte("before")})

	h, entries := scenarioScanAndHasher(t, src)
	plan, err := BuildPlan(entries, src, dest, testutil.FixedRunID, h)
	require.NoError(t, err)

	// Same size, different content: only the hash check can catch this.
	require.NoError(t, os.WriteFile(filepath.Join(src, "mutating.txt"), []byte("after!"), 0o644))

	runDir := filepath.Join(dest, testutil.FixedRunID)
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	res, err := Execute(context.Background(), plan, h, "2025-01-01T12:00:00Z", false)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunStatusPartial, res.Status)

	records := decodeJournal(t, runDir)
	require.Len(t, records, 1)
	assert.Equal(t, OutcomeFailed, records[0].Outcome)
	assert.Equal(t, "hash_mismatch", records[0].Error)

	_, err = os.Stat(filepath.Join(runDir, "payload", "mutating.txt"))
	assert.True(t, os.IsNotExist(err), "mismatched content must not land in payload")
	_, err = os.Stat(filepath.Join(runDir, "payload", "mutating.txt.part"))
	assert.True(t, os.IsNotExist(err), "part file must be discarded")
}

func TestExecuteCancellationBetweenOps(t *testing.T) {
	src := testutil.ScenarioSource(t)
	dest := t.TempDir()

	h, entries := scenarioScanAndHasher(t, src)
	plan, err := BuildPlan(entries, src, dest, testutil.FixedRunID, h)
	require.NoError(t, err)

	runDir := filepath.Join(dest, testutil.FixedRunID)
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Execute(ctx, plan, h, "2025-01-01T12:00:00Z", false)
	require.Error(t, err, "cancelled pipeline must report it")
	assert.ErrorIs(t, err, wcbterrors.ErrCancelled)
	assert.Equal(t, manifest.RunStatusPartial, res.Status)

	records := decodeJournal(t, runDir)
	require.NotEmpty(t, records, "the interrupted op must be journaled")
	assert.Equal(t, OutcomeFailed, records[0].Outcome)
	assert.Equal(t, "cancelled", records[0].Error)

	// The run directory is retained with a manifest describing what landed.
	m, err := manifest.Read(runDir)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunStatusPartial, m.RunStatus)
}

func TestRunRejectsHeldLock(t *testing.T) {
	src := testutil.ScenarioSource(t)
	dest := filepath.Join(t.TempDir(), "backups")

	lock := holdLock(t, dest)
	defer lock.Release()

	_, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest}, testutil.FixedClock())
	require.Error(t, err, "concurrent run must be rejected")
	assert.ErrorIs(t, err, wcbterrors.ErrLocked)

	_, statErr := os.Stat(filepath.Join(dest, testutil.FixedRunID))
	assert.True(t, os.IsNotExist(statErr), "no run directory may be created under contention")
}

func TestRunRejectsRunIDCollision(t *testing.T) {
	src := testutil.ScenarioSource(t)
	dest := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dest, testutil.FixedRunID), 0o755))

	_, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest}, testutil.FixedClock())
	require.Error(t, err, "run id collision must fail the run")
	assert.ErrorIs(t, err, wcbterrors.ErrRunExists)
}

func TestRunRejectsSymlinkSource(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{"a.txt": []byte("a")})
	require.NoError(t, os.Symlink(filepath.Join(src, "a.txt"), filepath.Join(src, "link")))

	_, err := Run(context.Background(), Options{Source: src, DestinationRoot: dest}, testutil.FixedClock())
	require.Error(t, err)
	assert.ErrorIs(t, err, wcbterrors.ErrUnsupportedEntry)

	runDir := filepath.Join(dest, testutil.FixedRunID)
	_, statErr := os.Stat(filepath.Join(runDir, "payload"))
	assert.True(t, os.IsNotExist(statErr), "no copies may happen before the scan rejects")
}
