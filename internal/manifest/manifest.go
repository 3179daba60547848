// Package manifest defines the run data model and the manifest store.
// The manifest is the contract: verification and restore consult it,
// never the filesystem.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Schema tags carried by every on-disk document.
const (
	SchemaRunManifest      = "wcbt_run_manifest_v1"
	SchemaBackupPlan       = "wcbt_backup_plan_v1"
	SchemaJournalRecord    = "wcbt_journal_record_v1"
	SchemaRestorePlan      = "wcbt_restore_plan_v1"
	SchemaRestoreCandidate = "wcbt_restore_candidate_v1"
	SchemaStageCopyRecord  = "wcbt_stage_copy_record_v1"
	SchemaStageVerify      = "wcbt_stage_verify_record_v1"
	SchemaVerifyRecord     = "wcbt_verify_record_v1"
	SchemaVerifyReport     = "wcbt_verify_report_v1"
	SchemaLockInfo         = "wcbt_lock_info_v1"
)

// Run directory layout.
const (
	ManifestFilename = "manifest.json"
	PlanFilename     = "plan.json"
	JournalFilename  = "execution_journal.jsonl"
	PayloadDirName   = "payload"
)

// Run status sentinels recorded in the manifest.
const (
	RunStatusOK      = "ok"
	RunStatusPartial = "partial"
)

// FileEntry is one manifest row: a payload file with its recorded size,
// content hash and source mtime.
type FileEntry struct {
	RelPath   string `json:"rel_path"`
	SizeBytes int64  `json:"size_bytes"`
	HashHex   string `json:"hash_hex"`
	MtimeNS   int64  `json:"mtime_ns"`
}

// Manifest is the authoritative record of what a run contains.
type Manifest struct {
	Schema          string      `json:"schema"`
	RunID           string      `json:"run_id"`
	CreatedAt       string      `json:"created_at"`
	SourceRoot      string      `json:"source_root"`
	DestinationRoot string      `json:"destination_root"`
	HashAlgorithm   string      `json:"hash_algorithm"`
	RunStatus       string      `json:"run_status"`
	Files           []FileEntry `json:"files"`
}

// Validate checks the schema tag and the structural invariants: canonical
// forward-slash rel paths, strictly ascending order, hex digests, and
// non-negative sizes.
func (m *Manifest) Validate() error {
	if m.Schema != SchemaRunManifest {
		return fmt.Errorf("%w: manifest schema %q", wcbterrors.ErrSchemaUnsupported, m.Schema)
	}
	if m.RunID == "" {
		return fmt.Errorf("%w: empty run_id", wcbterrors.ErrManifestInvalid)
	}
	switch m.RunStatus {
	case RunStatusOK, RunStatusPartial:
	default:
		return fmt.Errorf("%w: run_status %q", wcbterrors.ErrManifestInvalid, m.RunStatus)
	}
	prev := ""
	for i, e := range m.Files {
		if err := pathsafety.CheckRelPath(e.RelPath); err != nil {
			return fmt.Errorf("%w: files[%d]: %v", wcbterrors.ErrManifestInvalid, i, err)
		}
		if i > 0 && !(prev < e.RelPath) {
			return fmt.Errorf("%w: files not strictly ordered at %q", wcbterrors.ErrManifestInvalid, e.RelPath)
		}
		if e.SizeBytes < 0 {
			return fmt.Errorf("%w: files[%d] negative size", wcbterrors.ErrManifestInvalid, i)
		}
		if !isLowerHex(e.HashHex) {
			return fmt.Errorf("%w: files[%d] hash_hex %q", wcbterrors.ErrManifestInvalid, i, e.HashHex)
		}
		prev = e.RelPath
	}
	return nil
}

// SortFiles orders entries lexicographically by rel_path, the canonical
// manifest order.
func SortFiles(files []FileEntry) {
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
}

func isLowerHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
