// Package verify validates an archived run's payload against its
// manifest. Every manifest entry yields exactly one record, in manifest
// order, regardless of failures; the exit behavior reflects the
// aggregate.
package verify

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/artifact"
	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/logging"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/pathsafety"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Verify artifacts are published under a single directory inside the
// run so all three land (or vanish) together.
const (
	ArtifactsDirName    = "verify"
	ReportJSONLFilename = "verify_report.jsonl"
	ReportJSONFilename  = "verify_report.json"
	SummaryTxtFilename  = "verify_summary.txt"
)

// verifyTmpDirName is the fixed-name staging sibling of the artifacts dir.
const verifyTmpDirName = ".wcbt_verify_tmp"

// ArtifactPath returns the published location of a verify artifact.
func ArtifactPath(runDir, name string) string {
	return filepath.Join(runDir, ArtifactsDirName, name)
}

// Record statuses.
const (
	StatusOK           = "ok"
	StatusMissing      = "missing"
	StatusUnreadable   = "unreadable"
	StatusHashMismatch = "hash_mismatch"
)

// Record is one line of verify_report.jsonl.
type Record struct {
	Schema string `json:"schema"`
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Counts aggregates record statuses.
type Counts struct {
	OK           int `json:"ok"`
	Missing      int `json:"missing"`
	Unreadable   int `json:"unreadable"`
	HashMismatch int `json:"hash_mismatch"`
}

// Report is verify_report.json. It deliberately carries no wall-clock
// fields so verifying an unchanged run twice yields byte-identical
// artifacts.
type Report struct {
	Schema    string `json:"schema"`
	RunID     string `json:"run_id"`
	Algorithm string `json:"algorithm"`
	Counts    Counts `json:"counts"`
	Total     int    `json:"total"`
}

// Result pairs the report with its records.
type Result struct {
	Report  Report
	Records []Record
}

// AllOK reports whether every record verified clean.
func (r *Result) AllOK() bool {
	return r.Report.Counts.OK == r.Report.Total
}

// Run verifies the payload of runDir against its manifest and writes the
// three verify artifacts under <run>/verify/. The artifacts are produced
// in a temporary sibling directory and published with one directory
// rename, so a crashed verify leaves either a complete artifact set or
// none.
func Run(runDir string) (*Result, error) {
	absRun, err := pathsafety.Normalize(runDir)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Read(absRun)
	if err != nil {
		return nil, err
	}
	h, err := hasher.New(m.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Report: Report{
			Schema:    manifest.SchemaVerifyReport,
			RunID:     m.RunID,
			Algorithm: m.HashAlgorithm,
			Total:     len(m.Files),
		},
		Records: make([]Record, 0, len(m.Files)),
	}

	for _, e := range m.Files {
		rec := Record{
			Schema: manifest.SchemaVerifyRecord,
			RunID:  m.RunID,
			Path:   path.Join(manifest.PayloadDirName, e.RelPath),
		}
		rec.Status = classify(absRun, e, h)
		switch rec.Status {
		case StatusOK:
			res.Report.Counts.OK++
		case StatusMissing:
			res.Report.Counts.Missing++
		case StatusUnreadable:
			res.Report.Counts.Unreadable++
		case StatusHashMismatch:
			res.Report.Counts.HashMismatch++
		}
		res.Records = append(res.Records, rec)
	}

	if err := writeArtifacts(absRun, res); err != nil {
		return res, err
	}
	if !res.AllOK() {
		logging.Warn("verification found problems",
			logging.String("run_id", m.RunID),
			logging.Int("ok", res.Report.Counts.OK),
			logging.Int("total", res.Report.Total))
	}
	return res, nil
}

func classify(runDir string, e manifest.FileEntry, h *hasher.Hasher) string {
	abs, err := pathsafety.SafeJoin(runDir, path.Join(manifest.PayloadDirName, e.RelPath))
	if err != nil {
		return StatusMissing
	}
	if _, err := os.Lstat(abs); os.IsNotExist(err) {
		return StatusMissing
	} else if err != nil {
		return StatusUnreadable
	}
	digest, n, err := h.HashFile(abs)
	if err != nil {
		return StatusUnreadable
	}
	if digest != e.HashHex || n != e.SizeBytes {
		return StatusHashMismatch
	}
	return StatusOK
}

// writeArtifacts stages the three files under a fixed-name temp sibling
// and publishes them with a single rename of that directory. At no point
// does a partial artifact set exist under the final name: the prior set
// is removed whole, then the new set appears whole.
func writeArtifacts(runDir string, res *Result) error {
	tmpDir := filepath.Join(runDir, verifyTmpDirName)
	finalDir := filepath.Join(runDir, ArtifactsDirName)

	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("%w: clear %s: %v", wcbterrors.ErrIO, tmpDir, err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, tmpDir, err)
	}

	lines, err := artifact.NewLineWriter(filepath.Join(tmpDir, ReportJSONLFilename))
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		if err := lines.Append(rec); err != nil {
			lines.Close()
			return err
		}
	}
	if err := lines.Close(); err != nil {
		return err
	}
	if err := artifact.WriteJSON(filepath.Join(tmpDir, ReportJSONFilename), res.Report); err != nil {
		return err
	}
	if err := artifact.WriteText(filepath.Join(tmpDir, SummaryTxtFilename), renderSummary(res)); err != nil {
		return err
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return fmt.Errorf("%w: clear %s: %v", wcbterrors.ErrIO, finalDir, err)
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return fmt.Errorf("%w: publish %s: %v", wcbterrors.ErrIO, finalDir, err)
	}
	return nil
}
