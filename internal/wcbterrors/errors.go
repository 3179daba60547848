// Package wcbterrors defines the sentinel errors and exit codes for the
// WCBT engine. Every expected failure mode maps to exactly one sentinel;
// engine code wraps them with %w and callers classify with errors.Is.
package wcbterrors

import "errors"

// Path and topology violations (fatal, pre-flight)
var (
	// ErrUnsafePath is returned when a path escapes its containing root.
	ErrUnsafePath = errors.New("unsafe_path")

	// ErrCrossDeviceStage is returned when stage and destination are on
	// different filesystems and atomic promotion is impossible.
	ErrCrossDeviceStage = errors.New("cross_device_stage")

	// ErrCaseCollision is returned when manifest rel_paths would collide
	// after a case-insensitive merge.
	ErrCaseCollision = errors.New("case_collision")
)

// Contention
var (
	// ErrLocked is returned when the profile lock is held by another process.
	ErrLocked = errors.New("locked")
)

// Per-op data faults
var (
	// ErrUnreadable is returned when a file exists but cannot be opened or read.
	ErrUnreadable = errors.New("unreadable")

	// ErrHashMismatch is returned when observed content hash differs from expected.
	ErrHashMismatch = errors.New("hash_mismatch")

	// ErrSizeMismatch is returned when observed size differs from expected.
	ErrSizeMismatch = errors.New("size_mismatch")

	// ErrIO is the generic filesystem fault.
	ErrIO = errors.New("io_error")

	// ErrUnsupportedEntry is returned when the scanner meets an entry kind
	// it refuses to back up, such as a symlink.
	ErrUnsupportedEntry = errors.New("unsupported_entry")
)

// Artifact consumer faults
var (
	// ErrSchemaUnsupported is returned when a JSON document carries an
	// unknown schema tag.
	ErrSchemaUnsupported = errors.New("schema_unsupported")

	// ErrManifestInvalid is returned when a manifest fails structural validation.
	ErrManifestInvalid = errors.New("manifest_invalid")

	// ErrIncompleteRun is returned when a run directory has no manifest,
	// typically because it is still being written.
	ErrIncompleteRun = errors.New("incomplete_run")
)

// Pipeline control
var (
	// ErrCancelled is returned on cooperative cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrPromotionFailed is returned when the stage-to-destination rename
	// could not complete; rollback of the preserve-rename was attempted.
	ErrPromotionFailed = errors.New("promotion_failed")

	// ErrRunExists is returned when a run id collides within a destination root.
	ErrRunExists = errors.New("run_exists")

	// ErrConflict is returned when a restore would touch an existing
	// destination file under a merge policy.
	ErrConflict = errors.New("conflict")
)

// Kind returns the taxonomy name of err, or "io_error" for errors outside
// the taxonomy. The name is what appears in journal and artifact records.
func Kind(err error) string {
	for _, sentinel := range []error{
		ErrUnsafePath, ErrCrossDeviceStage, ErrCaseCollision, ErrLocked,
		ErrUnreadable, ErrHashMismatch, ErrSizeMismatch, ErrUnsupportedEntry,
		ErrSchemaUnsupported, ErrManifestInvalid, ErrIncompleteRun,
		ErrCancelled, ErrPromotionFailed, ErrRunExists, ErrConflict, ErrIO,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrIO.Error()
}
