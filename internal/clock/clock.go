// Package clock abstracts wall-clock access. Engine code never reads the
// system time directly; callers inject a Clock so run ids and timestamps
// are deterministic under test.
package clock

import "time"

// Clock is a source of time for the engine.
type Clock interface {
	// Now returns the current time. Implementations must return a time
	// with a valid location; the engine normalizes to UTC.
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the operating system clock in UTC.
func System() Clock { return systemClock{} }

// Fixed is a Clock that always returns the same instant. Useful in tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time { return f.T.UTC() }

// runIDLayout is the ISO-8601 basic form used for run directory names.
// Colons are replaced with dashes so the id is a valid file name everywhere.
const runIDLayout = "2006-01-02T15-04-05Z"

// RunID formats t as a run id: YYYY-MM-DDTHH-MM-SSZ in UTC.
func RunID(t time.Time) string {
	return t.UTC().Format(runIDLayout)
}

// ParseRunID parses a run id back into its UTC instant. It reports whether
// s is a well-formed run id.
func ParseRunID(s string) (time.Time, bool) {
	t, err := time.Parse(runIDLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Timestamp renders t as RFC3339 UTC with second precision, the form
// recorded in manifests and lock files.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
