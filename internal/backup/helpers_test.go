package backup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/profilelock"
	"github.com/PolymathAlchemist/wcbt/internal/testutil"
)

func scenarioScanAndHasher(t *testing.T, src string) (*hasher.Hasher, []Entry) {
	t.Helper()
	h, err := hasher.New(hasher.SHA256)
	require.NoError(t, err, "failed to create hasher")
	entries, err := Scan(src, ExcludeRules{})
	require.NoError(t, err, "scan failed")
	return h, entries
}

func holdLock(t *testing.T, dest string) *profilelock.Lock {
	t.Helper()
	lock, err := profilelock.Acquire(dest, "test", testutil.FixedClock())
	require.NoError(t, err, "failed to hold lock")
	return lock
}
