package profilelock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

func fixedClock() clock.Clock {
	return clock.Fixed{T: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestAcquireWritesInspectableMetadata(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	lock, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err, "failed to acquire lock")
	defer lock.Release()

	info, err := ReadInfo(PathFor(dest))
	require.NoError(t, err, "lock file must be readable JSON")
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "backup", info.Command)
	assert.Equal(t, "2025-01-01T12:00:00Z", info.AcquiredAt)
	assert.NotEmpty(t, info.OwnerID)
}

func TestContentionFailsFast(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	first, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(dest, "restore", fixedClock())
	require.Error(t, err, "second acquire must fail while held")
	assert.ErrorIs(t, err, wcbterrors.ErrLocked)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	lock, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	again, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err, "released lock must be reacquirable")
	require.NoError(t, again.Release())
}

func TestBareBreakAlwaysRefuses(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	lock, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err)
	defer lock.Release()

	err = Break(dest, false, false)
	require.Error(t, err, "bare break must refuse any held lock")
	assert.ErrorIs(t, err, wcbterrors.ErrLocked)

	// Even a provably stale lock needs --force.
	forgeStaleLock(t, dest, lock.Info())
	err = Break(dest, false, false)
	require.Error(t, err, "bare break must refuse a stale lock too")
	assert.ErrorIs(t, err, wcbterrors.ErrLocked)
}

func TestForceBreaksOnlyStaleLocks(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	lock, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err)

	// Our own pid is alive, so the lock is not provably stale.
	err = Break(dest, true, false)
	require.Error(t, err, "force must not break a live lock")
	assert.ErrorIs(t, err, wcbterrors.ErrLocked)

	forgeStaleLock(t, dest, lock.Info())
	require.NoError(t, Break(dest, true, false), "force must break a provably stale lock")
	_, err = os.Stat(PathFor(dest))
	assert.True(t, os.IsNotExist(err), "lock file must be gone")
}

func TestBreakAnywayOverridesLiveLock(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")

	_, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err)

	require.NoError(t, Break(dest, true, true), "break-anyway must remove a live lock")

	relock, err := Acquire(dest, "backup", fixedClock())
	require.NoError(t, err, "destination must be lockable after the override")
	require.NoError(t, relock.Release())
}

func TestBreakMissingLockIsNoop(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, Break(dest, false, false), "breaking an absent lock is not an error")
}

// forgeStaleLock rewrites the lock file in place with a dead pid to
// simulate a crashed process on this host.
func forgeStaleLock(t *testing.T, dest string, info Info) {
	t.Helper()
	path := PathFor(dest)
	require.NoError(t, os.Remove(path))
	data := []byte(`{"schema":"wcbt_lock_info_v1","owner_id":"` + info.OwnerID +
		`","pid":1073741824,"hostname":"` + info.Hostname +
		`","command":"backup","acquired_at":"2025-01-01T12:00:00Z"}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
