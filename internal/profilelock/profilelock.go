// Package profilelock provides the exclusive, cross-process lock that
// serializes write-side pipelines per destination root. Locks are plain
// JSON written with exclusive create, so they are inspectable on disk and
// behave the same across filesystems. Contention fails fast; stale locks
// are broken only when the caller asks.
package profilelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/PolymathAlchemist/wcbt/internal/clock"
	"github.com/PolymathAlchemist/wcbt/internal/manifest"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// Info is the metadata recorded in a lock file.
type Info struct {
	Schema     string `json:"schema"`
	OwnerID    string `json:"owner_id"`
	PID        int    `json:"pid"`
	Hostname   string `json:"hostname"`
	Command    string `json:"command"`
	AcquiredAt string `json:"acquired_at"`
}

// Lock is a held profile lock.
type Lock struct {
	path string
	info Info
}

// PathFor returns the lock file path for a destination root: a sibling of
// the root so acquiring the lock never writes inside it.
func PathFor(destRoot string) string {
	cleaned := filepath.Clean(destRoot)
	return filepath.Join(filepath.Dir(cleaned), "."+filepath.Base(cleaned)+".wcbt_lock")
}

// Acquire takes the lock for destRoot on behalf of command. It fails fast
// with locked when another process holds it.
func Acquire(destRoot, command string, clk clock.Clock) (*Lock, error) {
	path := PathFor(destRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: lock dir for %s: %v", wcbterrors.ErrIO, destRoot, err)
	}
	hostname, _ := os.Hostname()
	info := Info{
		Schema:     manifest.SchemaLockInfo,
		OwnerID:    uuid.NewString(),
		PID:        os.Getpid(),
		Hostname:   hostname,
		Command:    command,
		AcquiredAt: clock.Timestamp(clk.Now()),
	}
	if err := writeExclusive(path, info); err != nil {
		return nil, err
	}
	return &Lock{path: path, info: info}, nil
}

// Release removes the lock file. Releasing a lock that was broken by
// another process is reported, not ignored.
func (l *Lock) Release() error {
	current, err := ReadInfo(l.path)
	if err == nil && current.OwnerID != l.info.OwnerID {
		return fmt.Errorf("%w: lock %s no longer owned by this process", wcbterrors.ErrLocked, l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: release %s: %v", wcbterrors.ErrIO, l.path, err)
	}
	return nil
}

// Info returns the metadata this lock was written with.
func (l *Lock) Info() Info { return l.info }

// ReadInfo loads the lock metadata at path.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read lock %s: %v", wcbterrors.ErrIO, path, err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: parse lock %s: %v", wcbterrors.ErrManifestInvalid, path, err)
	}
	if info.Schema != manifest.SchemaLockInfo {
		return nil, fmt.Errorf("%w: lock schema %q", wcbterrors.ErrSchemaUnsupported, info.Schema)
	}
	return &info, nil
}

// IsStale reports whether the lock described by info is provably stale: recorded on
// this host with a pid that is no longer running. Locks from other hosts
// are never provably stale.
func IsStale(info *Info) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == "" || !strings.EqualFold(info.Hostname, hostname) {
		return false
	}
	if info.PID <= 0 {
		return true
	}
	// Signal 0 probes for existence without delivering anything.
	err := syscall.Kill(info.PID, 0)
	if err == nil {
		return false
	}
	return err == syscall.ESRCH
}

// Break removes an existing lock. Breaking is always an explicit caller
// decision, never automatic, and follows a conservative decision table:
//
//   - bare Break refuses to remove any lock, and says how to proceed;
//   - force breaks only a provably stale lock (same host, dead pid);
//   - breakAnyway breaks unconditionally, including live and unreadable
//     locks. This can corrupt an in-flight run and is the caller's risk.
//
// A missing lock is not an error on any path.
func Break(destRoot string, force, breakAnyway bool) error {
	path := PathFor(destRoot)
	info, err := ReadInfo(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Unreadable or corrupt lock: only an unconditional override
		// may remove what cannot be inspected.
		if !breakAnyway {
			return err
		}
		info = nil
	}

	if !breakAnyway {
		if !force {
			holder := ""
			if info != nil {
				holder = fmt.Sprintf(" (held by pid %d on %s since %s)", info.PID, info.Hostname, info.AcquiredAt)
			}
			return fmt.Errorf("%w: refusing to break lock %s%s; re-run with --force to break a stale lock", wcbterrors.ErrLocked, path, holder)
		}
		if info == nil || !IsStale(info) {
			return fmt.Errorf("%w: lock %s is not provably stale; re-run with --break-anyway to override", wcbterrors.ErrLocked, path)
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: break lock %s: %v", wcbterrors.ErrIO, path, err)
	}
	return nil
}

func writeExclusive(path string, info Info) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder := ""
			if existing, rerr := ReadInfo(path); rerr == nil {
				holder = fmt.Sprintf(" (held by pid %d on %s since %s)", existing.PID, existing.Hostname, existing.AcquiredAt)
			}
			return fmt.Errorf("%w: %s%s", wcbterrors.ErrLocked, path, holder)
		}
		return fmt.Errorf("%w: create lock %s: %v", wcbterrors.ErrIO, path, err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: encode lock: %v", wcbterrors.ErrIO, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: write lock %s: %v", wcbterrors.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: close lock %s: %v", wcbterrors.ErrIO, path, err)
	}
	return nil
}
