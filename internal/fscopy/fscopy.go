// Package fscopy implements the chunked copy-then-rename primitive shared
// by backup execution and restore staging. Data lands in a .part sibling
// and is renamed into place only on success, so a crash never leaves a
// half-written file under a final name.
package fscopy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/hasher"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// PartSuffix marks in-progress copies.
const PartSuffix = ".part"

const chunkSize = 128 * 1024

// Observed describes what actually flowed through a copy.
type Observed struct {
	HashHex   string
	SizeBytes int64
}

// Expected pins the content a copy must deliver. A mismatch discards the
// part file before any rename.
type Expected struct {
	HashHex   string
	SizeBytes int64
}

// Copy streams src to dst+".part" while hashing. When expected is set,
// the observed digest is compared before anything is published; a
// mismatch removes the part file and fails the op. On success the part
// file is renamed to dst when commit is true, or removed when false
// (dry run). Cancellation is honored between chunks; a cancelled or
// failed copy removes the part file before returning.
func Copy(ctx context.Context, src, dst string, h *hasher.Hasher, expected *Expected, commit bool) (Observed, error) {
	var obs Observed

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return obs, fmt.Errorf("%w: mkdir %s: %v", wcbterrors.ErrIO, filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return obs, fmt.Errorf("%w: open %s: %v", wcbterrors.ErrUnreadable, src, err)
	}
	defer in.Close()

	part := dst + PartSuffix
	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return obs, fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, part, err)
	}

	digest := h.NewDigest()
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			os.Remove(part)
			return obs, fmt.Errorf("%w: copy %s", wcbterrors.ErrCancelled, src)
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(part)
				return obs, fmt.Errorf("%w: write %s: %v", wcbterrors.ErrIO, part, werr)
			}
			obs.SizeBytes += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(part)
			return obs, fmt.Errorf("%w: read %s: %v", wcbterrors.ErrUnreadable, src, rerr)
		}
	}
	obs.HashHex = fmt.Sprintf("%x", digest.Sum(nil))

	if expected != nil {
		if obs.HashHex != expected.HashHex {
			out.Close()
			os.Remove(part)
			return obs, fmt.Errorf("%w: %s", wcbterrors.ErrHashMismatch, src)
		}
		if obs.SizeBytes != expected.SizeBytes {
			out.Close()
			os.Remove(part)
			return obs, fmt.Errorf("%w: %s", wcbterrors.ErrSizeMismatch, src)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(part)
		return obs, fmt.Errorf("%w: sync %s: %v", wcbterrors.ErrIO, part, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return obs, fmt.Errorf("%w: close %s: %v", wcbterrors.ErrIO, part, err)
	}

	if !commit {
		if err := os.Remove(part); err != nil {
			return obs, fmt.Errorf("%w: remove %s: %v", wcbterrors.ErrIO, part, err)
		}
		return obs, nil
	}
	if err := os.Rename(part, dst); err != nil {
		os.Remove(part)
		return obs, fmt.Errorf("%w: rename %s: %v", wcbterrors.ErrIO, dst, err)
	}
	return obs, nil
}
