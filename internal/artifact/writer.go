// Package artifact serializes the engine's on-disk documents. Every
// artifact is written write-to-temp-then-rename with canonical JSON:
// sorted keys, compact encoding, LF line endings, UTF-8 without BOM, and
// a terminating newline. Record ordering always comes from an upstream
// deterministic source, never from directory listings.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

// tmpSuffix marks in-progress writes in the same directory so the final
// rename stays atomic.
const tmpSuffix = ".wcbt_tmp"

// CanonicalJSON marshals v with object keys sorted and no insignificant
// whitespace. Integer fields round-trip through json.Number so values
// beyond 2^53 (mtime_ns) survive re-encoding.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// WriteJSON writes v to path as a canonical JSON document with a trailing
// newline, via a temp file in the same directory.
func WriteJSON(path string, v any) error {
	data, err := CanonicalJSON(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", wcbterrors.ErrIO, path, err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// WriteText writes s to path, ensuring a terminating newline.
func WriteText(path, s string) error {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	return WriteFileAtomic(path, []byte(s))
}

// WriteFileAtomic writes data to a temp sibling of path and renames it
// into place. A crash leaves either the old content or the new, never a
// torn file.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", wcbterrors.ErrIO, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync %s: %v", wcbterrors.ErrIO, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", wcbterrors.ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", wcbterrors.ErrIO, path, err)
	}
	return nil
}

// LineWriter appends compact one-line JSON records to a .jsonl file. Each
// record is flushed to stable storage before Append returns, so record N
// is durable before record N+1 is written.
type LineWriter struct {
	f    *os.File
	path string
}

// NewLineWriter creates (truncating) the .jsonl file at path.
func NewLineWriter(path string) (*LineWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir for %s: %v", wcbterrors.ErrIO, path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", wcbterrors.ErrIO, path, err)
	}
	return &LineWriter{f: f, path: path}, nil
}

// Append writes one canonical JSON record and an LF, then fsyncs.
func (w *LineWriter) Append(v any) error {
	data, err := CanonicalJSON(v)
	if err != nil {
		return fmt.Errorf("%w: encode record for %s: %v", wcbterrors.ErrIO, w.path, err)
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: append %s: %v", wcbterrors.ErrIO, w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", wcbterrors.ErrIO, w.path, err)
	}
	return nil
}

// Close closes the underlying file.
func (w *LineWriter) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return fmt.Errorf("%w: close %s: %v", wcbterrors.ErrIO, w.path, err)
	}
	return nil
}

// ReadLines calls decode for every non-empty line of a .jsonl file.
func ReadLines(path string, decode func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", wcbterrors.ErrIO, path, err)
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			return err
		}
	}
	return nil
}
