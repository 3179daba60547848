// Package testutil provides shared fixtures for engine tests: source
// trees built from relative-path maps, a fixed clock, and helpers for
// reading run artifacts back.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/clock"
)

// FixedTime is the instant used by scenario tests: 2025-01-01T12:00:00Z.
var FixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// FixedRunID is the run id FixedTime mints.
const FixedRunID = "2025-01-01T12-00-00Z"

// FixedClock returns a clock pinned to FixedTime.
func FixedClock() clock.Clock {
	return clock.Fixed{T: FixedTime}
}

// WriteTree materializes files under root from a map of forward-slash
// relative paths to contents.
func WriteTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755), "mkdir for %s", rel)
		require.NoError(t, os.WriteFile(abs, content, 0o644), "write %s", rel)
	}
}

// ScenarioSource builds the two-file source tree used across the seed
// scenarios: a.txt = "hello\n" and sub/b.bin = 0x00 0x01 0x02.
func ScenarioSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	WriteTree(t, src, map[string][]byte{
		"a.txt":     []byte("hello\n"),
		"sub/b.bin": {0x00, 0x01, 0x02},
	})
	return src
}

// SHA256Hex returns the hex digest of content.
func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ReadFileString reads a file and fails the test on error.
func ReadFileString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	return string(data)
}

// Lines splits a .jsonl file's content into lines, dropping trailing
// newlines; an empty file yields no lines.
func Lines(t *testing.T, path string) []string {
	t.Helper()
	raw := strings.TrimRight(ReadFileString(t, path), "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// TreeContents walks root and returns a map of forward-slash relative
// paths to file contents.
func TreeContents(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err, "walk %s", root)
	return out
}
