package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	type record struct {
		Zebra string `json:"zebra"`
		Alpha string `json:"alpha"`
		Mid   int    `json:"mid"`
	}
	data, err := CanonicalJSON(record{Zebra: "z", Alpha: "a", Mid: 1})
	require.NoError(t, err, "CanonicalJSON failed")
	assert.Equal(t, `{"alpha":"a","mid":1,"zebra":"z"}`, string(data), "keys must be sorted, encoding compact")
}

func TestCanonicalJSONPreservesLargeIntegers(t *testing.T) {
	// mtime_ns values exceed 2^53 and must not round-trip through float64.
	type record struct {
		MtimeNS int64 `json:"mtime_ns"`
	}
	data, err := CanonicalJSON(record{MtimeNS: 1735732800123456789})
	require.NoError(t, err)
	assert.Equal(t, `{"mtime_ns":1735732800123456789}`, string(data))
}

func TestWriteJSONTrailingNewlineAndAtomicity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, WriteJSON(path, map[string]string{"b": "2", "a": "1"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":\"1\",\"b\":\"2\"}\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may remain after a write")
}

func TestWriteJSONDeterministic(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.json")
	p2 := filepath.Join(dir, "two.json")
	v := map[string]any{"files": []string{"a", "b"}, "total": 2}
	require.NoError(t, WriteJSON(p1, v))
	require.NoError(t, WriteJSON(p2, v))

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	assert.Equal(t, string(d1), string(d2), "same value must serialize byte-identically")
}

func TestLineWriterAppendsCompactRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	w, err := NewLineWriter(path)
	require.NoError(t, err, "failed to create line writer")

	require.NoError(t, w.Append(map[string]int{"n": 1}))
	require.NoError(t, w.Append(map[string]int{"n": 2}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(data))
}

func TestReadLinesSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n\n{\"n\":2}\n"), 0o644))

	var seen []int
	err := ReadLines(path, func(line []byte) error {
		var rec struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		seen = append(seen, rec.N)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	require.NoError(t, WriteText(path, "line one\nline two"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data), "text artifacts end with a newline")
}
