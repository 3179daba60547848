package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/testutil"
	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

func TestScanOrdersEntriesLexicographically(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{
		"zeta.txt":     []byte("z"),
		"a.txt":        []byte("a"),
		"sub/nested/c": []byte("c"),
		"sub/b.bin":    []byte("b"),
		".hidden":      []byte("h"),
	})

	entries, err := Scan(src, ExcludeRules{})
	require.NoError(t, err, "scan failed")

	var rels []string
	for _, e := range entries {
		rels = append(rels, e.Rel)
	}
	assert.Equal(t, []string{".hidden", "a.txt", "sub/b.bin", "sub/nested/c", "zeta.txt"}, rels,
		"entries sorted by forward-slash rel path, hidden files included")
}

func TestScanRejectsSymlinks(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{"a.txt": []byte("a")})
	require.NoError(t, os.Symlink(filepath.Join(src, "a.txt"), filepath.Join(src, "link")))

	_, err := Scan(src, ExcludeRules{})
	require.Error(t, err, "symlinks must abort the scan")
	assert.ErrorIs(t, err, wcbterrors.ErrUnsupportedEntry)
}

func TestScanExcludeRules(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{
		"keep.txt":       []byte("k"),
		"cache/blob":     []byte("x"),
		"session.log":    []byte("l"),
		".git/config":    []byte("g"),
		"sub/cache/deep": []byte("y"),
	})

	entries, err := Scan(src, ExcludeRules{
		DirNames:  []string{"cache"},
		FileNames: []string{"session.log"},
	})
	require.NoError(t, err)

	var rels []string
	for _, e := range entries {
		rels = append(rels, e.Rel)
	}
	assert.Equal(t, []string{"keep.txt"}, rels, "excluded dirs are not descended, default excludes apply")
}

func TestScanNoDefaultExcludes(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{
		"keep.txt":    []byte("k"),
		".git/config": []byte("g"),
	})

	entries, err := Scan(src, ExcludeRules{NoDefaults: true})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "defaults disabled, .git contents included")
}

func TestScanEmptySource(t *testing.T) {
	entries, err := Scan(t.TempDir(), ExcludeRules{})
	require.NoError(t, err, "empty source must scan cleanly")
	assert.Empty(t, entries)
}
