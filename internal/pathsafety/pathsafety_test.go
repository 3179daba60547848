package pathsafety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolymathAlchemist/wcbt/internal/wcbterrors"
)

func TestCheckRelPath(t *testing.T) {
	valid := []string{"a.txt", "sub/b.bin", ".hidden", "deep/nested/path/file"}
	for _, rel := range valid {
		assert.NoError(t, CheckRelPath(rel), "expected %q to be a valid rel path", rel)
	}

	invalid := []string{"", "/abs", "a/../b", "..", "a//b", "./a", `a\b`, "a/./b"}
	for _, rel := range invalid {
		err := CheckRelPath(rel)
		require.Error(t, err, "expected %q to be rejected", rel)
		assert.ErrorIs(t, err, wcbterrors.ErrUnsafePath)
	}
}

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	joined, err := SafeJoin(base, "sub/file.txt")
	require.NoError(t, err, "SafeJoin failed")
	assert.Equal(t, filepath.Join(base, "sub", "file.txt"), joined)

	for _, rel := range []string{"../escape", "/abs/path", "a/../../b"} {
		_, err := SafeJoin(base, rel)
		require.Error(t, err, "expected %q to be rejected", rel)
		assert.ErrorIs(t, err, wcbterrors.ErrUnsafePath)
	}
}

func TestSafeRelPath(t *testing.T) {
	base := t.TempDir()
	child := filepath.Join(base, "sub", "file.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(child), 0o755))
	require.NoError(t, os.WriteFile(child, []byte("x"), 0o644))

	rel, err := SafeRelPath(base, child)
	require.NoError(t, err, "SafeRelPath failed")
	assert.Equal(t, "sub/file.txt", rel, "expected forward-slash rel path")

	outside := filepath.Join(filepath.Dir(base), "elsewhere")
	_, err = SafeRelPath(base, outside)
	require.Error(t, err, "expected path outside base to be rejected")
	assert.ErrorIs(t, err, wcbterrors.ErrUnsafePath)
}

func TestSafeRelPathRejectsSymlinkEscape(t *testing.T) {
	tmp := t.TempDir()
	base := filepath.Join(tmp, "base")
	outside := filepath.Join(tmp, "outside")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))

	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(outside, link))

	// The symlink resolves outside base, so the target is not within it.
	_, err := SafeRelPath(base, filepath.Join(link, "secret"))
	require.Error(t, err, "expected symlink escape to be rejected")
	assert.ErrorIs(t, err, wcbterrors.ErrUnsafePath)
}

func TestNormalizeNonExistent(t *testing.T) {
	base := t.TempDir()
	p, err := Normalize(filepath.Join(base, "does", "not", "exist"))
	require.NoError(t, err, "Normalize should handle paths that do not exist yet")
	assert.Equal(t, filepath.Join(base, "does", "not", "exist"), p)
}
