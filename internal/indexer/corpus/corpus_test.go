package corpus

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, r)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"b.xhtml",
		"a.XHTML",
		"sub/c.xhtml",
		"sub/notes.md",
		".git/objects/d.xhtml",
		"sub/.cache/e.xhtml",
	)

	paths, failures, err := Discover(context.Background(), root, ExtensionFilter("xhtml"))
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []string{
		filepath.Join(root, "a.XHTML"),
		filepath.Join(root, "b.xhtml"),
		filepath.Join(root, "sub", "c.xhtml"),
	}, paths)
}

func TestDiscoverNilFilterAcceptsAllFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "one.txt", "two.bin")

	paths, _, err := Discover(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestDiscoverMissingRootIsFatal(t *testing.T) {
	_, _, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverUnreadableSubdirIsFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	touch(t, root, "ok.xhtml", "locked/hidden.xhtml")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	paths, failures, err := Discover(context.Background(), root, ExtensionFilter(".xhtml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ok.xhtml")}, paths)
	require.Len(t, failures, 1)
	assert.Equal(t, locked, failures[0].Path)
}

func TestDiscoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Discover(ctx, t.TempDir(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
