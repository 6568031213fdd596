package fsutil

import (
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerOf(t *testing.T, path string) Owner {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		t.Skip("ownership not available on this platform")
	}
	return Owner{UID: int(st.Uid), GID: int(st.Gid)}
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "medicines", "templates"), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "staticfiles", "css"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "manage.py"), []byte("#!/usr/bin/env python\n"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "medicines", "models.py"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "medicines", "templates", "base.html"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "staticfiles", "css", "site.css"), nil, 0o600))
	require.NoError(t, os.Symlink("medicines/models.py", filepath.Join(root, "models-link.py")))
}

func TestApplyTree_RecursiveOwnershipAndModes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)
	owner := CurrentOwner()

	require.NoError(t, ApplyTree(root, owner, DefaultModes))

	var visited int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		visited++
		assert.Equal(t, owner, ownerOf(t, path), path)

		info, err := os.Lstat(path)
		require.NoError(t, err)
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
		case info.IsDir():
			assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm(), path)
		case filepath.Base(path) == "manage.py":
			assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm(), "execute bits kept on %s", path)
		default:
			assert.Equal(t, fs.FileMode(0o644), info.Mode().Perm(), path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, visited)
}

func TestApplyTree_MissingRoot(t *testing.T) {
	err := ApplyTree(filepath.Join(t.TempDir(), "missing"), CurrentOwner(), DefaultModes)
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "log", "gunicorn")
	owner := CurrentOwner()

	require.NoError(t, EnsureDir(path, 0o750, owner))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fs.FileMode(0o750), info.Mode().Perm())

	// Idempotent and re-applies mode.
	require.NoError(t, os.Chmod(path, 0o700))
	require.NoError(t, EnsureDir(path, 0o750, owner))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o750), info.Mode().Perm())
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medshop.service")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupOwner(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skip("current user unavailable")
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Skip("current group unavailable")
	}

	owner, err := LookupOwner(u.Username, g.Name)
	require.NoError(t, err)
	assert.Equal(t, CurrentOwner(), owner)

	_, err = LookupOwner("medshop-no-such-user", g.Name)
	assert.Error(t, err)
}

func TestApplyTree_ZeroModesKeepPermissions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)
	models := filepath.Join(root, "medicines", "models.py")

	require.NoError(t, ApplyTree(root, CurrentOwner(), Modes{}))

	info, err := os.Stat(models)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
	info, err = os.Stat(filepath.Join(root, "medicines"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o700), info.Mode().Perm())
}
