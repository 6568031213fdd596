// Package fsutil creates directories and applies ownership and permissions
// to deployed trees.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Owner is a numeric uid/gid pair.
type Owner struct {
	UID int
	GID int
}

// CurrentOwner returns the uid/gid of the running process.
func CurrentOwner() Owner {
	return Owner{UID: os.Getuid(), GID: os.Getgid()}
}

// LookupOwner resolves a user and group name to numeric ids.
func LookupOwner(userName, groupName string) (Owner, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return Owner{}, fmt.Errorf("lookup user %q: %w", userName, err)
	}
	g, err := user.LookupGroup(groupName)
	if err != nil {
		return Owner{}, fmt.Errorf("lookup group %q: %w", groupName, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Owner{}, fmt.Errorf("user %q has non-numeric uid %q", userName, u.Uid)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return Owner{}, fmt.Errorf("group %q has non-numeric gid %q", groupName, g.Gid)
	}
	return Owner{UID: uid, GID: gid}, nil
}

// EnsureDir creates path (and parents) if missing, then sets mode and owner
// on path itself.
func EnsureDir(path string, mode fs.FileMode, owner Owner) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Lchown(path, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}

// Modes are the permissions ApplyTree sets. A zero field leaves that kind of
// entry's mode unchanged.
type Modes struct {
	Dir  fs.FileMode
	File fs.FileMode // files with any execute bit become executable for all
}

// DefaultModes matches chmod -R 755 on directories and 644 on files.
var DefaultModes = Modes{Dir: 0o755, File: 0o644}

// ApplyTree chowns every entry under root, root included, and normalizes
// permissions. Symlinks are chowned themselves and never followed.
func ApplyTree(root string, owner Owner, modes Modes) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := os.Lchown(path, owner.UID, owner.GID); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		case d.IsDir() && modes.Dir != 0:
			if err := os.Chmod(path, modes.Dir); err != nil {
				return fmt.Errorf("chmod %s: %w", path, err)
			}
		case d.Type().IsRegular() && modes.File != 0:
			info, err := d.Info()
			if err != nil {
				return err
			}
			mode := modes.File
			if info.Mode().Perm()&0o111 != 0 {
				mode |= 0o111
			}
			if err := os.Chmod(path, mode); err != nil {
				return fmt.Errorf("chmod %s: %w", path, err)
			}
		}
		return nil
	})
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
