//go:build unix

package deploy

import (
	"io/fs"
	"syscall"
	"testing"

	"github.com/garyellow/medshop-deploy/internal/fsutil"
)

func statOwner(t *testing.T, info fs.FileInfo) fsutil.Owner {
	t.Helper()
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		t.Fatalf("no stat_t for %s", info.Name())
	}
	return fsutil.Owner{UID: int(st.Uid), GID: int(st.Gid)}
}
