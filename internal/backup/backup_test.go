package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/medshop-deploy/internal/r2client"
)

type fakeUploader struct {
	key         string
	contentType string
	body        []byte
	err         error
	lost        bool // uploads succeed but never land
}

func (f *fakeUploader) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.contentType, f.body = key, contentType, data
	return "etag-1", nil
}

func (f *fakeUploader) HeadObject(_ context.Context, key string) (string, error) {
	if f.lost || key != f.key {
		return "", r2client.ErrNotFound
	}
	return "etag-1", nil
}

func createAppDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`CREATE TABLE medicines_medicine (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medicines_medicine (name) VALUES ('Paracetamol'), ('Ibuprofen')`)
	require.NoError(t, err)
}

func TestKey(t *testing.T) {
	m := New(&fakeUploader{}, Config{Prefix: "backups", AppName: "medshop"})
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("UTC+8", 8*3600))
	assert.Equal(t, "backups/medshop/medshop-20260303T210607Z.sqlite3.zst", m.Key(ts))
}

func TestRun_UploadsRestorableCopy(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.sqlite3")
	createAppDB(t, dbPath)

	up := &fakeUploader{}
	m := New(up, Config{Prefix: "backups", AppName: "medshop", TempDir: t.TempDir()})
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := m.Run(context.Background(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, "backups/medshop/medshop-20260102T030405Z.sqlite3.zst", res.Key)
	assert.Equal(t, "etag-1", res.ETag)
	assert.Equal(t, int64(len(up.body)), res.Size)
	assert.Equal(t, ContentType, up.contentType)

	restored := filepath.Join(dir, "restored.sqlite3")
	out, err := os.Create(restored)
	require.NoError(t, err)
	require.NoError(t, r2client.Decompress(out, bytes.NewReader(up.body)))
	require.NoError(t, out.Close())

	db, err := sql.Open("sqlite", restored)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM medicines_medicine`).Scan(&n))
	assert.Equal(t, 2, n)

	entries, err := os.ReadDir(m.config.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files must be removed")
}

func TestRun_UploadFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite3")
	createAppDB(t, dbPath)

	m := New(&fakeUploader{err: errors.New("403 Forbidden")}, Config{AppName: "medshop", TempDir: t.TempDir()})
	_, err := m.Run(context.Background(), dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload backup")
}

func TestRun_UploadNotStored(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite3")
	createAppDB(t, dbPath)

	m := New(&fakeUploader{lost: true}, Config{AppName: "medshop", TempDir: t.TempDir()})
	_, err := m.Run(context.Background(), dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, r2client.ErrNotFound)
	assert.Contains(t, err.Error(), "confirm backup")
}

func TestSnapshot_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Snapshot(context.Background(), filepath.Join(dir, "missing.sqlite3"), filepath.Join(dir, "out.sqlite3"))
	assert.Error(t, err)
}
