// Package backup uploads a compressed copy of the application database to
// R2 before migrations run.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/garyellow/medshop-deploy/internal/r2client"
)

// ContentType is the content type of uploaded backups.
const ContentType = "application/zstd"

// Uploader stores one object and reports the ETag of a stored object.
// *r2client.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	HeadObject(ctx context.Context, key string) (string, error)
}

// Config controls where backups land.
type Config struct {
	Prefix  string // object key prefix, e.g. "backups"
	AppName string
	TempDir string // scratch space for the copy, empty = os.TempDir()
}

// Result describes an uploaded backup.
type Result struct {
	Key  string
	ETag string
	Size int64 // compressed bytes
}

var _ Uploader = (*r2client.Client)(nil)

// Manager produces and uploads database backups.
type Manager struct {
	uploader Uploader
	config   Config
	now      func() time.Time
}

// New creates a backup manager.
func New(uploader Uploader, cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{uploader: uploader, config: cfg, now: time.Now}
}

// Key returns the object key for a backup taken at t.
func (m *Manager) Key(t time.Time) string {
	name := fmt.Sprintf("%s-%s.sqlite3.zst", m.config.AppName, t.UTC().Format("20060102T150405Z"))
	return path.Join(m.config.Prefix, m.config.AppName, name)
}

// Run copies the database at dbPath, compresses the copy and uploads it.
func (m *Manager) Run(ctx context.Context, dbPath string) (*Result, error) {
	snapshotPath := filepath.Join(m.config.TempDir, fmt.Sprintf("backup_%d.sqlite3", m.now().UnixNano()))
	if err := Snapshot(ctx, dbPath, snapshotPath); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	defer func() { _ = os.Remove(snapshotPath) }()

	compressedPath := snapshotPath + ".zst"
	if err := compressFile(snapshotPath, compressedPath); err != nil {
		return nil, fmt.Errorf("compress database: %w", err)
	}
	defer func() { _ = os.Remove(compressedPath) }()

	f, err := os.Open(compressedPath)
	if err != nil {
		return nil, fmt.Errorf("open compressed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat compressed file: %w", err)
	}

	key := m.Key(m.now())
	etag, err := m.uploader.Upload(ctx, key, f, ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}

	// Confirm the object landed.
	stored, err := m.uploader.HeadObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("confirm backup %s: %w", key, err)
	}
	if etag != "" && stored != etag {
		return nil, fmt.Errorf("confirm backup %s: stored etag %q, uploaded %q", key, stored, etag)
	}

	slog.InfoContext(ctx, "Database backup uploaded",
		"key", key,
		"etag", etag,
		"bytes", info.Size())

	return &Result{Key: key, ETag: etag, Size: info.Size()}, nil
}

// Snapshot writes a transactionally consistent copy of the SQLite database
// at src to dst using VACUUM INTO. dst must not exist.
func Snapshot(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", "file:"+src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

func compressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	if err := r2client.Compress(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
