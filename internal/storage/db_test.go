package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesDirectoryAndFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "history.db")

	db, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, db.Path())
}

func TestNew_ReopenKeepsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, db.StartRun(ctx, &Run{ID: "r1", Phase: "setup", StartedAt: time.Now()}))
	require.NoError(t, db.Close())

	db, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	runs, err := db.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	started := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	run := &Run{ID: "run-1", Phase: "setup", Version: "v1.2.0", StartedAt: started}
	require.NoError(t, db.StartRun(ctx, run))
	assert.Equal(t, "running", run.Status)

	require.NoError(t, db.RecordStep(ctx, &StepRecord{RunID: "run-1", Index: 1, Name: "Creating virtual environment", Status: "ok", Duration: 1500 * time.Millisecond}))
	require.NoError(t, db.RecordStep(ctx, &StepRecord{RunID: "run-1", Index: 2, Name: "Backing up database", Status: "skipped", Detail: "no backup target"}))
	require.NoError(t, db.RecordStep(ctx, &StepRecord{RunID: "run-1", Index: 3, Name: "Configuring nginx", Status: "failed", Duration: time.Second, Detail: "nginx -t exited with status 1"}))

	finished := time.Now().Truncate(time.Millisecond)
	require.NoError(t, db.FinishRun(ctx, "run-1", "aborted", "Configuring nginx", 1, finished))

	runs, err := db.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, "aborted", got.Status)
	assert.Equal(t, "Configuring nginx", got.FailedStep)
	assert.Equal(t, 1, got.ExitCode)
	assert.Equal(t, "v1.2.0", got.Version)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(finished))

	steps, err := db.StepsForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "Creating virtual environment", steps[0].Name)
	assert.Equal(t, 1500*time.Millisecond, steps[0].Duration)
	assert.Equal(t, "no backup target", steps[1].Detail)
	assert.Equal(t, "failed", steps[2].Status)
}

func TestRecentRuns_NewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.StartRun(ctx, &Run{ID: id, Phase: "bootstrap", StartedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	runs, err := db.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestFinishRun_UnknownRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	err := db.FinishRun(context.Background(), "missing", "complete", "", 0, time.Now())
	assert.Error(t, err)
}

func TestRecordStep_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.StartRun(ctx, &Run{ID: "r", Phase: "setup", StartedAt: time.Now()}))

	err := db.RecordStep(ctx, &StepRecord{RunID: "r", Index: 1, Name: "x", Status: "weird"})
	assert.Error(t, err)
}
