package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garyellow/medshop-deploy/internal/config"
	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/provision"
	"github.com/garyellow/medshop-deploy/internal/runner"
	"github.com/garyellow/medshop-deploy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName:         "medshop",
		AppDir:          filepath.Join(dir, "app"),
		StateDir:        filepath.Join(dir, "state"),
		MetricsTextfile: filepath.Join(dir, "textfile", "medshop_deploy.prom"),
		LogLevel:        "error",
	}
}

func TestCheckRoot(t *testing.T) {
	tests := []struct {
		name    string
		euid    int
		dryRun  bool
		wantErr bool
	}{
		{"root", 0, false, false},
		{"unprivileged", 1000, false, true},
		{"unprivileged dry run", 1000, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRoot(tt.euid, tt.dryRun)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domerrors.IsNotRoot(err))
				assert.Equal(t, 1, domerrors.ExitCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestInitialize_DryRun(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	app, err := Initialize(context.Background(), cfg, Options{Binary: "setup", DryRun: true, Out: &out, LogWriter: io.Discard})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.db, "dry run must not open history")
	d := app.Deps()
	assert.True(t, d.DryRun)
	assert.IsType(t, &runner.DryRunner{}, d.Runner)
	assert.Nil(t, d.Backup)
	assert.Nil(t, d.Prober)

	err = app.Run(context.Background(), "setup", []provision.Step{
		{Name: "Echo", Run: func(ctx context.Context) error {
			return d.Runner.Run(ctx, runner.Command{Name: "echo", Args: []string{"hello"}})
		}},
	})
	require.NoError(t, err)
	app.Close()

	assert.Contains(t, out.String(), "dry run")
	assert.Contains(t, out.String(), "[dry-run] echo hello")
	assert.NoFileExists(t, cfg.MetricsTextfile)
	assert.NoDirExists(t, cfg.StateDir)
}

func TestRun_RecordsHistoryAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	rec := runner.NewRecorder()

	app, err := Initialize(context.Background(), cfg, Options{Binary: "setup", Out: io.Discard, LogWriter: io.Discard, Runner: rec})
	require.NoError(t, err)
	require.NotNil(t, app.db)

	err = app.Run(context.Background(), "setup", []provision.Step{
		{Name: "Collect static files", Run: func(ctx context.Context) error {
			return rec.Run(ctx, runner.Command{Name: "python", Args: []string{"manage.py", "collectstatic"}})
		}},
		{Name: "Back up database", Run: func(context.Context) error {
			return provision.Skip("no backup target configured")
		}},
	})
	require.NoError(t, err)
	app.Close()

	assert.True(t, rec.Ran("python manage.py collectstatic"))

	data, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `medshop_deploy_steps_total{phase="setup",status="skipped"} 1`)
	assert.Contains(t, string(data), `medshop_deploy_steps_total{phase="setup",status="ok"} 1`)

	db, err := storage.New(context.Background(), cfg.HistoryPath())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	runs, err := db.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, provision.StatusComplete, runs[0].Status)
	assert.Equal(t, "setup", runs[0].Phase)
}

func TestRun_AbortedRun(t *testing.T) {
	cfg := testConfig(t)
	rec := runner.NewRecorder()
	rec.FailOn["apt-get install nginx"] = 100

	app, err := Initialize(context.Background(), cfg, Options{Binary: "bootstrap", Out: io.Discard, LogWriter: io.Discard, Runner: rec})
	require.NoError(t, err)

	called := false
	err = app.Run(context.Background(), "bootstrap", []provision.Step{
		{Name: "Install nginx", Run: func(ctx context.Context) error {
			return rec.Run(ctx, runner.Command{Name: "apt-get", Args: []string{"install", "nginx"}})
		}},
		{Name: "Enable nginx", Run: func(context.Context) error {
			called = true
			return nil
		}},
	})
	app.Close()

	require.Error(t, err)
	assert.False(t, called, "steps after a failure must not run")
	assert.Equal(t, 100, domerrors.ExitCode(err))
	assert.True(t, strings.HasPrefix(err.Error(), "bootstrap:"))

	data, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `medshop_deploy_steps_total{phase="bootstrap",status="failed"} 1`)
}

func TestInitialize_BackupTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.R2 = config.R2Config{
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "medshop-backups",
		Prefix:          "db",
	}

	app, err := Initialize(context.Background(), cfg, Options{DryRun: true, Out: io.Discard, LogWriter: io.Discard})
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Deps().Backup)
	assert.NotNil(t, app.VerifyDeps().Prober)
}

func TestClose_InspectOnly(t *testing.T) {
	cfg := testConfig(t)

	app, err := Initialize(context.Background(), cfg, Options{Binary: "verify", SkipHistory: true, Out: io.Discard, LogWriter: io.Discard})
	require.NoError(t, err)
	app.Close()

	assert.NoFileExists(t, cfg.MetricsTextfile, "no phase ran, previous metrics must be kept")
	assert.NoFileExists(t, cfg.HistoryPath())
}
