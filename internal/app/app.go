// Package app provides application initialization and lifecycle management
// for the provisioning commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/garyellow/medshop-deploy/internal/backup"
	"github.com/garyellow/medshop-deploy/internal/buildinfo"
	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/deploy"
	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/logger"
	"github.com/garyellow/medshop-deploy/internal/metrics"
	"github.com/garyellow/medshop-deploy/internal/probe"
	"github.com/garyellow/medshop-deploy/internal/provision"
	"github.com/garyellow/medshop-deploy/internal/r2client"
	"github.com/garyellow/medshop-deploy/internal/runner"
	"github.com/garyellow/medshop-deploy/internal/sentry"
	"github.com/garyellow/medshop-deploy/internal/storage"
	"github.com/garyellow/medshop-deploy/internal/timeouts"
	"github.com/prometheus/client_golang/prometheus"
)

// Options controls how a command is wired.
type Options struct {
	// Binary names the command in logs and failure reports.
	Binary string

	// DryRun prints commands instead of running them. History and the
	// metrics textfile are not written.
	DryRun bool

	// Out receives operator-facing output, defaults to os.Stdout.
	Out io.Writer

	// LogWriter receives structured logs, defaults to os.Stderr.
	LogWriter io.Writer

	// SkipHistory leaves the run history closed. Commands that only
	// inspect the server set it.
	SkipHistory bool

	// Runner overrides the command runner chosen from DryRun.
	Runner runner.Runner
}

// Application manages the lifecycle and dependencies of one command run.
type Application struct {
	cfg     *config.Config
	opts    Options
	logger  *logger.Logger
	db      *storage.DB // nil when history is unavailable
	metrics *metrics.Metrics
	runner  runner.Runner
	backup  *backup.Manager // nil when no backup target is configured
	ran     bool
}

// CheckRoot refuses to run a phase without root privileges. Dry runs are
// allowed for any user.
func CheckRoot(euid int, dryRun bool) error {
	if dryRun || euid == 0 {
		return nil
	}
	return fmt.Errorf("%w (effective uid %d)", domerrors.ErrNotRoot, euid)
}

// Initialize creates and initializes a new application with all dependencies.
// Optional integrations that fail to start are logged and left disabled.
func Initialize(ctx context.Context, cfg *config.Config, opts Options) (*Application, error) {
	log := logger.NewWithOptions(logger.Options{
		Level:               cfg.LogLevel,
		Writer:              opts.LogWriter,
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "medshop-deploy")
	if opts.Binary != "" {
		log = log.WithField("binary", opts.Binary)
	}
	host, _ := os.Hostname()
	if host != "" {
		log = log.WithField("instance_id", host)
	}
	slog.SetDefault(log.Logger)

	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Debug("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.VersionOrDev(),
		ServerName:  host,
	}); err != nil {
		log.WithError(err).Warn("Error reporting disabled")
	}

	app := &Application{
		cfg:     cfg,
		opts:    opts,
		logger:  log,
		metrics: metrics.New(prometheus.NewRegistry()),
		runner:  opts.Runner,
	}

	if app.runner == nil {
		if opts.DryRun {
			app.runner = &runner.DryRunner{Out: app.out()}
		} else {
			app.runner = runner.NewExecRunner()
		}
	}

	if !opts.DryRun && !opts.SkipHistory {
		db, err := storage.New(ctx, cfg.HistoryPath())
		if err != nil {
			log.WithError(err).WithField("path", cfg.HistoryPath()).Warn("Run history disabled")
		} else {
			app.db = db
		}
	}

	if cfg.R2.Enabled() {
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2.Endpoint,
			AccessKeyID: cfg.R2.AccessKeyID,
			SecretKey:   cfg.R2.SecretAccessKey,
			BucketName:  cfg.R2.Bucket,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("backup: %w", err)
		}
		app.backup = backup.New(client, backup.Config{Prefix: cfg.R2.Prefix, AppName: cfg.AppName})
		log.WithField("bucket", cfg.R2.Bucket).Debug("Database backup enabled")
	}

	return app, nil
}

func (a *Application) out() io.Writer {
	if a.opts.Out == nil {
		return os.Stdout
	}
	return a.opts.Out
}

// Logger returns the application logger.
func (a *Application) Logger() *logger.Logger {
	return a.logger
}

// Deps returns the collaborators the phases run against.
func (a *Application) Deps() deploy.Deps {
	d := deploy.Deps{
		Runner: a.runner,
		Out:    a.out(),
		Log:    a.logger,
		DryRun: a.opts.DryRun,
	}
	if a.backup != nil {
		d.Backup = a.backup
	}
	return d
}

// VerifyDeps returns Deps with an HTTP prober attached.
func (a *Application) VerifyDeps() deploy.Deps {
	d := a.Deps()
	d.Prober = probe.New(a.cfg.Timeouts.Probe, "medshop-deploy/"+buildinfo.VersionOrDev())
	return d
}

// Run executes a phase, recording history and metrics, and reports an
// aborted run to the error tracker.
func (a *Application) Run(ctx context.Context, phase string, steps []provision.Step) error {
	seq := provision.NewSequencer(a.logger)
	seq.Out = a.out()
	seq.Version = buildinfo.VersionOrDev()
	seq.Observer = a.metrics
	if a.db != nil {
		seq.History = a.db
	}

	if a.opts.DryRun {
		_, _ = fmt.Fprintf(a.out(), "==> %s (dry run, nothing will be changed)\n", phase)
	}

	a.ran = true
	res, err := seq.Run(ctx, phase, steps)
	if err != nil {
		sentry.CaptureRunFailure(err, phase, res.RunID)
	}
	return err
}

// Close writes the metrics textfile after a phase ran, flushes pending
// failure reports and closes the history database.
func (a *Application) Close() {
	if a.ran && a.cfg.MetricsTextfile != "" && !a.opts.DryRun {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			a.logger.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if sentry.IsEnabled() && !sentry.Flush(timeouts.ErrorReportFlush) {
		a.logger.Warn("Error reports not delivered before timeout")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close history database")
		}
		a.db = nil
	}
}
