// Package deploy defines the provisioning phases as ordered step lists.
//
// Bootstrap prepares a fresh server. Setup installs the uploaded
// application and brings the service up. Verify inspects the result.
package deploy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/garyellow/medshop-deploy/internal/apt"
	"github.com/garyellow/medshop-deploy/internal/backup"
	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/django"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/logger"
	"github.com/garyellow/medshop-deploy/internal/nginx"
	"github.com/garyellow/medshop-deploy/internal/probe"
	"github.com/garyellow/medshop-deploy/internal/runner"
	"github.com/garyellow/medshop-deploy/internal/systemd"
	"github.com/garyellow/medshop-deploy/internal/venv"
)

// Phase names as recorded in history and metrics.
const (
	PhaseBootstrap = "bootstrap"
	PhaseSetup     = "setup"
)

// Backuper uploads a copy of the application database. *backup.Manager
// satisfies it.
type Backuper interface {
	Run(ctx context.Context, dbPath string) (*backup.Result, error)
}

// Deps are the collaborators a phase runs against.
type Deps struct {
	Runner runner.Runner
	Out    io.Writer // operator-facing output, defaults to os.Stdout
	Log    *logger.Logger

	// DryRun skips filesystem writes. Runner is expected to be a DryRunner.
	DryRun bool

	// LookupOwner resolves the application owner, defaults to fsutil.LookupOwner.
	LookupOwner func(user, group string) (fsutil.Owner, error)

	// Backup is nil when no backup target is configured.
	Backup Backuper

	// Prober is used by Verify. Nil disables the HTTP check.
	Prober *probe.Prober
}

func (d Deps) out() io.Writer {
	if d.Out == nil {
		return os.Stdout
	}
	return d.Out
}

func (d Deps) log() *logger.Logger {
	if d.Log == nil {
		return logger.NewWithWriter("error", io.Discard)
	}
	return d.Log
}

func (d Deps) owner(cfg *config.Config) (fsutil.Owner, error) {
	lookup := d.LookupOwner
	if lookup == nil {
		lookup = fsutil.LookupOwner
	}
	return lookup(cfg.AppUser, cfg.AppGroup)
}

// wouldDo prints the filesystem change a dry run skips.
func (d Deps) wouldDo(format string, args ...any) {
	_, _ = fmt.Fprintf(d.out(), "    [dry-run] would "+format+"\n", args...)
}

func (d Deps) apt(cfg *config.Config) *apt.Client {
	return &apt.Client{
		Runner:         d.Runner,
		IndexTimeout:   cfg.Timeouts.PackageIndex,
		InstallTimeout: cfg.Timeouts.PackageInstall,
	}
}

func (d Deps) venv(cfg *config.Config) *venv.Env {
	return &venv.Env{
		Dir:            cfg.VenvDir(),
		Python:         cfg.Python,
		Runner:         d.Runner,
		CreateTimeout:  cfg.Timeouts.VenvCreate,
		InstallTimeout: cfg.Timeouts.DependencyInstall,
	}
}

// project returns the Django project. A dry run may precede the env file,
// so the file is only loaded for real runs.
func (d Deps) project(cfg *config.Config) *django.Project {
	p := &django.Project{
		Dir:     cfg.AppDir,
		Python:  cfg.VenvBin("python"),
		EnvFile: cfg.EnvFilePath(),
		Runner:  d.Runner,
		Timeout: cfg.Timeouts.ManageCommand,
	}
	if d.DryRun {
		p.EnvFile = ""
	}
	return p
}

func (d Deps) units(cfg *config.Config) *systemd.Manager {
	return &systemd.Manager{
		Runner:  d.Runner,
		Name:    cfg.UnitName(),
		Path:    cfg.UnitPath(),
		Timeout: cfg.Timeouts.ServiceControl,
	}
}

func (d Deps) proxy(cfg *config.Config) *nginx.Proxy {
	p := &nginx.Proxy{
		Runner:      d.Runner,
		SitePath:    cfg.NginxSitePath(),
		EnabledPath: cfg.NginxEnabledPath(),
		Timeout:     cfg.Timeouts.ProxyValidate,
	}
	if cfg.NginxDisableDefault {
		p.DefaultEnabled = cfg.NginxSitesEnabled + "/default"
	}
	return p
}

// ensureDir returns a step creating dir owned by the application user.
func (d Deps) ensureDir(cfg *config.Config, dir string, mode fs.FileMode) func(context.Context) error {
	return func(context.Context) error {
		if d.DryRun {
			d.wouldDo("create %s (mode %04o, owner %s:%s)", dir, mode, cfg.AppUser, cfg.AppGroup)
			return nil
		}
		owner, err := d.owner(cfg)
		if err != nil {
			return err
		}
		return fsutil.EnsureDir(dir, mode, owner)
	}
}

// applyTree returns a step setting ownership (and modes, when non-zero) on
// everything under root.
func (d Deps) applyTree(cfg *config.Config, root string, modes fsutil.Modes) func(context.Context) error {
	return func(context.Context) error {
		if d.DryRun {
			d.wouldDo("chown -R %s:%s %s", cfg.AppUser, cfg.AppGroup, root)
			return nil
		}
		owner, err := d.owner(cfg)
		if err != nil {
			return err
		}
		return fsutil.ApplyTree(root, owner, modes)
	}
}
