package deploy

import (
	"context"
	"fmt"

	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/envfile"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/gunicorn"
	"github.com/garyellow/medshop-deploy/internal/nginx"
	"github.com/garyellow/medshop-deploy/internal/provision"
	"github.com/garyellow/medshop-deploy/internal/systemd"
)

// GunicornConfigMode is the permission gunicorn.conf.py is written with.
const GunicornConfigMode = 0o644

// Setup returns the application setup steps.
func Setup(cfg *config.Config, d Deps) []provision.Step {
	s := &setup{cfg: cfg, d: d}
	return []provision.Step{
		{Name: "Create virtual environment", Run: s.createVenv},
		{Name: "Install dependencies", Run: s.installDependencies},
		{Name: "Generate environment file", Run: s.ensureEnvFile},
		{Name: "Back up database", Run: s.backupDatabase},
		{Name: "Collect static files", Run: s.collectStatic},
		{Name: "Apply database migrations", Run: s.migrate},
		{Name: "Set ownership and permissions", Run: s.applyPermissions},
		{Name: "Install gunicorn service", Run: s.installService},
		{Name: "Configure nginx", Run: s.configureProxy},
		{Name: "Start service", Run: s.startService},
	}
}

type setup struct {
	cfg *config.Config
	d   Deps
}

func (s *setup) createVenv(ctx context.Context) error {
	created, err := s.d.venv(s.cfg).Create(ctx)
	if err != nil {
		return err
	}
	if !created {
		return provision.Skip(s.cfg.VenvDir() + " already exists")
	}
	return nil
}

func (s *setup) installDependencies(ctx context.Context) error {
	if !s.d.DryRun {
		ok, err := fsutil.Exists(s.cfg.RequirementsPath())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s not found: upload the application first", s.cfg.RequirementsPath())
		}
	}
	return s.d.venv(s.cfg).InstallRequirements(ctx, s.cfg.RequirementsPath())
}

func (s *setup) ensureEnvFile(context.Context) error {
	path := s.cfg.EnvFilePath()
	if s.d.DryRun {
		ok, err := fsutil.Exists(path)
		if err != nil {
			return err
		}
		if ok {
			return provision.Skip(path + " exists, keeping SECRET_KEY")
		}
		s.d.wouldDo("create %s with a new SECRET_KEY (mode %04o)", path, envfile.Mode)
		return nil
	}

	owner, err := s.d.owner(s.cfg)
	if err != nil {
		return err
	}
	res, err := envfile.Ensure(path, envfile.Params{
		PublicHost:   s.cfg.PublicHost,
		AllowedHosts: s.cfg.AllowedHosts,
	}, owner)
	if err != nil {
		return err
	}
	if !res.Created {
		return provision.Skip(path + " exists, keeping SECRET_KEY")
	}
	s.d.log().WithModule("envfile").WithField("path", path).Info("Generated environment file")
	return nil
}

func (s *setup) backupDatabase(ctx context.Context) error {
	if s.d.Backup == nil {
		return provision.Skip("no backup target configured")
	}
	dbPath := s.cfg.DatabasePath()
	ok, err := fsutil.Exists(dbPath)
	if err != nil {
		return err
	}
	if !ok {
		return provision.Skip("no database at " + dbPath)
	}
	if s.d.DryRun {
		s.d.wouldDo("upload a compressed copy of %s", dbPath)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.BackupUpload)
	defer cancel()
	res, err := s.d.Backup.Run(ctx, dbPath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.d.out(), "    uploaded %s (%d bytes)\n", res.Key, res.Size)
	return nil
}

func (s *setup) collectStatic(ctx context.Context) error {
	return s.d.project(s.cfg).CollectStatic(ctx)
}

func (s *setup) migrate(ctx context.Context) error {
	p := s.d.project(s.cfg)
	if err := p.Migrate(ctx, s.cfg.Timeouts.Migrate); err != nil {
		return err
	}
	if s.cfg.SeedSampleData {
		return p.SeedSampleData(ctx)
	}
	return nil
}

func (s *setup) applyPermissions(ctx context.Context) error {
	if s.d.DryRun {
		s.d.wouldDo("chown -R %s:%s %s (dirs 0755, files 0644)", s.cfg.AppUser, s.cfg.AppGroup, s.cfg.AppDir)
		s.d.wouldDo("chmod %04o %s", envfile.Mode, s.cfg.EnvFilePath())
		return nil
	}

	owner, err := s.d.owner(s.cfg)
	if err != nil {
		return err
	}
	if err := fsutil.ApplyTree(s.cfg.AppDir, owner, fsutil.DefaultModes); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(s.cfg.LogDir, 0o755, owner); err != nil {
		return err
	}
	if err := fsutil.ApplyTree(s.cfg.LogDir, owner, fsutil.Modes{}); err != nil {
		return err
	}
	// The tree pass opened the env file up to 0644.
	return envfile.Tighten(s.cfg.EnvFilePath(), owner)
}

func (s *setup) installService(context.Context) error {
	conf, err := gunicorn.Render(gunicorn.Settings{
		AppName: s.cfg.AppName,
		Bind:    s.cfg.Bind,
		Workers: s.cfg.Workers,
		LogDir:  s.cfg.LogDir,
		User:    s.cfg.AppUser,
		Group:   s.cfg.AppGroup,
	})
	if err != nil {
		return err
	}
	spec := s.unitSpec()

	if s.d.DryRun {
		s.d.wouldDo("write %s", s.cfg.GunicornConfigPath())
		s.d.wouldDo("write %s", s.cfg.UnitPath())
		return nil
	}

	owner, err := s.d.owner(s.cfg)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.cfg.GunicornConfigPath(), conf, GunicornConfigMode); err != nil {
		return fmt.Errorf("write gunicorn config: %w", err)
	}
	if err := fsutil.ApplyTree(s.cfg.GunicornConfigPath(), owner, fsutil.Modes{}); err != nil {
		return err
	}
	return s.d.units(s.cfg).Install(spec)
}

func (s *setup) unitSpec() systemd.Spec {
	return systemd.Spec{
		Description:    s.cfg.AppName + " gunicorn daemon",
		User:           s.cfg.AppUser,
		Group:          s.cfg.AppGroup,
		AppDir:         s.cfg.AppDir,
		EnvFile:        s.cfg.EnvFilePath(),
		GunicornConf:   s.cfg.GunicornConfigPath(),
		WSGIModule:     s.cfg.WSGIModule,
		GunicornBinary: s.cfg.VenvBin("gunicorn"),
	}
}

func (s *setup) site() nginx.Site {
	return nginx.Site{
		ServerNames: s.cfg.EffectiveServerNames(),
		MaxBodySize: s.cfg.NginxMaxBodySize,
		StaticRoot:  s.cfg.StaticRoot(),
		MediaRoot:   s.cfg.MediaRoot(),
		Upstream:    s.cfg.Bind,
	}
}

func (s *setup) configureProxy(ctx context.Context) error {
	p := s.d.proxy(s.cfg)
	if s.d.DryRun {
		s.d.wouldDo("write %s and link it from %s", p.SitePath, p.EnabledPath)
		if p.DefaultEnabled != "" {
			s.d.wouldDo("remove %s", p.DefaultEnabled)
		}
		return p.ValidateAndReload(ctx)
	}
	return p.Install(ctx, s.site())
}

func (s *setup) startService(ctx context.Context) error {
	units := s.d.units(s.cfg)
	if err := units.Activate(ctx); err != nil {
		return err
	}
	if err := units.IsActive(ctx, units.Name); err != nil {
		return fmt.Errorf("%w (inspect with: journalctl -u %s)", err, units.Name)
	}
	return nil
}
