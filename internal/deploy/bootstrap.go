package deploy

import (
	"context"
	"fmt"
	"slices"
	"text/template"

	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/provision"
)

// Package sets installed during bootstrap.
var (
	PythonPackages     = []string{"python3", "python3-pip", "python3-venv", "python3-dev"}
	ProxyPackages      = []string{"nginx"}
	DBPackages         = []string{"postgresql", "postgresql-contrib"}
	SupervisorPackages = []string{"supervisor"}
	BuildPackages      = []string{"build-essential", "libpq-dev", "git", "curl"}
)

// Bootstrap returns the server bootstrap steps.
func Bootstrap(cfg *config.Config, d Deps) []provision.Step {
	pkgs := d.apt(cfg)
	install := func(names ...string) func(context.Context) error {
		return func(ctx context.Context) error {
			return pkgs.Install(ctx, names...)
		}
	}

	return []provision.Step{
		{Name: "Update package index", Run: pkgs.Update},
		{Name: "Upgrade installed packages", Run: pkgs.Upgrade},
		{Name: "Install Python runtime", Run: install(PythonPackages...)},
		{Name: "Install nginx", Run: install(ProxyPackages...)},
		{Name: "Install PostgreSQL", Run: install(DBPackages...)},
		{Name: "Install supervisor", Run: install(SupervisorPackages...)},
		{Name: "Install build tools", Run: install(slices.Concat(BuildPackages, cfg.ExtraPackages)...)},
		{Name: "Create application directory", Run: d.ensureDir(cfg, cfg.AppDir, 0o755)},
		{Name: "Create log directory", Run: d.ensureDir(cfg, cfg.LogDir, 0o755)},
		{Name: "Set application directory ownership", Run: d.applyTree(cfg, cfg.AppDir, fsutil.Modes{})},
		{Name: "Set log directory ownership", Run: d.applyTree(cfg, cfg.LogDir, fsutil.Modes{})},
		{Name: "Enable nginx", Run: func(ctx context.Context) error {
			return d.units(cfg).Enable(ctx, "nginx")
		}},
		{Name: "Print next steps", Run: func(context.Context) error {
			return PrintNextSteps(d, cfg)
		}},
	}
}

var nextStepsTemplate = template.Must(template.New("next").Parse(`
Server bootstrap complete. Next steps:
  1. Upload the application to {{ .AppDir }} (manage.py and requirements.txt at its root).
  2. Set MEDSHOP_PUBLIC_HOST in {{ .DeployEnv }} or the environment.
  3. Run the application setup: sudo setup
  4. Create an admin account:
       cd {{ .AppDir }} && sudo -u {{ .AppUser }} venv/bin/python manage.py createsuperuser
  5. Optional: create a PostgreSQL database and uncomment the DB_* lines in {{ .EnvFile }}.

`))

// PrintNextSteps prints the manual follow-up after bootstrap.
func PrintNextSteps(d Deps, cfg *config.Config) error {
	err := nextStepsTemplate.Execute(d.out(), map[string]string{
		"AppDir":    cfg.AppDir,
		"AppUser":   cfg.AppUser,
		"EnvFile":   cfg.EnvFilePath(),
		"DeployEnv": config.DefaultDeployEnvFile,
	})
	if err != nil {
		return fmt.Errorf("print next steps: %w", err)
	}
	return nil
}
