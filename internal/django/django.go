// Package django runs the application's management commands.
package django

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/medshop-deploy/internal/envfile"
	"github.com/garyellow/medshop-deploy/internal/runner"
)

// Project locates manage.py and the interpreter that runs it.
type Project struct {
	Dir     string // directory holding manage.py
	Python  string // venv interpreter
	EnvFile string // loaded into every command's environment, empty = none
	Runner  runner.Runner
	Timeout time.Duration
}

// Manage runs "python manage.py args..." in the project directory.
func (p *Project) Manage(ctx context.Context, timeout time.Duration, args ...string) error {
	cmd, err := p.command(timeout, args)
	if err != nil {
		return err
	}
	return p.Runner.Run(ctx, cmd)
}

// CollectStatic gathers static assets into STATIC_ROOT, replacing stale files.
func (p *Project) CollectStatic(ctx context.Context) error {
	return p.Manage(ctx, p.Timeout, "collectstatic", "--noinput", "--clear")
}

// Migrate applies pending schema migrations.
func (p *Project) Migrate(ctx context.Context, timeout time.Duration) error {
	return p.Manage(ctx, timeout, "migrate", "--noinput")
}

// SeedSampleData loads the catalogue fixtures.
func (p *Project) SeedSampleData(ctx context.Context) error {
	return p.Manage(ctx, p.Timeout, "create_sample_data")
}

// CheckDeploy runs Django's deployment checklist and returns its output.
func (p *Project) CheckDeploy(ctx context.Context) ([]byte, error) {
	cmd, err := p.command(p.Timeout, []string{"check", "--deploy"})
	if err != nil {
		return nil, err
	}
	return p.Runner.Output(ctx, cmd)
}

func (p *Project) command(timeout time.Duration, args []string) (runner.Command, error) {
	cmd := runner.Command{
		Name:    p.Python,
		Args:    append([]string{"manage.py"}, args...),
		Dir:     p.Dir,
		Timeout: timeout,
	}
	if p.EnvFile != "" {
		values, err := envfile.Read(p.EnvFile)
		if err != nil {
			return cmd, fmt.Errorf("load application environment: %w", err)
		}
		cmd.Env = envfile.Environ(values)
	}
	return cmd, nil
}
