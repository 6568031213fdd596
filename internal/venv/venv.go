// Package venv manages the application's Python virtual environment.
package venv

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/runner"
)

// Env is a virtual environment rooted at Dir.
type Env struct {
	Dir            string
	Python         string // base interpreter used by Create
	Runner         runner.Runner
	CreateTimeout  time.Duration
	InstallTimeout time.Duration
}

// Bin returns the path of an executable inside the environment.
func (e *Env) Bin(name string) string {
	return filepath.Join(e.Dir, "bin", name)
}

// Exists reports whether the environment's interpreter is present.
func (e *Env) Exists() (bool, error) {
	return fsutil.Exists(e.Bin("python"))
}

// Create builds the environment unless it already exists. It reports whether
// anything was created.
func (e *Env) Create(ctx context.Context) (bool, error) {
	ok, err := e.Exists()
	if err != nil {
		return false, fmt.Errorf("check venv: %w", err)
	}
	if ok {
		return false, nil
	}
	err = e.Runner.Run(ctx, runner.Command{
		Name:    e.Python,
		Args:    []string{"-m", "venv", e.Dir},
		Timeout: e.CreateTimeout,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// InstallRequirements upgrades pip, installs the requirements file and makes
// sure gunicorn is present even when the manifest omits it.
func (e *Env) InstallRequirements(ctx context.Context, requirements string) error {
	pip := e.Bin("pip")
	cmds := []runner.Command{
		{Name: pip, Args: []string{"install", "--upgrade", "pip"}},
		{Name: pip, Args: []string{"install", "-r", requirements}},
		{Name: pip, Args: []string{"install", "gunicorn"}},
	}
	for _, cmd := range cmds {
		cmd.Timeout = e.InstallTimeout
		if err := e.Runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}
