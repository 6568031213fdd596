// Package apt drives apt-get non-interactively.
package apt

import (
	"context"
	"time"

	"github.com/garyellow/medshop-deploy/internal/runner"
)

// aptGetArgs keeps apt-get from ever blocking on a prompt: existing
// config files are kept and every question is answered yes.
var aptGetArgs = []string{
	"--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io",
	"--assume-yes",
	"--quiet",
}

var aptGetEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Client issues apt-get commands through a Runner.
type Client struct {
	Runner         runner.Runner
	IndexTimeout   time.Duration
	InstallTimeout time.Duration
}

// Update refreshes the package index.
func (c *Client) Update(ctx context.Context) error {
	return c.Runner.Run(ctx, c.command(c.IndexTimeout, "update"))
}

// Upgrade upgrades every installed package.
func (c *Client) Upgrade(ctx context.Context) error {
	return c.Runner.Run(ctx, c.command(c.InstallTimeout, "upgrade"))
}

// Install installs packages. Already-installed packages are a no-op for apt.
func (c *Client) Install(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	return c.Runner.Run(ctx, c.command(c.InstallTimeout, "install", packages...))
}

func (c *Client) command(timeout time.Duration, verb string, extra ...string) runner.Command {
	args := make([]string, 0, len(aptGetArgs)+1+len(extra))
	args = append(args, aptGetArgs...)
	args = append(args, verb)
	args = append(args, extra...)
	return runner.Command{
		Name:    "apt-get",
		Args:    args,
		Env:     aptGetEnv,
		Timeout: timeout,
	}
}
