// Package runner executes the external commands that make up a provisioning phase.
//
// Every package install, pip invocation, management command and systemctl
// call goes through a Runner so phases can be dry-run and tested without
// touching the host.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
)

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string      // appended to the current environment
	Dir     string        // working directory, empty = inherit
	Timeout time.Duration // 0 = bounded only by ctx
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?&;|<>(){}[]#~!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Runner runs commands. Implementations must return a *errors.CommandError
// when the process exits non-zero.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns an ExecRunner streaming to the process stdout/stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd, streaming its output. A non-zero exit aborts with a CommandError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	c := r.build(ctx, cmd)
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr
	if err := c.Run(); err != nil {
		return domerrors.NewCommandError(cmd.String(), err)
	}
	return nil
}

// Output executes cmd and returns its stdout. Stderr is streamed as usual.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	c := r.build(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = r.Stderr
	if err := c.Run(); err != nil {
		return stdout.Bytes(), domerrors.NewCommandError(cmd.String(), err)
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	// A killed apt-get can leave children holding the dpkg lock; give them a
	// moment to exit after SIGKILL of the parent.
	c.WaitDelay = 10 * time.Second
	return c
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// DryRunner prints commands instead of running them.
type DryRunner struct {
	Out io.Writer
}

// NewDryRunner returns a DryRunner printing to stdout.
func NewDryRunner() *DryRunner {
	return &DryRunner{Out: os.Stdout}
}

// Run prints cmd.
func (r *DryRunner) Run(_ context.Context, cmd Command) error {
	r.print(cmd)
	return nil
}

// Output prints cmd and returns no output.
func (r *DryRunner) Output(_ context.Context, cmd Command) ([]byte, error) {
	r.print(cmd)
	return nil, nil
}

func (r *DryRunner) print(cmd Command) {
	if cmd.Dir != "" {
		_, _ = fmt.Fprintf(r.Out, "    [dry-run] (cd %s) %s\n", quote(cmd.Dir), cmd)
		return
	}
	_, _ = fmt.Fprintf(r.Out, "    [dry-run] %s\n", cmd)
}
