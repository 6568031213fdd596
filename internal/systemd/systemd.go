// Package systemd renders and controls the application's service unit.
package systemd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/coreos/go-systemd/v22/util"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/runner"
)

// UnitMode is the permission the unit file is written with.
const UnitMode = 0o644

// Spec describes the gunicorn service.
type Spec struct {
	Description    string
	User           string
	Group          string
	AppDir         string
	EnvFile        string
	GunicornConf   string
	WSGIModule     string
	GunicornBinary string // empty = AppDir/venv/bin/gunicorn
}

// Options returns the unit's directives in file order.
func (s Spec) Options() []*unit.UnitOption {
	bin := s.GunicornBinary
	if bin == "" {
		bin = filepath.Join(s.AppDir, "venv", "bin", "gunicorn")
	}
	exec := strings.Join([]string{bin, "--config", s.GunicornConf, s.WSGIModule}, " ")

	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", s.Description),
		unit.NewUnitOption("Unit", "After", "network.target"),

		unit.NewUnitOption("Service", "User", s.User),
		unit.NewUnitOption("Service", "Group", s.Group),
		unit.NewUnitOption("Service", "RuntimeDirectory", "gunicorn"),
		unit.NewUnitOption("Service", "WorkingDirectory", s.AppDir),
		unit.NewUnitOption("Service", "EnvironmentFile", s.EnvFile),
		unit.NewUnitOption("Service", "ExecStart", exec),
		unit.NewUnitOption("Service", "ExecReload", "/bin/kill -s HUP $MAINPID"),
		unit.NewUnitOption("Service", "KillMode", "mixed"),
		unit.NewUnitOption("Service", "TimeoutStopSec", "5"),
		unit.NewUnitOption("Service", "PrivateTmp", "true"),
		unit.NewUnitOption("Service", "Restart", "on-failure"),

		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
}

// Render serializes the unit file.
func Render(s Spec) ([]byte, error) {
	data, err := io.ReadAll(unit.Serialize(s.Options()))
	if err != nil {
		return nil, fmt.Errorf("serialize unit: %w", err)
	}
	return data, nil
}

// Parse reads a unit file back into its directives.
func Parse(r io.Reader) ([]*unit.UnitOption, error) {
	opts, err := unit.DeserializeOptions(r)
	if err != nil {
		return nil, fmt.Errorf("parse unit: %w", err)
	}
	return opts, nil
}

// Lookup returns the first value of section/name, if any.
func Lookup(opts []*unit.UnitOption, section, name string) (string, bool) {
	for _, o := range opts {
		if o.Section == section && o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}

// IsRunning reports whether systemd is the host's init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// Manager installs and controls one unit through systemctl.
type Manager struct {
	Runner  runner.Runner
	Name    string // e.g. medshop.service
	Path    string // unit file path
	Timeout time.Duration
}

// Install writes the unit file.
func (m *Manager) Install(s Spec) error {
	data, err := Render(s)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(m.Path, data, UnitMode); err != nil {
		return fmt.Errorf("install unit %s: %w", m.Name, err)
	}
	return nil
}

// Activate reloads unit definitions, enables the unit at boot and
// (re)starts it so a changed configuration takes effect.
func (m *Manager) Activate(ctx context.Context) error {
	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", m.Name},
		{"restart", m.Name},
	} {
		if err := m.systemctl(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// Enable enables a unit at boot and starts it now.
func (m *Manager) Enable(ctx context.Context, name string) error {
	return m.systemctl(ctx, "enable", "--now", name)
}

// IsActive reports whether the unit is active. A unit that is not active
// yields ErrServiceNotActive carrying the reported state.
func (m *Manager) IsActive(ctx context.Context, name string) error {
	out, err := m.Runner.Output(ctx, m.command("is-active", name))
	state := strings.TrimSpace(string(out))
	if err != nil {
		if state == "" {
			state = "unknown"
		}
		return fmt.Errorf("%w: %s is %s", domerrors.ErrServiceNotActive, name, state)
	}
	if state != "" && state != "active" {
		return fmt.Errorf("%w: %s is %s", domerrors.ErrServiceNotActive, name, state)
	}
	return nil
}

func (m *Manager) systemctl(ctx context.Context, args ...string) error {
	return m.Runner.Run(ctx, m.command(args...))
}

func (m *Manager) command(args ...string) runner.Command {
	return runner.Command{Name: "systemctl", Args: args, Timeout: m.Timeout}
}
