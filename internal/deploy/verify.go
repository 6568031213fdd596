package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/envfile"
	"github.com/garyellow/medshop-deploy/internal/nginx"
	"github.com/garyellow/medshop-deploy/internal/systemd"
)

// Check is one post-deploy assertion.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
	// Advisory checks report failures without failing verification.
	Advisory bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string
	Err      error
	Advisory bool
}

// ErrChecksFailed is returned by RunChecks when a required check fails.
var ErrChecksFailed = errors.New("verification failed")

// Verify returns the checks describing a healthy deployment: the env file
// holds a secret, nginx serves the app's static root and proxies to it, and
// the service is running.
func Verify(cfg *config.Config, d Deps) []Check {
	checks := []Check{
		{Name: "Environment file", Run: func(context.Context) error {
			return checkEnvFile(cfg)
		}},
		{Name: "nginx site", Run: func(context.Context) error {
			return checkSite(cfg)
		}},
		{Name: "nginx configuration", Run: func(ctx context.Context) error {
			return d.proxy(cfg).Validate(ctx)
		}},
		{Name: "systemd unit", Run: func(context.Context) error {
			return checkUnit(cfg)
		}},
		{Name: "Service active", Run: func(ctx context.Context) error {
			return d.units(cfg).IsActive(ctx, cfg.UnitName())
		}},
		{Name: "Django deployment checks", Advisory: true, Run: func(ctx context.Context) error {
			out, err := d.project(cfg).CheckDeploy(ctx)
			if err != nil {
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
			}
			return nil
		}},
	}
	if d.Prober != nil {
		checks = append(checks, Check{Name: "HTTP probe", Run: func(ctx context.Context) error {
			report, err := d.Prober.Probe(ctx, cfg.EffectiveProbeURL())
			if err != nil {
				return err
			}
			if len(report.Assets) == 0 {
				d.log().WithModule("probe").WithField("url", report.URL).Warn("Probe page references no static assets")
			}
			return nil
		}})
	}
	return checks
}

// RunChecks runs every check, printing one line each. It returns
// ErrChecksFailed joined with each required failure.
func RunChecks(ctx context.Context, out io.Writer, checks []Check) ([]CheckResult, error) {
	results := make([]CheckResult, 0, len(checks))
	var errs []error
	for _, c := range checks {
		err := c.Run(ctx)
		results = append(results, CheckResult{Name: c.Name, Err: err, Advisory: c.Advisory})

		switch {
		case err == nil:
			_, _ = fmt.Fprintf(out, "[ OK ] %s\n", c.Name)
		case c.Advisory:
			_, _ = fmt.Fprintf(out, "[WARN] %s: %v\n", c.Name, err)
		default:
			_, _ = fmt.Fprintf(out, "[FAIL] %s: %v\n", c.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	if len(errs) > 0 {
		return results, errors.Join(append([]error{ErrChecksFailed}, errs...)...)
	}
	return results, nil
}

func checkEnvFile(cfg *config.Config) error {
	path := cfg.EnvFilePath()
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0o007 != 0 {
		return fmt.Errorf("%s is world-accessible (mode %04o)", path, perm)
	}
	values, err := envfile.Read(path)
	if err != nil {
		return err
	}
	return envfile.Validate(values, cfg.PublicHost)
}

func checkSite(cfg *config.Config) error {
	root, err := nginx.SiteRoot(cfg.NginxSitePath())
	if err != nil {
		return err
	}
	want := strings.TrimRight(cfg.StaticRoot(), "/") + "/"
	if root != want {
		return fmt.Errorf("static alias is %s, want %s", root, want)
	}

	target, err := os.Readlink(cfg.NginxEnabledPath())
	if err != nil {
		return fmt.Errorf("site not enabled: %w", err)
	}
	if target != cfg.NginxSitePath() {
		return fmt.Errorf("%s points at %s, want %s", cfg.NginxEnabledPath(), target, cfg.NginxSitePath())
	}
	return nil
}

func checkUnit(cfg *config.Config) error {
	f, err := os.Open(cfg.UnitPath())
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	opts, err := systemd.Parse(f)
	if err != nil {
		return err
	}
	if dir, _ := systemd.Lookup(opts, "Service", "WorkingDirectory"); dir != cfg.AppDir {
		return fmt.Errorf("WorkingDirectory is %q, want %q", dir, cfg.AppDir)
	}
	if env, _ := systemd.Lookup(opts, "Service", "EnvironmentFile"); env != cfg.EnvFilePath() {
		return fmt.Errorf("EnvironmentFile is %q, want %q", env, cfg.EnvFilePath())
	}
	return nil
}
