// Command verify inspects a deployed server: environment file, nginx site
// and configuration, systemd unit and service state, and an HTTP probe of
// the public page and its static assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyellow/medshop-deploy/internal/app"
	"github.com/garyellow/medshop-deploy/internal/buildinfo"
	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/deploy"
	"github.com/garyellow/medshop-deploy/internal/systemd"
)

// CLI flags
var (
	noProbeFlag = flag.Bool("no-probe", false, "Skip the HTTP probe")
	urlFlag     = flag.String("url", "", "Probe this URL instead of MEDSHOP_PROBE_URL")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(buildinfo.String("verify"))
		return
	}

	if *urlFlag != "" {
		_ = os.Setenv(config.EnvProbeURL, *urlFlag)
	}
	cfg, err := config.LoadForMode(config.VerifyMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Initialize(ctx, cfg, app.Options{Binary: "verify", SkipHistory: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if !systemd.IsRunning() {
		application.Logger().Warn("systemd is not the init system, service checks will fail")
	}

	d := application.VerifyDeps()
	if *noProbeFlag {
		d.Prober = nil
	}

	fmt.Printf("==> Verifying %s on %s\n", cfg.AppName, cfg.EffectiveProbeURL())
	results, err := deploy.RunChecks(ctx, os.Stdout, deploy.Verify(cfg, d))

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err == nil:
			passed++
		case r.Advisory:
			warned++
		default:
			failed++
		}
	}
	fmt.Printf("\nSummary: %d passed, %d failed, %d warnings\n", passed, failed, warned)

	if err != nil {
		application.Close()
		stop()
		os.Exit(1)
	}
}
