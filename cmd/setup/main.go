// Command setup installs an uploaded application tree: virtual
// environment, dependencies, environment file, static files, migrations,
// the gunicorn service and the nginx site.
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
	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
)

// CLI flags
var (
	dryRunFlag  = flag.Bool("dry-run", false, "Print every command instead of running it")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(buildinfo.String("setup"))
		return
	}

	cfg, err := config.LoadForMode(config.SetupMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := app.CheckRoot(os.Geteuid(), *dryRunFlag); err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	application, err := app.Initialize(ctx, cfg, app.Options{Binary: "setup", DryRun: *dryRunFlag})
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("==> Setting up %s in %s\n", cfg.AppName, cfg.AppDir)
	err = application.Run(ctx, deploy.PhaseSetup, deploy.Setup(cfg, application.Deps()))
	application.Close()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "\nsetup failed: %v\n", err)
		os.Exit(domerrors.ExitCode(err))
	}

	if !*dryRunFlag {
		fmt.Printf("\n%s is running at http://%s/\n", cfg.AppName, cfg.PublicHost)
	}
}
