// Command bootstrap prepares a fresh server: system packages, the
// application directories and the reverse proxy.
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
		fmt.Println(buildinfo.String("bootstrap"))
		return
	}

	cfg, err := config.LoadForMode(config.BootstrapMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := app.CheckRoot(os.Geteuid(), *dryRunFlag); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	application, err := app.Initialize(ctx, cfg, app.Options{Binary: "bootstrap", DryRun: *dryRunFlag})
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==> Bootstrapping server for", cfg.AppName)
	err = application.Run(ctx, deploy.PhaseBootstrap, deploy.Bootstrap(cfg, application.Deps()))
	application.Close()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "\nbootstrap failed: %v\n", err)
		os.Exit(domerrors.ExitCode(err))
	}
}
