package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyellow/medshop-deploy/internal/buildinfo"
	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/probe"
)

func main() {
	cfg, err := config.LoadForMode(config.VerifyMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}

	prober := probe.New(cfg.Timeouts.Probe, "medshop-healthcheck/"+buildinfo.VersionOrDev())
	if _, err := prober.Probe(context.Background(), cfg.EffectiveProbeURL()); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}
