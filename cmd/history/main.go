// Command history prints the recorded provisioning runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/garyellow/medshop-deploy/internal/config"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/storage"
)

// CLI flags
var (
	limitFlag = flag.Int("limit", 10, "Number of runs to list")
	runFlag   = flag.String("run", "", "Show the steps of this run ID")
)

func main() {
	flag.Parse()

	// The history location needs no phase-specific settings.
	cfg, err := config.LoadForMode(config.BootstrapMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ok, err := fsutil.Exists(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("No runs recorded at", cfg.HistoryPath())
		return
	}

	ctx := context.Background()
	db, err := storage.New(ctx, cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *runFlag != "" {
		steps, err := db.StepsForRun(ctx, *runFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			_ = db.Close()
			os.Exit(1)
		}
		printSteps(os.Stdout, steps)
		return
	}

	runs, err := db.RecentRuns(ctx, *limitFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		_ = db.Close()
		os.Exit(1)
	}
	printRuns(os.Stdout, runs)
}

func printRuns(w io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tPHASE\tSTARTED\tDURATION\tSTATUS\tEXIT\tFAILED STEP\tVERSION")
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		failed := r.FailedStep
		if failed == "" {
			failed = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Phase, r.StartedAt.Local().Format(time.DateTime), duration, r.Status, r.ExitCode, failed, r.Version)
	}
	_ = tw.Flush()
}

func printSteps(w io.Writer, steps []storage.StepRecord) {
	if len(steps) == 0 {
		_, _ = fmt.Fprintln(w, "No steps recorded for this run")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tDURATION\tDETAIL")
	for _, s := range steps {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Index, s.Name, s.Status, s.Duration.Round(time.Millisecond), s.Detail)
	}
	_ = tw.Flush()
}
