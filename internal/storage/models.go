package storage

import "time"

// Run is one invocation of a provisioning phase.
type Run struct {
	ID         string
	Phase      string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string    // running, complete, aborted
	FailedStep string
	ExitCode   int
}

// StepRecord is the outcome of a single step within a run.
type StepRecord struct {
	RunID    string
	Index    int
	Name     string
	Status   string // ok, skipped, failed
	Duration time.Duration
	Detail   string // skip reason or error text
}
