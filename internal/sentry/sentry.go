// Package sentry reports failed provisioning runs to a Sentry-compatible
// error tracker (Sentry itself or Better Stack Errors).
package sentry

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
)

// Config holds error tracker configuration.
type Config struct {
	// DSN is the project DSN. Better Stack uses https://$TOKEN@$HOST/1.
	DSN string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the deploy tool release version.
	Release string

	// ServerName identifies the provisioned host.
	ServerName string

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK.
// If DSN is empty, reporting is disabled and nil is returned.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		SampleRate:       1.0,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureRunFailure reports an aborted phase, tagged with the failing step
// and the subcommand exit status when known.
func CaptureRunFailure(err error, phase, runID string) {
	if err == nil || !IsEnabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(RunTags(err, phase, runID))
		sentry.CaptureException(err)
	})
}

// RunTags returns the tags attached to a failure report.
func RunTags(err error, phase, runID string) map[string]string {
	tags := map[string]string{"phase": phase}
	if runID != "" {
		tags["run_id"] = runID
	}
	var stepErr *domerrors.StepError
	if errors.As(err, &stepErr) {
		tags["step"] = stepErr.Step
	}
	var cmdErr *domerrors.CommandError
	if errors.As(err, &cmdErr) {
		tags["command"] = cmdErr.Command
	}
	return tags
}
