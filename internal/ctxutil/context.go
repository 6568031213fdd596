// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	runIDKey contextKey = "ctxutil.runID"
	phaseKey contextKey = "ctxutil.phase"
	stepKey  contextKey = "ctxutil.step"
)

// WithRunID adds the provisioning run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the run ID from the context, or "" when unset.
func GetRunID(ctx context.Context) string {
	return get(ctx, runIDKey)
}

// WithPhase adds the phase name (bootstrap, setup) to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey, phase)
}

// GetPhase retrieves the phase name from the context, or "" when unset.
func GetPhase(ctx context.Context) string {
	return get(ctx, phaseKey)
}

// WithStep adds the name of the running step to the context.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey, step)
}

// GetStep retrieves the step name from the context, or "" when unset.
func GetStep(ctx context.Context) string {
	return get(ctx, stepKey)
}

func get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
