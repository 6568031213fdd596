package logger

import (
	"context"
	"log/slog"

	"github.com/garyellow/medshop-deploy/internal/ctxutil"
)

// ContextHandler is a slog.Handler that adds the provisioning values
// carried by the context (run_id, phase, step) to every record logged
// through the *Context methods.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds context values as attributes, then delegates.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if runID := ctxutil.GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	if phase := ctxutil.GetPhase(ctx); phase != "" {
		r.AddAttrs(slog.String("phase", phase))
	}
	if step := ctxutil.GetStep(ctx); step != "" {
		r.AddAttrs(slog.String("step", step))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler wrapping the handler with attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler wrapping the grouped handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
