// Package provision runs a phase as an ordered list of steps.
//
// Steps run strictly one after another. The first failing step aborts the
// phase: later steps are never invoked and nothing is rolled back. A step may
// decline to act by returning Skip, which is recorded and does not abort.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/medshop-deploy/internal/ctxutil"
	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/logger"
	"github.com/garyellow/medshop-deploy/internal/storage"
)

// Run states
const (
	StatusComplete = "complete"
	StatusAborted  = "aborted"
)

// Step states
const (
	StepOK      = "ok"
	StepSkipped = "skipped"
	StepFailed  = "failed"
)

// Step is one unit of work in a phase.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepResult is the outcome of a step that was started.
type StepResult struct {
	Index    int
	Name     string
	Status   string
	Duration time.Duration
	Detail   string
}

// Result summarizes a phase run.
type Result struct {
	RunID      string
	Phase      string
	Status     string
	Steps      []StepResult
	FailedStep string
	Duration   time.Duration
}

// History persists run progress. *storage.DB satisfies it.
type History interface {
	StartRun(ctx context.Context, run *storage.Run) error
	RecordStep(ctx context.Context, step *storage.StepRecord) error
	FinishRun(ctx context.Context, runID, status, failedStep string, exitCode int, finishedAt time.Time) error
}

// Observer receives step and run timings. *metrics.Metrics satisfies it.
type Observer interface {
	RecordStep(phase, step, status string, duration time.Duration)
	RecordRun(phase, status string, duration time.Duration, finished time.Time)
}

// Sequencer executes steps in order and stops at the first failure.
type Sequencer struct {
	Out      io.Writer // step banners, defaults to os.Stdout
	Log      *logger.Logger
	History  History  // optional
	Observer Observer // optional
	Version  string

	now   func() time.Time
	newID func() string
}

// NewSequencer returns a Sequencer printing banners to stdout.
func NewSequencer(log *logger.Logger) *Sequencer {
	return &Sequencer{Out: os.Stdout, Log: log}
}

// Run executes steps for phase. The returned error wraps a
// *errors.StepError for the failing step; Result is always non-nil.
func (s *Sequencer) Run(ctx context.Context, phase string, steps []Step) (*Result, error) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	newID := s.newID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	base := s.Log
	if base == nil {
		base = logger.NewWithWriter("error", io.Discard)
	}

	res := &Result{RunID: newID(), Phase: phase}
	log := base.WithRunID(res.RunID).WithField("phase", phase)
	ctx = ctxutil.WithPhase(ctxutil.WithRunID(ctx, res.RunID), phase)
	started := now()

	if s.History != nil {
		run := &storage.Run{ID: res.RunID, Phase: phase, Version: s.Version, StartedAt: started}
		if err := s.History.StartRun(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to record run start")
		}
	}

	var runErr error
	for i, step := range steps {
		index := i + 1

		if err := ctx.Err(); err != nil {
			runErr = &domerrors.StepError{Index: index, Step: step.Name, Err: err}
			res.FailedStep = step.Name
			break
		}

		_, _ = fmt.Fprintf(out, "==> [%d/%d] %s\n", index, len(steps), step.Name)
		stepStart := now()
		err := step.Run(ctxutil.WithStep(ctx, step.Name))
		sr := StepResult{Index: index, Name: step.Name, Duration: now().Sub(stepStart)}

		stepLog := log.WithField("step", step.Name).WithField("index", index).WithField("duration", sr.Duration)
		var reason string
		switch {
		case err == nil:
			sr.Status = StepOK
			stepLog.Debug("Step finished")
		case IsSkip(err, &reason):
			sr.Status = StepSkipped
			sr.Detail = reason
			_, _ = fmt.Fprintf(out, "    skipped: %s\n", reason)
			stepLog.WithField("reason", reason).Info("Step skipped")
		default:
			sr.Status = StepFailed
			sr.Detail = err.Error()
			stepLog.WithError(err).Error("Step failed")
		}

		res.Steps = append(res.Steps, sr)
		s.recordStep(ctx, log, res, sr)

		if sr.Status == StepFailed {
			res.FailedStep = step.Name
			runErr = &domerrors.StepError{Index: index, Step: step.Name, Err: err}
			break
		}
	}

	finished := now()
	res.Duration = finished.Sub(started)
	if runErr != nil {
		res.Status = StatusAborted
		_, _ = fmt.Fprintf(out, "==> %s aborted at %q after %s\n", phase, res.FailedStep, res.Duration.Round(time.Second))
	} else {
		res.Status = StatusComplete
		_, _ = fmt.Fprintf(out, "==> %s complete: %d steps in %s\n", phase, len(res.Steps), res.Duration.Round(time.Second))
	}

	if s.Observer != nil {
		s.Observer.RecordRun(phase, res.Status, res.Duration, finished)
	}
	if s.History != nil {
		// The run context may already be canceled; the record still matters.
		histCtx := context.WithoutCancel(ctx)
		if err := s.History.FinishRun(histCtx, res.RunID, res.Status, res.FailedStep, domerrors.ExitCode(runErr), finished); err != nil {
			log.WithError(err).Warn("Failed to record run result")
		}
	}

	if runErr != nil {
		return res, fmt.Errorf("%s: %w", phase, runErr)
	}
	return res, nil
}

func (s *Sequencer) recordStep(ctx context.Context, log *logger.Logger, res *Result, sr StepResult) {
	if s.Observer != nil {
		s.Observer.RecordStep(res.Phase, sr.Name, sr.Status, sr.Duration)
	}
	if s.History == nil {
		return
	}
	rec := &storage.StepRecord{
		RunID:    res.RunID,
		Index:    sr.Index,
		Name:     sr.Name,
		Status:   sr.Status,
		Duration: sr.Duration,
		Detail:   sr.Detail,
	}
	if err := s.History.RecordStep(context.WithoutCancel(ctx), rec); err != nil {
		log.WithError(err).Warn("Failed to record step")
	}
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return "skipped: " + e.reason
}

// Skip returns an error that marks the step as intentionally skipped.
func Skip(reason string) error {
	return &skipError{reason: reason}
}

// IsSkip reports whether err came from Skip, storing the reason when it did.
func IsSkip(err error, reason *string) bool {
	var se *skipError
	if !errors.As(err, &se) {
		return false
	}
	if reason != nil {
		*reason = se.reason
	}
	return true
}
