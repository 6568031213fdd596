package runner

import (
	"context"
	"strings"
	"sync"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
)

// Recorder is a Runner that records commands without executing them.
// Tests script failures with FailOn and canned stdout with Outputs.
type Recorder struct {
	mu       sync.Mutex
	commands []Command

	// FailOn maps a command prefix (as rendered by Command.String) to the
	// exit status the command should fail with.
	FailOn map[string]int

	// Outputs maps a command prefix to the stdout returned by Output.
	Outputs map[string]string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		FailOn:  map[string]int{},
		Outputs: map[string]string{},
	}
}

// Run records cmd and returns a scripted failure, if any.
func (r *Recorder) Run(_ context.Context, cmd Command) error {
	return r.record(cmd)
}

// Output records cmd and returns scripted stdout.
func (r *Recorder) Output(_ context.Context, cmd Command) ([]byte, error) {
	err := r.record(cmd)
	line := cmd.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, out := range r.Outputs {
		if strings.HasPrefix(line, prefix) {
			return []byte(out), err
		}
	}
	return nil, err
}

func (r *Recorder) record(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	line := cmd.String()
	for prefix, code := range r.FailOn {
		if strings.HasPrefix(line, prefix) {
			return &domerrors.CommandError{Command: line, ExitCode: code}
		}
	}
	return nil
}

// Commands returns every recorded command in order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Lines returns every recorded command rendered with Command.String.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}

// Index returns the position of the first command starting with prefix, or -1.
func (r *Recorder) Index(prefix string) int {
	for i, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			return i
		}
	}
	return -1
}

// Ran reports whether any command starting with prefix was recorded.
func (r *Recorder) Ran(prefix string) bool {
	return r.Index(prefix) >= 0
}
