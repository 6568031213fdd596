package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.StepDurationSeconds == nil {
		t.Error("StepDurationSeconds is nil")
	}
	if m.StepsTotal == nil {
		t.Error("StepsTotal is nil")
	}
	if m.RunDurationSeconds == nil {
		t.Error("RunDurationSeconds is nil")
	}
	if m.LastRunTimestamp == nil {
		t.Error("LastRunTimestamp is nil")
	}
}

func TestRecordStep(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordStep("setup", "Creating virtual environment", "ok", 2*time.Second)
	m.RecordStep("setup", "Backing up database", "skipped", 0)
	m.RecordStep("setup", "Configuring nginx", "failed", time.Second)
	m.RecordStep("setup", "Collecting static files", "ok", time.Second)

	if got := testutil.ToFloat64(m.StepsTotal.WithLabelValues("setup", "ok")); got != 2 {
		t.Errorf("ok steps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StepsTotal.WithLabelValues("setup", "failed")); got != 1 {
		t.Errorf("failed steps = %v, want 1", got)
	}
}

func TestRecordRun(t *testing.T) {
	m := New(prometheus.NewRegistry())
	finished := time.Unix(1_700_000_000, 0)

	m.RecordRun("bootstrap", "complete", 90*time.Second, finished)

	if got := testutil.ToFloat64(m.RunDurationSeconds.WithLabelValues("bootstrap")); got != 90 {
		t.Errorf("run duration = %v, want 90", got)
	}
	if got := testutil.ToFloat64(m.LastRunTimestamp.WithLabelValues("bootstrap", "complete")); got != 1_700_000_000 {
		t.Errorf("last run timestamp = %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordStep("setup", "Starting service", "ok", time.Second)

	path := filepath.Join(t.TempDir(), "textfile", "medshop_deploy.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `medshop_deploy_steps_total{phase="setup",status="ok"} 1`) {
		t.Errorf("textfile missing step counter:\n%s", data)
	}
}
