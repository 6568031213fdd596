// Package timeouts provides centralized timeout constants for the provisioning phases.
//
// Every external command gets an upper bound so a wedged package manager or a
// hanging migration aborts the run instead of blocking forever. The values
// are defaults; each can be overridden through the MEDSHOP_*_TIMEOUT
// variables in internal/config.
//
// # Package Manager
//
// apt-get on a fresh VPS can spend a long time on the first upgrade:
//   - Index refresh: a few seconds to a minute depending on mirrors
//   - Full upgrade: kernel and libc updates regularly take 10+ minutes
//   - Installs: postgresql and build-essential pull hundreds of MB
package timeouts

import "time"

// Package manager timeouts
const (
	// PackageIndex is the timeout for apt-get update.
	PackageIndex = 5 * time.Minute

	// PackageInstall is the timeout for a single apt-get upgrade or install.
	PackageInstall = 30 * time.Minute
)

// Python environment timeouts
const (
	// VenvCreate is the timeout for python3 -m venv.
	VenvCreate = 2 * time.Minute

	// DependencyInstall is the timeout for pip install -r requirements.txt.
	// Wheels without binary distributions compile locally.
	DependencyInstall = 20 * time.Minute
)

// Application routine timeouts
const (
	// ManageCommand is the timeout for collectstatic and other short
	// management commands.
	ManageCommand = 5 * time.Minute

	// Migrate is the timeout for schema migrations.
	Migrate = 15 * time.Minute
)

// Service manager timeouts
const (
	// ProxyValidate is the timeout for nginx -t.
	ProxyValidate = 30 * time.Second

	// ServiceControl is the timeout for systemctl enable/reload/restart.
	// Restart waits for gunicorn to boot its workers.
	ServiceControl = 2 * time.Minute
)

// Backup timeouts
const (
	// BackupUpload is the timeout for uploading the pre-migration database snapshot.
	BackupUpload = 10 * time.Minute
)

// Probe timeouts
const (
	// ProbeRequest is the timeout for a single HTTP request made by verify/healthcheck.
	ProbeRequest = 8 * time.Second
)

// Reporting
const (
	// ErrorReportFlush is how long to wait for failure reports to be delivered
	// before the process exits.
	ErrorReportFlush = 5 * time.Second
)
