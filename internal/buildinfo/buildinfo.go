// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import "fmt"

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/medshop-deploy/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/medshop-deploy/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/medshop-deploy/internal/buildinfo.BuildDate=...
var BuildDate = ""

// VersionOrDev returns Version, or "dev" for untagged builds.
func VersionOrDev() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// String formats the build metadata for -version output.
func String(binary string) string {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}
	date := BuildDate
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", binary, VersionOrDev(), commit, date)
}
