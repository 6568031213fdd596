// Package config provides deploy configuration management.
// It loads settings from an optional .env-style file and environment
// variables, and provides defaults matching a stock Ubuntu VPS.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/sliceutil"
	"github.com/garyellow/medshop-deploy/internal/timeouts"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// BootstrapMode validates what the server bootstrap phase needs.
	BootstrapMode ValidationMode = iota
	// SetupMode additionally requires the public host.
	SetupMode
	// VerifyMode validates what post-deploy checks need.
	VerifyMode
)

func (m ValidationMode) String() string {
	switch m {
	case BootstrapMode:
		return "bootstrap"
	case SetupMode:
		return "setup"
	case VerifyMode:
		return "verify"
	default:
		return "unknown"
	}
}

// Config holds all deploy configuration
type Config struct {
	// Application
	AppName        string // Service, site and gunicorn proc name
	AppDir         string // Root of the uploaded application tree
	AppUser        string
	AppGroup       string
	LogDir         string // gunicorn access/error logs
	Python         string // Interpreter used to create the venv
	WSGIModule     string
	Bind           string // gunicorn bind address, proxied by nginx
	Workers        int    // 0 = cpu*2+1
	SeedSampleData bool   // Run create_sample_data after migrate

	// Hosts
	PublicHost   string   // Server public IP or hostname
	AllowedHosts []string // Extra hosts for ALLOWED_HOSTS
	ServerNames  []string // nginx server_name, defaults to the public host

	// Reverse proxy
	NginxSitesAvailable string
	NginxSitesEnabled   string
	NginxDisableDefault bool
	NginxMaxBodySize    string

	// Process supervisor
	SystemdDir string

	// OS packages appended to the bootstrap install list
	ExtraPackages []string

	// Run bookkeeping
	StateDir        string // Run history database lives here
	MetricsTextfile string // node_exporter textfile collector output (empty = disabled)

	// Logging
	LogLevel            string
	BetterStackToken    string
	BetterStackEndpoint string

	// Sentry
	SentryDSN         string
	SentryEnvironment string

	// Pre-migration database backup
	R2 R2Config

	// Probe target for verify/healthcheck (empty = http://<public host>/)
	ProbeURL string

	Timeouts Timeouts
}

// R2Config holds R2/S3 backup settings. All fields but Prefix are required
// together.
type R2Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
}

// Enabled reports whether backups are configured.
func (r R2Config) Enabled() bool {
	return r.Endpoint != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.Bucket != ""
}

func (r R2Config) partial() bool {
	set := 0
	for _, v := range []string{r.Endpoint, r.AccessKeyID, r.SecretAccessKey, r.Bucket} {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < 4
}

// Timeouts bounds each class of external command.
type Timeouts struct {
	PackageIndex      time.Duration
	PackageInstall    time.Duration
	VenvCreate        time.Duration
	DependencyInstall time.Duration
	ManageCommand     time.Duration
	Migrate           time.Duration
	ProxyValidate     time.Duration
	ServiceControl    time.Duration
	BackupUpload      time.Duration
	Probe             time.Duration
}

var appNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Load reads configuration for setup mode.
func Load() (*Config, error) {
	return LoadForMode(SetupMode)
}

// LoadForMode reads configuration from the deploy env file and environment
// variables, then validates it for the given mode.
// Variables already present in the environment take precedence over the file.
func LoadForMode(mode ValidationMode) (*Config, error) {
	envFile := getEnv(EnvDeployEnvFile, DefaultDeployEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	appDir := getEnv(EnvAppDir, "/var/www/medshop")

	cfg := &Config{
		AppName:        getEnv(EnvAppName, "medshop"),
		AppDir:         filepath.Clean(appDir),
		AppUser:        getEnv(EnvAppUser, "www-data"),
		AppGroup:       getEnv(EnvAppGroup, "www-data"),
		LogDir:         getEnv(EnvLogDir, "/var/log/gunicorn"),
		Python:         getEnv(EnvPython, "python3"),
		WSGIModule:     getEnv(EnvWSGIModule, "medshop.wsgi:application"),
		Bind:           getEnv(EnvBind, "127.0.0.1:8000"),
		Workers:        getIntEnv(EnvWorkers, 0),
		SeedSampleData: getBoolEnv(EnvSeedData, false),

		PublicHost:   getEnv(EnvPublicHost, ""),
		AllowedHosts: getListEnv(EnvAllowedHosts),
		ServerNames:  getListEnv(EnvServerNames),

		NginxSitesAvailable: getEnv(EnvNginxSitesAvailable, "/etc/nginx/sites-available"),
		NginxSitesEnabled:   getEnv(EnvNginxSitesEnabled, "/etc/nginx/sites-enabled"),
		NginxDisableDefault: getBoolEnv(EnvNginxDisableDefault, true),
		NginxMaxBodySize:    getEnv(EnvNginxMaxBodySize, "20M"),

		SystemdDir: getEnv(EnvSystemdDir, "/etc/systemd/system"),

		ExtraPackages: getListEnv(EnvExtraPackages),

		StateDir:        getEnv(EnvStateDir, "/var/lib/medshop-deploy"),
		MetricsTextfile: getEnv(EnvMetricsTextfile, ""),

		LogLevel:            getEnv(EnvLogLevel, "info"),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),

		R2: R2Config{
			Endpoint:        getEnv(EnvR2Endpoint, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			Bucket:          getEnv(EnvR2Bucket, ""),
			Prefix:          getEnv(EnvR2Prefix, "backups"),
		},

		ProbeURL: getEnv(EnvProbeURL, ""),

		Timeouts: Timeouts{
			PackageIndex:      getDurationEnv(EnvPackageIndexTimeout, timeouts.PackageIndex),
			PackageInstall:    getDurationEnv(EnvPackageInstallTimeout, timeouts.PackageInstall),
			VenvCreate:        getDurationEnv(EnvVenvCreateTimeout, timeouts.VenvCreate),
			DependencyInstall: getDurationEnv(EnvDependencyInstallTimeout, timeouts.DependencyInstall),
			ManageCommand:     getDurationEnv(EnvManageCommandTimeout, timeouts.ManageCommand),
			Migrate:           getDurationEnv(EnvMigrateTimeout, timeouts.Migrate),
			ProxyValidate:     getDurationEnv(EnvProxyValidateTimeout, timeouts.ProxyValidate),
			ServiceControl:    getDurationEnv(EnvServiceControlTimeout, timeouts.ServiceControl),
			BackupUpload:      getDurationEnv(EnvBackupUploadTimeout, timeouts.BackupUpload),
			Probe:             getDurationEnv(EnvProbeTimeout, timeouts.ProbeRequest),
		},
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for setup mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(SetupMode)
}

// ValidateForMode checks that required configuration values are set for mode
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if !appNamePattern.MatchString(c.AppName) {
		errs = append(errs, domerrors.NewValidationError(EnvAppName, fmt.Sprintf("must match %s, got %q", appNamePattern, c.AppName)))
	}
	if !filepath.IsAbs(c.AppDir) || c.AppDir == "/" {
		errs = append(errs, domerrors.NewValidationError(EnvAppDir, fmt.Sprintf("must be an absolute path below /, got %q", c.AppDir)))
	}
	if !filepath.IsAbs(c.LogDir) {
		errs = append(errs, domerrors.NewValidationError(EnvLogDir, fmt.Sprintf("must be an absolute path, got %q", c.LogDir)))
	}
	if c.AppUser == "" {
		errs = append(errs, domerrors.NewValidationError(EnvAppUser, "is required"))
	}
	if c.AppGroup == "" {
		errs = append(errs, domerrors.NewValidationError(EnvAppGroup, "is required"))
	}

	if mode == SetupMode {
		if c.PublicHost == "" {
			errs = append(errs, domerrors.NewValidationError(EnvPublicHost, "is required"))
		}
		if _, _, err := net.SplitHostPort(c.Bind); err != nil {
			errs = append(errs, domerrors.NewValidationError(EnvBind, fmt.Sprintf("must be host:port, got %q", c.Bind)))
		}
		if c.Workers < 0 {
			errs = append(errs, domerrors.NewValidationError(EnvWorkers, fmt.Sprintf("cannot be negative, got %d", c.Workers)))
		}
		if c.WSGIModule == "" {
			errs = append(errs, domerrors.NewValidationError(EnvWSGIModule, "is required"))
		}
		if c.R2.partial() {
			errs = append(errs, domerrors.NewValidationError("MEDSHOP_R2_*", "endpoint, access key, secret key and bucket must be set together"))
		}
	}

	if mode == VerifyMode && c.PublicHost == "" && c.ProbeURL == "" {
		errs = append(errs, domerrors.NewValidationError(EnvProbeURL, "required when MEDSHOP_PUBLIC_HOST is unset"))
	}

	for name, d := range map[string]time.Duration{
		EnvPackageIndexTimeout:      c.Timeouts.PackageIndex,
		EnvPackageInstallTimeout:    c.Timeouts.PackageInstall,
		EnvVenvCreateTimeout:        c.Timeouts.VenvCreate,
		EnvDependencyInstallTimeout: c.Timeouts.DependencyInstall,
		EnvManageCommandTimeout:     c.Timeouts.ManageCommand,
		EnvMigrateTimeout:           c.Timeouts.Migrate,
		EnvProxyValidateTimeout:     c.Timeouts.ProxyValidate,
		EnvServiceControlTimeout:    c.Timeouts.ServiceControl,
		EnvBackupUploadTimeout:      c.Timeouts.BackupUpload,
		EnvProbeTimeout:             c.Timeouts.Probe,
	} {
		if d <= 0 {
			errs = append(errs, domerrors.NewValidationError(name, fmt.Sprintf("must be positive, got %v", d)))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// VenvDir returns the virtual environment directory inside the app root.
func (c *Config) VenvDir() string {
	return filepath.Join(c.AppDir, "venv")
}

// VenvBin returns the path of an executable inside the virtual environment.
func (c *Config) VenvBin(name string) string {
	return filepath.Join(c.VenvDir(), "bin", name)
}

// RequirementsPath returns the dependency manifest path.
func (c *Config) RequirementsPath() string {
	return filepath.Join(c.AppDir, "requirements.txt")
}

// EnvFilePath returns the generated environment file path.
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.AppDir, ".env")
}

// DatabasePath returns the embedded SQLite database used by the application.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.AppDir, "db.sqlite3")
}

// StaticRoot returns the collectstatic output directory.
func (c *Config) StaticRoot() string {
	return filepath.Join(c.AppDir, "staticfiles")
}

// MediaRoot returns the uploaded media directory.
func (c *Config) MediaRoot() string {
	return filepath.Join(c.AppDir, "media")
}

// GunicornConfigPath returns the rendered gunicorn.conf.py path.
func (c *Config) GunicornConfigPath() string {
	return filepath.Join(c.AppDir, "gunicorn.conf.py")
}

// NginxSitePath returns the site definition path under sites-available.
func (c *Config) NginxSitePath() string {
	return filepath.Join(c.NginxSitesAvailable, c.AppName)
}

// NginxEnabledPath returns the sites-enabled link path.
func (c *Config) NginxEnabledPath() string {
	return filepath.Join(c.NginxSitesEnabled, c.AppName)
}

// UnitName returns the systemd unit name.
func (c *Config) UnitName() string {
	return c.AppName + ".service"
}

// UnitPath returns the systemd unit file path.
func (c *Config) UnitPath() string {
	return filepath.Join(c.SystemdDir, c.UnitName())
}

// HistoryPath returns the run history database path.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.db")
}

// EffectiveWorkers returns the configured worker count, or cpu*2+1.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()*2 + 1
}

// EffectiveServerNames returns the nginx server_name list.
func (c *Config) EffectiveServerNames() []string {
	if len(c.ServerNames) > 0 {
		return c.ServerNames
	}
	if c.PublicHost != "" {
		return []string{c.PublicHost}
	}
	return []string{"_"}
}

// EffectiveProbeURL returns the URL verify and healthcheck request.
func (c *Config) EffectiveProbeURL() string {
	if c.ProbeURL != "" {
		return c.ProbeURL
	}
	return "http://" + c.PublicHost + "/"
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty entries
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	return sliceutil.Fields(value, ",")
}
