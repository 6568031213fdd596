// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Config file
	EnvDeployEnvFile = "MEDSHOP_DEPLOY_ENV_FILE"

	// Application
	EnvAppName    = "MEDSHOP_APP_NAME"
	EnvAppDir     = "MEDSHOP_APP_DIR"
	EnvAppUser    = "MEDSHOP_APP_USER"
	EnvAppGroup   = "MEDSHOP_APP_GROUP"
	EnvLogDir     = "MEDSHOP_LOG_DIR"
	EnvPython     = "MEDSHOP_PYTHON"
	EnvWSGIModule = "MEDSHOP_WSGI_MODULE"
	EnvBind       = "MEDSHOP_BIND"
	EnvWorkers    = "MEDSHOP_WORKERS"
	EnvSeedData   = "MEDSHOP_SEED_SAMPLE_DATA"

	// Hosts
	EnvPublicHost   = "MEDSHOP_PUBLIC_HOST"
	EnvAllowedHosts = "MEDSHOP_ALLOWED_HOSTS"
	EnvServerNames  = "MEDSHOP_SERVER_NAMES"

	// Reverse proxy
	EnvNginxSitesAvailable = "MEDSHOP_NGINX_SITES_AVAILABLE"
	EnvNginxSitesEnabled   = "MEDSHOP_NGINX_SITES_ENABLED"
	EnvNginxDisableDefault = "MEDSHOP_NGINX_DISABLE_DEFAULT"
	EnvNginxMaxBodySize    = "MEDSHOP_NGINX_MAX_BODY_SIZE"

	// Process supervisor
	EnvSystemdDir = "MEDSHOP_SYSTEMD_DIR"

	// OS packages
	EnvExtraPackages = "MEDSHOP_EXTRA_PACKAGES"

	// Run bookkeeping
	EnvStateDir        = "MEDSHOP_STATE_DIR"
	EnvMetricsTextfile = "MEDSHOP_METRICS_TEXTFILE"

	// Logging
	EnvLogLevel            = "MEDSHOP_LOG_LEVEL"
	EnvBetterStackToken    = "MEDSHOP_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "MEDSHOP_BETTERSTACK_ENDPOINT"

	// Sentry
	EnvSentryDSN         = "MEDSHOP_SENTRY_DSN"
	EnvSentryEnvironment = "MEDSHOP_SENTRY_ENVIRONMENT"

	// R2 backup
	EnvR2Endpoint        = "MEDSHOP_R2_ENDPOINT"
	EnvR2AccessKeyID     = "MEDSHOP_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "MEDSHOP_R2_SECRET_ACCESS_KEY"
	EnvR2Bucket          = "MEDSHOP_R2_BUCKET"
	EnvR2Prefix          = "MEDSHOP_R2_PREFIX"

	// Probe
	EnvProbeURL = "MEDSHOP_PROBE_URL"

	// Timeouts
	EnvPackageIndexTimeout      = "MEDSHOP_PACKAGE_INDEX_TIMEOUT"
	EnvPackageInstallTimeout    = "MEDSHOP_PACKAGE_INSTALL_TIMEOUT"
	EnvVenvCreateTimeout        = "MEDSHOP_VENV_TIMEOUT"
	EnvDependencyInstallTimeout = "MEDSHOP_PIP_TIMEOUT"
	EnvManageCommandTimeout     = "MEDSHOP_MANAGE_TIMEOUT"
	EnvMigrateTimeout           = "MEDSHOP_MIGRATE_TIMEOUT"
	EnvProxyValidateTimeout     = "MEDSHOP_NGINX_TEST_TIMEOUT"
	EnvServiceControlTimeout    = "MEDSHOP_SYSTEMCTL_TIMEOUT"
	EnvBackupUploadTimeout      = "MEDSHOP_BACKUP_TIMEOUT"
	EnvProbeTimeout             = "MEDSHOP_PROBE_TIMEOUT"
)

// DefaultDeployEnvFile is read when EnvDeployEnvFile is unset.
const DefaultDeployEnvFile = "/etc/medshop/deploy.env"
