package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envTasksFile       = "CONFIG_TOML"
	envCacheDir        = "CACHE_DIR"
	envCacheOldDir     = "CACHE_OLD_DIR"
	envGitHubToken     = "GITHUB_TOKEN"
	envGitHubAPIURL    = "GITHUB_API_URL"
	envGitHubOutput    = "GITHUB_OUTPUT"
	envForceRebuild    = "FORCE_REBUILD"
	envDebug           = "DEBUG"
	envSigner          = "SIGNER"
	envZsignPath       = "ZSIGN_PATH"
	envCertPath        = "APPLE_DEV_CERT_PATH"
	envCertPassword    = "APPLE_DEV_CERT_PASSWORD"
	envAssetsServerIP  = "ASSETS_SERVER_IP"
	envAssetsUser      = "ASSETS_SERVER_USER"
	envAssetsPassword  = "ASSETS_SERVER_CREDENTIALS"
	envSlackWebhookURL = "SLACK_WEBHOOK_URL"
	envWebhookURL      = "NOTIFY_WEBHOOK_URL"
	envPushgatewayURL  = "PUSHGATEWAY_URL"
)

const (
	defaultTasksFile   = "configs/tasks.toml"
	defaultCacheDir    = "work/cache"
	defaultCacheOldDir = "work/cache-old"
	defaultCertPath    = "apple_dev.p12"
	defaultSigner      = "zsign"
	defaultZsignPath   = "zsign"
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	TasksFile   string
	CacheDir    string
	CacheOldDir string

	GitHubToken  string
	GitHubAPIURL string
	GitHubOutput string
	ForceRebuild bool
	LogLevel     string

	Signer       string
	ZsignPath    string
	CertPath     string
	CertPassword string

	AssetsServerIP   string
	AssetsServerUser string
	AssetsPassword   string

	SlackWebhookURL string
	WebhookURL      string
	PushgatewayURL  string
}

// Load reads configuration from environment variables and a local .env
// file if present. Existing environment variables take precedence over
// values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		TasksFile:   defaultTasksFile,
		CacheDir:    defaultCacheDir,
		CacheOldDir: defaultCacheOldDir,
		CertPath:    defaultCertPath,
		Signer:      defaultSigner,
		ZsignPath:   defaultZsignPath,
		LogLevel:    "info",
	}

	if value, ok := lookupTrimmed(envTasksFile); ok {
		cfg.TasksFile = value
	}
	if value, ok := lookupTrimmed(envCacheDir); ok {
		cfg.CacheDir = value
	}
	if value, ok := lookupTrimmed(envCacheOldDir); ok {
		cfg.CacheOldDir = value
	}
	if value, ok := lookupTrimmed(envGitHubToken); ok {
		cfg.GitHubToken = value
	}
	if value, ok := lookupTrimmed(envGitHubAPIURL); ok {
		cfg.GitHubAPIURL = value
	}
	if value, ok := lookupTrimmed(envGitHubOutput); ok {
		cfg.GitHubOutput = value
	}
	if value, ok := lookupTrimmed(envSigner); ok {
		cfg.Signer = strings.ToLower(value)
	}
	if value, ok := lookupTrimmed(envZsignPath); ok {
		cfg.ZsignPath = value
	}
	if value, ok := lookupTrimmed(envCertPath); ok {
		cfg.CertPath = value
	}
	if value, ok := lookupTrimmed(envCertPassword); ok {
		cfg.CertPassword = value
	}
	if value, ok := lookupTrimmed(envAssetsServerIP); ok {
		cfg.AssetsServerIP = value
	}
	if value, ok := lookupTrimmed(envAssetsUser); ok {
		cfg.AssetsServerUser = value
	}
	if value, ok := lookupTrimmed(envAssetsPassword); ok {
		cfg.AssetsPassword = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if value, ok := lookupTrimmed(envPushgatewayURL); ok {
		cfg.PushgatewayURL = value
	}

	cfg.ForceRebuild = IsTruthy(os.Getenv(envForceRebuild))
	if IsTruthy(os.Getenv(envDebug)) {
		cfg.LogLevel = "debug"
	}

	if cfg.Signer != "zsign" && cfg.Signer != "fastlane" {
		return Config{}, fmt.Errorf("invalid %s: %q (want zsign or fastlane)", envSigner, cfg.Signer)
	}

	return cfg, nil
}

// IsTruthy reports whether an environment value enables a flag.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// CachedDeviceListPath is the previous run's roster snapshot.
func (c Config) CachedDeviceListPath() string {
	return c.CacheOldDir + "/device-list.json"
}

// CurrentDeviceListPath is the roster snapshot written by this run's collector.
func (c Config) CurrentDeviceListPath() string {
	return c.CacheDir + "/device-list.json"
}

// ReleaseCachePath is the per-task release version cache.
func (c Config) ReleaseCachePath() string {
	return c.CacheDir + "/release-versions.json"
}

// RequireGitHubToken fails when release-tracked tasks exist without a token.
func (c Config) RequireGitHubToken() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN environment variable is required for GitHub API access")
	}
	return nil
}

// RequireSigningCredentials reports every missing signing/upload secret at once.
func (c Config) RequireSigningCredentials() error {
	var missing []string
	if c.CertPassword == "" {
		missing = append(missing, envCertPassword)
	}
	if c.AssetsServerIP == "" {
		missing = append(missing, envAssetsServerIP)
	}
	if c.AssetsServerUser == "" {
		missing = append(missing, envAssetsUser)
	}
	if c.AssetsPassword == "" {
		missing = append(missing, envAssetsPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}
