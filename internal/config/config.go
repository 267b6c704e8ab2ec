package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/utils"
)

const (
	DefaultServerURL  = "http://localhost:3000"
	DefaultMountPoint = "/tmp/remote-fs"
	DefaultFSName     = "remote-fs"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Remote     RemoteConfig     `yaml:"remote"`
	Mount      MountConfig      `yaml:"mount"`
	Network    NetworkConfig    `yaml:"network"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// RemoteConfig locates the metadata service.
type RemoteConfig struct {
	ServerURL string `yaml:"server_url"`
}

// MountConfig represents FUSE mount settings.
type MountConfig struct {
	MountPoint string `yaml:"mount_point"`
	FSName     string `yaml:"fsname"`
	AllowOther bool   `yaml:"allow_other"`
	Debug      bool   `yaml:"debug"`
}

// NetworkConfig represents network configuration
type NetworkConfig struct {
	// Timeout bounds a single HTTP call. Zero leaves the transport default in place.
	Timeout        time.Duration        `yaml:"timeout"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// HealthChecksConfig represents background health probe settings
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFile:   "",
			LogFormat: "text",
		},
		Remote: RemoteConfig{
			ServerURL: DefaultServerURL,
		},
		Mount: MountConfig{
			MountPoint: DefaultMountPoint,
			FSName:     DefaultFSName,
		},
		Network: NetworkConfig{
			Timeout: 0,
			Retry: RetryConfig{
				MaxAttempts: 1,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    2 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          false,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9464,
				Path:      "/metrics",
				Namespace: "remotefs",
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  false,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeConfigLoad, "failed to read config file").
			WithDetail("file", filename).WithCause(err)
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeConfigLoad, "failed to parse config file").
			WithDetail("file", filename).WithCause(err)
	}

	return nil
}

// LoadFromEnv applies REMOTEFS_* environment overrides.
func (c *Configuration) LoadFromEnv() error {
	return c.loadFromLookup(os.LookupEnv)
}

func (c *Configuration) loadFromLookup(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if val, ok := lookup(key); ok && val != "" {
			*dst = val
		}
	}

	var errs []string
	boolean := func(key string, dst *bool) {
		if val, ok := lookup(key); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a boolean", key, val))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if val, ok := lookup(key); ok && val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, val))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := lookup(key); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a duration", key, val))
				return
			}
			*dst = d
		}
	}

	str("REMOTEFS_LOG_LEVEL", &c.Global.LogLevel)
	str("REMOTEFS_LOG_FILE", &c.Global.LogFile)
	str("REMOTEFS_LOG_FORMAT", &c.Global.LogFormat)

	str("REMOTEFS_SERVER_URL", &c.Remote.ServerURL)

	str("REMOTEFS_MOUNT_POINT", &c.Mount.MountPoint)
	boolean("REMOTEFS_ALLOW_OTHER", &c.Mount.AllowOther)
	boolean("REMOTEFS_DEBUG", &c.Mount.Debug)

	duration("REMOTEFS_TIMEOUT", &c.Network.Timeout)
	integer("REMOTEFS_RETRY_ATTEMPTS", &c.Network.Retry.MaxAttempts)
	boolean("REMOTEFS_CIRCUIT_BREAKER", &c.Network.CircuitBreaker.Enabled)

	boolean("REMOTEFS_METRICS_ENABLED", &c.Monitoring.Metrics.Enabled)
	integer("REMOTEFS_METRICS_PORT", &c.Monitoring.Metrics.Port)
	boolean("REMOTEFS_HEALTH_CHECKS", &c.Monitoring.HealthChecks.Enabled)
	duration("REMOTEFS_HEALTH_INTERVAL", &c.Monitoring.HealthChecks.Interval)

	if len(errs) > 0 {
		return rfserrors.NewError(rfserrors.ErrCodeInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeConfigSave, "failed to marshal config").WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeConfigSave, "failed to create config directory").WithCause(err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return rfserrors.NewError(rfserrors.ErrCodeConfigSave, "failed to write config file").WithCause(err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return rfserrors.Newf(rfserrors.ErrCodeConfigValidation, format, args...)
	}

	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil || c.Global.LogLevel == "" {
		return invalid("invalid log_level: %q (must be one of: TRACE, DEBUG, INFO, WARN, ERROR)", c.Global.LogLevel)
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "text", "json":
	default:
		return invalid("invalid log_format: %q (must be text or json)", c.Global.LogFormat)
	}

	u, err := url.Parse(c.Remote.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("server_url must be an absolute http(s) URL, got %q", c.Remote.ServerURL)
	}

	if c.Mount.MountPoint == "" || !filepath.IsAbs(c.Mount.MountPoint) {
		return invalid("mount_point must be an absolute path, got %q", c.Mount.MountPoint)
	}
	if c.Mount.FSName == "" {
		return invalid("fsname cannot be empty")
	}

	if c.Network.Timeout < 0 {
		return invalid("timeout cannot be negative")
	}
	if c.Network.Retry.MaxAttempts < 1 {
		return invalid("retry.max_attempts must be at least 1")
	}
	if c.Network.Retry.MaxAttempts > 1 && c.Network.Retry.BaseDelay <= 0 {
		return invalid("retry.base_delay must be positive when retries are enabled")
	}
	if c.Network.CircuitBreaker.Enabled {
		if c.Network.CircuitBreaker.FailureThreshold < 1 {
			return invalid("circuit_breaker.failure_threshold must be at least 1")
		}
		if c.Network.CircuitBreaker.Timeout <= 0 {
			return invalid("circuit_breaker.timeout must be positive")
		}
	}

	if c.Monitoring.Metrics.Enabled {
		if c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535 {
			return invalid("metrics.port out of range: %d", c.Monitoring.Metrics.Port)
		}
		if !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
			return invalid("metrics.path must start with '/'")
		}
	}
	if c.Monitoring.HealthChecks.Enabled && c.Monitoring.HealthChecks.Interval <= 0 {
		return invalid("health_checks.interval must be positive when enabled")
	}

	return nil
}
