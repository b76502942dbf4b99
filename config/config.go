// Package config holds runtime configuration for all Dess services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DataDirName = "dess"
	TmpDirName  = "tmp"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default Dess data directory following the XDG
// Base Directory specification.
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, DataDirName)
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", DataDirName)
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	TmpDir       string `yaml:"-"`

	// Logging
	LogLevel     string `yaml:"log_level"`
	ColorEnabled bool   `yaml:"color_enabled"`

	// Docker
	DockerHost    string `yaml:"docker_host"`
	DockerCommand string `yaml:"docker_command"`

	// HTTP server
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	// BaseURL is the address deploy URLs are derived from (host part only)
	BaseURL string `yaml:"base_url"`

	// Git
	GitTimeout time.Duration `yaml:"git_timeout"`

	// Port allocation
	PortRangeStart int `yaml:"port_range_start"`
	PortRangeEnd   int `yaml:"port_range_end"`

	// Health verification
	HealthCheckAttempts int           `yaml:"health_check_attempts"`
	HealthCheckTimeout  time.Duration `yaml:"health_check_timeout"`
	MinHealthyUptime    time.Duration `yaml:"min_healthy_uptime"`

	// Encryption
	EncryptionKey string `yaml:"encryption_key"`

	// Environment provider for testing
	env EnvProvider
}

// NewConfigForCLI creates a new configuration for CLI usage with optional data directory override
func NewConfigForCLI(cliDataDir string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, cliDataDir)
}

// NewConfigForCLIWithEnv creates a new configuration with custom environment provider (for testing)
func NewConfigForCLIWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	return newConfigWithEnv(env, cliDataDir)
}

// NewConfigForServer creates a new configuration for server usage.
// This version only uses the config file, environment variables and defaults.
func NewConfigForServer() (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, "")
}

func newConfigWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	// Set defaults first
	c.setDefaults()

	// Layer config file on top of defaults, if one exists
	if err := c.loadFromFile(); err != nil {
		return nil, err
	}

	// Override with environment variables
	c.loadFromEnv()

	// Override with CLI flags (if provided)
	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	// Derive dependent paths
	c.derivePaths()

	// Validate
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults sets sensible default values
func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.DockerHost = ""
	c.DockerCommand = "docker"
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8080
	c.BaseURL = "http://localhost"
	c.GitTimeout = 5 * time.Minute
	c.PortRangeStart = 8100
	c.PortRangeEnd = 8200
	c.HealthCheckAttempts = 6
	c.HealthCheckTimeout = 15 * time.Second
	c.MinHealthyUptime = 30 * time.Second
	// Don't set default encryption key - it must be provided explicitly
}

// loadFromFile loads configuration from an optional YAML file. The file is
// looked up via DESS_CONFIG_FILE, falling back to <data_dir>/config.yaml.
func (c *Config) loadFromFile() error {
	path := c.env.Getenv("DESS_CONFIG_FILE")
	if path == "" {
		path = filepath.Join(c.DataDir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // config file is optional
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("DESS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("DESS_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("DESS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("DESS_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("DESS_DOCKER_HOST"); v != "" {
		c.DockerHost = v
	}
	if v := c.env.Getenv("DESS_DOCKER_COMMAND"); v != "" {
		c.DockerCommand = v
	}
	if v := c.env.Getenv("DESS_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := c.env.Getenv("DESS_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := c.env.Getenv("DESS_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := c.env.Getenv("DESS_GIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GitTimeout = d
		}
	}
	if v := c.env.Getenv("DESS_PORT_RANGE_START"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PortRangeStart = port
		}
	}
	if v := c.env.Getenv("DESS_PORT_RANGE_END"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PortRangeEnd = port
		}
	}
	if v := c.env.Getenv("DESS_HEALTH_CHECK_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HealthCheckAttempts = n
		}
	}
	if v := c.env.Getenv("DESS_HEALTH_CHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HealthCheckTimeout = d
		}
	}
	if v := c.env.Getenv("DESS_MIN_HEALTHY_UPTIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MinHealthyUptime = d
		}
	}
	if v := c.env.Getenv("DESS_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	c.TmpDir = filepath.Join(c.DataDir, TmpDirName)

	// Set default database path if not explicitly configured
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "dess.db")
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, or error)", c.LogLevel)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.GitTimeout <= 0 {
		return fmt.Errorf("git timeout must be positive, got: %v", c.GitTimeout)
	}

	if c.PortRangeStart < 1 || c.PortRangeEnd > 65535 || c.PortRangeStart > c.PortRangeEnd {
		return fmt.Errorf("invalid port range: %d-%d", c.PortRangeStart, c.PortRangeEnd)
	}

	if c.HealthCheckAttempts < 1 {
		return fmt.Errorf("health check attempts must be at least 1, got: %d", c.HealthCheckAttempts)
	}

	if c.DockerCommand == "" {
		return fmt.Errorf("docker command cannot be empty")
	}

	// Require encryption key to be provided via environment variable or config file
	if c.EncryptionKey == "" {
		return fmt.Errorf(
			"encryption key is required - set DESS_ENCRYPTION_KEY environment variable or add encryption_key to the config file in the data directory (%s)",
			c.DataDir,
		)
	}

	return nil
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
