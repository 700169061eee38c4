package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models servicehub.yml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Snapshots  SnapshotsConfig  `yaml:"snapshots"`
	Automation AutomationConfig `yaml:"automation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Webhooks   WebhooksConfig   `yaml:"webhooks"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SnapshotsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type AutomationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// RateLimitConfig bounds request creation per user: Requests per Window.
type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

type WebhooksConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Events  []string `yaml:"events"`
	Timeout string   `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AlertKinds that webhooks may subscribe to.
var AlertKinds = []string{"low_health", "deadline", "insights"}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with svh config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("config.database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be 'sqlite' or 'postgres'")
	}
	switch c.Snapshots.Backend {
	case "sql", "file":
	default:
		return fmt.Errorf("config.snapshots.backend must be 'sql' or 'file'")
	}
	if _, err := c.AutomationInterval(); err != nil {
		return err
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("config.rate_limit.requests must be positive")
	}
	if _, err := c.RateLimitWindow(); err != nil {
		return err
	}
	if c.Webhooks.Enabled {
		u, err := url.Parse(c.Webhooks.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config.webhooks.url must be an absolute url")
		}
		for _, evt := range c.Webhooks.Events {
			if !knownAlert(evt) {
				return fmt.Errorf("config.webhooks.events has unknown event %s", evt)
			}
		}
		if c.Webhooks.Timeout != "" {
			if _, err := time.ParseDuration(c.Webhooks.Timeout); err != nil {
				return fmt.Errorf("config.webhooks.timeout: %w", err)
			}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be 'text' or 'json'")
	}
	return nil
}

func knownAlert(kind string) bool {
	for _, k := range AlertKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AutomationInterval parses automation.interval.
func (c *Config) AutomationInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Automation.Interval)
	if err != nil {
		return 0, fmt.Errorf("config.automation.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config.automation.interval must be positive")
	}
	return d, nil
}

// RateLimitWindow parses rate_limit.window.
func (c *Config) RateLimitWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.RateLimit.Window)
	if err != nil {
		return 0, fmt.Errorf("config.rate_limit.window: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config.rate_limit.window must be positive")
	}
	return d, nil
}

// WebhookTimeout returns the per-delivery timeout, 10s when unset.
func (c *Config) WebhookTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Webhooks.Timeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "servicehub.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the effective config.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: ""

database:
  # sqlite stores data under .servicehub/ in the workspace.
  driver: sqlite
  dsn: ""

snapshots:
  # sql keeps health history and insights in the database; file writes JSON documents.
  backend: sql
  dir: .servicehub/snapshots

automation:
  enabled: true
  interval: 5m

rate_limit:
  requests: 5
  window: 15m

webhooks:
  enabled: false
  url: ""
  secret: ""
  events: [low_health, deadline, insights]
  timeout: 10s

logging:
  level: info
  format: text
`
