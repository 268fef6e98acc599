package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Deployment DeploymentConfig `yaml:"deployment"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

// DeploymentConfig selects how this install participates in sync.
type DeploymentConfig struct {
	// Mode is one of "local", "host", "client".
	Mode string `yaml:"mode"`
	// ServerURL is the host base URL; required in client mode.
	ServerURL string `yaml:"server_url"`
	// DeviceToken is the opaque credential issued by the host at pairing time.
	DeviceToken string `yaml:"device_token"`
}

// ServerConfig contains HTTP server settings (host mode).
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings. QueuePath holds the sync queue
// in its own file so a queue failure cannot corrupt entity tables.
type DatabaseConfig struct {
	Path      string `yaml:"path"`
	QueuePath string `yaml:"queue_path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	// AdminKey authorizes pairing-code generation on the host. Env-only.
	AdminKey string `yaml:"-"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := DefaultPath()

	// Missing file is not an error; we just use defaults.
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration back to path in YAML form. Used by the pair
// command to persist the issued device token.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the config file location honored by Load.
func DefaultPath() string {
	return getEnv("LIFELOG_CONFIG_PATH", filepath.Join(baseDir(), "config.yaml"))
}

// baseDir returns the lifelog data directory, ~/.lifelog by default.
func baseDir() string {
	if v := os.Getenv("LIFELOG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lifelog"
	}
	return filepath.Join(home, ".lifelog")
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	dir := baseDir()
	return &Config{
		Deployment: DeploymentConfig{
			Mode: "local",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path:      filepath.Join(dir, "lifelog.db"),
			QueuePath: filepath.Join(dir, "sync_queue.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFELOG_MODE"); v != "" {
		cfg.Deployment.Mode = v
	}
	if v := os.Getenv("LIFELOG_SERVER_URL"); v != "" {
		cfg.Deployment.ServerURL = v
	}
	if v := os.Getenv("LIFELOG_DEVICE_TOKEN"); v != "" {
		cfg.Deployment.DeviceToken = v
	}

	if v := os.Getenv("LIFELOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIFELOG_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LIFELOG_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LIFELOG_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	if v := os.Getenv("LIFELOG_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LIFELOG_QUEUE_PATH"); v != "" {
		cfg.Database.QueuePath = v
	}

	if v := os.Getenv("LIFELOG_ADMIN_KEY"); v != "" {
		cfg.Auth.AdminKey = v
	}

	if v := os.Getenv("LIFELOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIFELOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
func (c *Config) validate() error {
	switch c.Deployment.Mode {
	case "local", "host", "client":
	default:
		return fmt.Errorf("deployment.mode must be local, host, or client, got %q", c.Deployment.Mode)
	}

	if c.Deployment.Mode == "client" && c.Deployment.ServerURL == "" {
		return fmt.Errorf("deployment.server_url is required in client mode")
	}

	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
