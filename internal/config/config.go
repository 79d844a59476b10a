package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/worktimer/internal/kvstore"
)

// Default config file path.
const DefaultConfigPath = "~/.config/worktimer/config.yaml"

// EnvPrefix prefixes environment overrides, e.g. WORKTIMER_DAEMON_PORT.
const EnvPrefix = "WORKTIMER"

// Config holds all worktimer configuration.
type Config struct {
	Timer    TimerConfig    `yaml:"timer" mapstructure:"timer"`
	Observer ObserverConfig `yaml:"observer" mapstructure:"observer"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Daemon   DaemonConfig   `yaml:"daemon" mapstructure:"daemon"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Summary  SummaryConfig  `yaml:"summary" mapstructure:"summary"`
}

type TimerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
}

type ObserverConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

type StorageConfig struct {
	Path              string `yaml:"path" mapstructure:"path"`
	SQLiteFile        string `yaml:"sqlite_file" mapstructure:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode" mapstructure:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	AuthToken      string `yaml:"auth_token" mapstructure:"auth_token"`
	MaxRequestSize int64  `yaml:"max_request_size" mapstructure:"max_request_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" mapstructure:"level"`
	File     string `yaml:"file" mapstructure:"file"`
	AuditLog bool   `yaml:"audit_log" mapstructure:"audit_log"`
}

type SummaryConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Load reads a YAML config file at path and merges it over the defaults.
// WORKTIMER_* environment variables override both.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newViper returns a viper instance seeded with every default key, so that
// environment overrides apply even to keys the file leaves out.
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshaling default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("reading default config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Validate checks values the rest of the program depends on.
func (c *Config) Validate() error {
	if c.Timer.TickInterval <= 0 {
		return fmt.Errorf("timer.tick_interval must be positive, got %s", c.Timer.TickInterval)
	}
	if c.Observer.PollInterval <= 0 {
		return fmt.Errorf("observer.poll_interval must be positive, got %s", c.Observer.PollInterval)
	}
	if !kvstore.ValidJournalMode(c.Storage.SQLiteJournalMode) {
		return fmt.Errorf("storage.sqlite_journal_mode must be one of wal, delete, truncate, persist; got %q", c.Storage.SQLiteJournalMode)
	}
	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a logging.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: unknown level %q", s)
	}
	return l, nil
}

// DataDir returns the expanded storage directory.
func (c *Config) DataDir() (string, error) {
	return expandPath(c.Storage.Path)
}

// DBPath returns the full path of the SQLite database.
func (c *Config) DBPath() (string, error) {
	return c.underDataDir(c.Storage.SQLiteFile)
}

// LogPath returns the daemon log file path, or "" when logging.file is empty.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	return c.underDataDir(c.Logging.File)
}

func (c *Config) underDataDir(name string) (string, error) {
	name, err := expandPath(name)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DaemonAddr is the host:port the daemon listens on.
func (c *Config) DaemonAddr() string {
	return net.JoinHostPort(c.Daemon.Host, strconv.Itoa(c.Daemon.Port))
}

// DaemonURL is the base URL clients use to reach the daemon.
func (c *Config) DaemonURL() string {
	return "http://" + c.DaemonAddr()
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// ResolvePath returns path, or the expanded default path when path is empty.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	return expandPath(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		// 0600: the file may later hold daemon.auth_token
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	return Load(path)
}
