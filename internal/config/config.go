// Package config loads registro settings from defaults, an optional
// registro.toml or registro.yaml file and REGISTRO_* environment variables,
// in increasing order of precedence.
//
// Keys are dotted (database.path); the matching environment variable is
// upper-cased with dots replaced by underscores (REGISTRO_DATABASE_PATH).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "REGISTRO"

// Drivers accepted by database.driver.
const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

// Config is the full set of settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Inbox    InboxConfig    `mapstructure:"inbox"`
	Changes  ChangesConfig  `mapstructure:"changes"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig is the realtime websocket server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// InboxConfig is the import inbox watcher.
type InboxConfig struct {
	Dir          string        `mapstructure:"dir"`
	ProcessedDir string        `mapstructure:"processed_dir"`
	Debounce     time.Duration `mapstructure:"debounce"`
}

// ChangesConfig is the change log feed.
type ChangesConfig struct {
	Limit        int           `mapstructure:"limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "registro.db"},
		Log:      LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Server:   ServerConfig{Port: 8080},
		Inbox:    InboxConfig{Dir: "inbox", ProcessedDir: filepath.Join("inbox", "processed"), Debounce: 500 * time.Millisecond},
		Changes:  ChangesConfig{Limit: 50, PollInterval: 500 * time.Millisecond},
	}
}

// settings flattens c into sections of key/value pairs. Durations are
// written as strings ("500ms").
func (c *Config) settings() map[string]map[string]any {
	return map[string]map[string]any{
		"database": {
			"driver":     c.Database.Driver,
			"path":       c.Database.Path,
			"url":        c.Database.URL,
			"auth_token": c.Database.AuthToken,
		},
		"log": {
			"file":         c.Log.File,
			"max_size_mb":  c.Log.MaxSizeMB,
			"max_backups":  c.Log.MaxBackups,
			"max_age_days": c.Log.MaxAgeDays,
			"compress":     c.Log.Compress,
		},
		"server": {
			"port": c.Server.Port,
		},
		"inbox": {
			"dir":           c.Inbox.Dir,
			"processed_dir": c.Inbox.ProcessedDir,
			"debounce":      c.Inbox.Debounce.String(),
		},
		"changes": {
			"limit":         c.Changes.Limit,
			"poll_interval": c.Changes.PollInterval.String(),
		},
	}
}

func setDefaults(v *viper.Viper) {
	for section, values := range Default().settings() {
		for key, value := range values {
			v.SetDefault(section+"."+key, value)
		}
	}
}

// Load reads the configuration. With an empty path, registro.toml or
// registro.yaml is looked up in the working directory and then in
// $XDG_CONFIG_HOME/registro; not finding one is not an error. A path that
// is given must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("registro")
		v.AddConfigPath(".")
		if dir := configHome(); dir != "" {
			v.AddConfigPath(filepath.Join(dir, "registro"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would only fail later at use.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("invalid config: database.path is required for the sqlite driver")
		}
	case DriverLibSQL:
		if c.Database.URL == "" {
			return fmt.Errorf("invalid config: database.url is required for the libsql driver")
		}
	default:
		return fmt.Errorf("invalid config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

// WriteTOML encodes c as a TOML document.
func (c *Config) WriteTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c.settings()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// WriteDefault writes the default settings to path. An existing file is
// left alone and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := Default().WriteTOML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
