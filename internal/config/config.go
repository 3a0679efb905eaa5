// Package config loads finsync settings from defaults, an optional YAML file,
// a .env file and FINSYNC_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FINSYNC_REMOTE_URL.
const EnvPrefix = "FINSYNC"

// Config is the full settings tree.
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Local   LocalConfig   `mapstructure:"local"`
	Workers WorkersConfig `mapstructure:"workers"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// RemoteConfig points at the table service.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// LocalConfig locates the encrypted wallet files.
type LocalConfig struct {
	DataDir string `mapstructure:"data_dir"`
	Secret  string `mapstructure:"secret"`
}

// Validate reports a missing secret. Only commands that open the wallet
// files need one, so it is not part of Config.Validate.
func (l LocalConfig) Validate() error {
	if l.Secret == "" {
		return fmt.Errorf("local.secret is empty: set %s_LOCAL_SECRET or local.secret in the config file", EnvPrefix)
	}
	return nil
}

// WorkersConfig sizes the background pool.
type WorkersConfig struct {
	Size    int           `mapstructure:"size"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig configures the development table server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	APIKey   string `mapstructure:"api_key"`
	DataFile string `mapstructure:"data_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.url", "http://localhost:7002")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.retries", 2)

	v.SetDefault("local.data_dir", "./data")
	v.SetDefault("local.secret", "")

	v.SetDefault("workers.size", 4)
	v.SetDefault("workers.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 7002)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.data_file", "./data/tables.json")
}

// Load reads the configuration. configPath may be empty; a missing .env
// file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Remote.Retries < 0 {
		errs = append(errs, errors.New("remote.retries must not be negative"))
	}
	if c.Workers.Size < 1 {
		errs = append(errs, errors.New("workers.size must be at least 1"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
