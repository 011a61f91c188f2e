package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Source   SourceConfig
	Target   TargetConfig
	Sync     SyncConfig
	Notify   NotifyConfig
	Log      LogConfig
}

// DatabaseConfig holds the local sqlite settings.
type DatabaseConfig struct {
	Path string
}

// SourceConfig holds SimpleFIN bridge settings. Values stored in the settings
// table take precedence over these.
type SourceConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string
	Password string
}

// TargetConfig holds the Maybe postgres connection parameters.
type TargetConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string `mapstructure:"sslmode"`
}

// SyncConfig controls reconciliation passes.
type SyncConfig struct {
	LookbackDays int           `mapstructure:"lookback_days"`
	PassTimeout  time.Duration `mapstructure:"pass_timeout"`
	Concurrency  int
	Schedule     string
}

// NotifyConfig holds webhook delivery settings.
type NotifyConfig struct {
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// ConfigError reports a required setting that has no value anywhere.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
	}
	return fmt.Sprintf("config %s: not set", e.Key)
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Load reads configuration from .env, file and env. Env var overrides use prefix FINBRIDGE_.
func Load() (Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FINBRIDGE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "finbridge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FINBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "finbridge", "finbridge.db"))
	v.SetDefault("source.base_url", "https://beta-bridge.simplefin.org/simplefin")
	v.SetDefault("source.username", "")
	v.SetDefault("source.password", "")
	v.SetDefault("target.host", "")
	v.SetDefault("target.port", "5432")
	v.SetDefault("target.name", "")
	v.SetDefault("target.user", "")
	v.SetDefault("target.password", "")
	v.SetDefault("target.sslmode", "disable")
	v.SetDefault("sync.lookback_days", 7)
	v.SetDefault("sync.pass_timeout", 5*time.Minute)
	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.schedule", "")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return c
}

// ValidateSchedule checks that s looks like a standard 5-field cron expression.
// The scheduler itself lives outside this module.
func ValidateSchedule(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n := len(strings.Fields(s)); n != 5 {
		return &ConfigError{Key: "sync.schedule", Msg: fmt.Sprintf("expected 5 cron fields, got %d", n)}
	}
	return nil
}
