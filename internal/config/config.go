package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aqlens/airsync/internal/notify"
)

type Config struct {
	Location string        `mapstructure:"location"`
	Push     PushConfig    `mapstructure:"push"`
	Pull     PullConfig    `mapstructure:"pull"`
	Store    StoreConfig   `mapstructure:"store"`
	Bridge   BridgeConfig  `mapstructure:"bridge"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Notify   NotifyConfig  `mapstructure:"notify"`
}

type PushConfig struct {
	URL            string `mapstructure:"url"`
	Preferred      bool   `mapstructure:"preferred"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	HeartbeatSec   int    `mapstructure:"heartbeat_sec"`
	BackoffBaseSec int    `mapstructure:"backoff_base_sec"`
	BackoffCapSec  int    `mapstructure:"backoff_cap_sec"`
}

type PullConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	IntervalSec   int    `mapstructure:"interval_sec"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
	RetryCount    int    `mapstructure:"retry_count"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type BridgeConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("location", "Delhi")
	v.SetDefault("push.url", "ws://localhost:8080/ws")
	v.SetDefault("push.preferred", true)
	v.SetDefault("push.max_attempts", 5)
	v.SetDefault("push.heartbeat_sec", 15)
	v.SetDefault("push.backoff_base_sec", 1)
	v.SetDefault("push.backoff_cap_sec", 30)
	v.SetDefault("pull.base_url", "http://localhost:8080")
	v.SetDefault("pull.interval_sec", 30)
	v.SetDefault("pull.timeout_sec", 10)
	v.SetDefault("pull.rate_per_second", 2)
	v.SetDefault("pull.retry_count", 3)
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "airsync.db")
	v.SetDefault("bridge.addr", ":8090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "satellite")

	// Environment variable support
	v.SetEnvPrefix("AIRSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("notify.token", "AIRSYNC_NOTIFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Location == "" {
		return fmt.Errorf("location is required (set AIRSYNC_LOCATION env var)")
	}
	if c.Push.MaxAttempts < 1 {
		return fmt.Errorf("push.max_attempts must be >= 1")
	}
	if c.Pull.IntervalSec < 1 {
		return fmt.Errorf("pull.interval_sec must be >= 1")
	}
	if c.Push.BackoffCapSec < c.Push.BackoffBaseSec {
		return fmt.Errorf("push.backoff_cap_sec must be >= push.backoff_base_sec")
	}
	return c.NotifyConfig().Validate()
}

// PollInterval returns the pull cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pull.IntervalSec) * time.Second
}

// Heartbeat returns the push keepalive cadence as a duration.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Push.HeartbeatSec) * time.Second
}

// NotifyConfig maps the notify section onto the notifier's own config type.
func (c *Config) NotifyConfig() *notify.Config {
	return &notify.Config{
		Enabled:  c.Notify.Enabled,
		Server:   c.Notify.Server,
		Topic:    c.Notify.Topic,
		Priority: c.Notify.Priority,
		Tags:     c.Notify.Tags,
		Token:    c.Notify.Token,
	}
}
