// Package config provides configuration management for the notetakerd daemon.
// It supports loading configuration from a YAML file and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderKind identifies which external bot vendor backs the bot service.
type ProviderKind string

const (
	// ProviderRecall selects the Recall.ai adapter.
	ProviderRecall ProviderKind = "recall"
	// ProviderMeetingBaas selects the Meeting BaaS adapter.
	ProviderMeetingBaas ProviderKind = "meeting_baas"
)

// Default configuration values.
const (
	DefaultProvider           = ProviderMeetingBaas
	DefaultRecallRegion       = "us-west-2"
	DefaultBotDisplayName     = "Notetaker Bot"
	DefaultDispatchInterval   = 1 * time.Minute
	DefaultPollInterval       = 1 * time.Minute
	DefaultAutoPostInterval   = 5 * time.Minute
	DefaultTeardownGraceDelay = 5 * time.Minute
	DefaultVendorTimeout      = 10 * time.Second
	DefaultConfigDir          = ".notetakerd"
	DefaultConfigFile         = "config.yaml"
	DefaultRedisAddr          = "localhost:6379"
)

// SchedulerConfig holds the scheduling loop cadence settings.
type SchedulerConfig struct {
	// DispatchInterval is how often the dispatch-check tick runs.
	DispatchInterval time.Duration `yaml:"dispatch_interval"`

	// PollInterval is how often the transcript-poll tick runs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// AutoPostInterval is how often the auto-posting pipeline runs.
	AutoPostInterval time.Duration `yaml:"auto_post_interval"`

	// TeardownGraceDelay is how long to wait after a transcript is confirmed
	// stored before deleting vendor bot resources.
	TeardownGraceDelay time.Duration `yaml:"teardown_grace_delay"`
}

// RedisConfig holds Redis connection settings for the deferred job queue.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`

	// Password is the Redis password, if any.
	Password string `yaml:"password,omitempty"`

	// DB is the Redis database number.
	DB int `yaml:"db,omitempty"`
}

// Config holds the notetakerd configuration settings.
type Config struct {
	// Provider selects the active bot vendor. The scheduler and router read
	// this value on every operation, so changing it takes effect on the next
	// tick without a restart.
	Provider ProviderKind `yaml:"provider"`

	// RecallRegion is the Recall.ai API region (e.g. us-west-2).
	RecallRegion string `yaml:"recall_region"`

	// BotDisplayName is the name the bot joins meetings with. The meeting
	// title is appended per dispatch.
	BotDisplayName string `yaml:"bot_display_name"`

	// VendorTimeout bounds every vendor HTTP call so a hung vendor cannot
	// stall a whole tick.
	VendorTimeout time.Duration `yaml:"vendor_timeout"`

	// Scheduler holds tick cadence settings.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Redis holds deferred-job queue connection settings.
	Redis RedisConfig `yaml:"redis"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`

	// LogJSON enables JSON log output.
	LogJSON bool `yaml:"log_json,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider:       DefaultProvider,
		RecallRegion:   DefaultRecallRegion,
		BotDisplayName: DefaultBotDisplayName,
		VendorTimeout:  DefaultVendorTimeout,
		Scheduler: SchedulerConfig{
			DispatchInterval:   DefaultDispatchInterval,
			PollInterval:       DefaultPollInterval,
			AutoPostInterval:   DefaultAutoPostInterval,
			TeardownGraceDelay: DefaultTeardownGraceDelay,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		LogLevel: "info",
	}
}

// ConfigDir returns the configuration directory path.
// Uses $NTK_CONFIG_DIR if set, otherwise ~/.notetakerd
func ConfigDir() (string, error) {
	if dir := os.Getenv("NTK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.notetakerd/config.yaml or $NTK_CONFIG_DIR/config.yaml)
// 3. Environment variables (NTK_PROVIDER, NTK_RECALL_REGION, ...)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// A temp struct for unmarshaling durations as strings.
	type schedulerFile struct {
		DispatchInterval   string `yaml:"dispatch_interval"`
		PollInterval       string `yaml:"poll_interval"`
		AutoPostInterval   string `yaml:"auto_post_interval"`
		TeardownGraceDelay string `yaml:"teardown_grace_delay"`
	}
	type configFile struct {
		Provider       string        `yaml:"provider"`
		RecallRegion   string        `yaml:"recall_region"`
		BotDisplayName string        `yaml:"bot_display_name"`
		VendorTimeout  string        `yaml:"vendor_timeout"`
		Scheduler      schedulerFile `yaml:"scheduler"`
		Redis          RedisConfig   `yaml:"redis"`
		LogLevel       string        `yaml:"log_level"`
		LogJSON        bool          `yaml:"log_json"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Provider != "" {
		cfg.Provider = ProviderKind(fileCfg.Provider)
	}
	if fileCfg.RecallRegion != "" {
		cfg.RecallRegion = fileCfg.RecallRegion
	}
	if fileCfg.BotDisplayName != "" {
		cfg.BotDisplayName = fileCfg.BotDisplayName
	}
	if fileCfg.VendorTimeout != "" {
		d, err := time.ParseDuration(fileCfg.VendorTimeout)
		if err != nil {
			return fmt.Errorf("parsing vendor_timeout: %w", err)
		}
		cfg.VendorTimeout = d
	}
	if err := overlayDuration(&cfg.Scheduler.DispatchInterval, fileCfg.Scheduler.DispatchInterval, "dispatch_interval"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Scheduler.PollInterval, fileCfg.Scheduler.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Scheduler.AutoPostInterval, fileCfg.Scheduler.AutoPostInterval, "auto_post_interval"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Scheduler.TeardownGraceDelay, fileCfg.Scheduler.TeardownGraceDelay, "teardown_grace_delay"); err != nil {
		return err
	}
	if fileCfg.Redis.Addr != "" {
		cfg.Redis.Addr = fileCfg.Redis.Addr
	}
	if fileCfg.Redis.Password != "" {
		cfg.Redis.Password = fileCfg.Redis.Password
	}
	if fileCfg.Redis.DB != 0 {
		cfg.Redis.DB = fileCfg.Redis.DB
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogJSON {
		cfg.LogJSON = true
	}

	return nil
}

func overlayDuration(dst *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("NTK_PROVIDER"); v != "" {
		cfg.Provider = ProviderKind(v)
	}

	if v := os.Getenv("NTK_RECALL_REGION"); v != "" {
		cfg.RecallRegion = v
	}

	if v := os.Getenv("NTK_BOT_DISPLAY_NAME"); v != "" {
		cfg.BotDisplayName = v
	}

	if v := os.Getenv("NTK_VENDOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.VendorTimeout = d
		}
	}

	if v := os.Getenv("NTK_DISPATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.DispatchInterval = d
		}
	}

	if v := os.Getenv("NTK_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.PollInterval = d
		}
	}

	if v := os.Getenv("NTK_AUTO_POST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.AutoPostInterval = d
		}
	}

	if v := os.Getenv("NTK_TEARDOWN_GRACE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.TeardownGraceDelay = d
		}
	}

	if v := os.Getenv("NTK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("NTK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("NTK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("NTK_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderRecall, ProviderMeetingBaas:
	default:
		return fmt.Errorf("invalid provider %q (must be %q or %q)", c.Provider, ProviderRecall, ProviderMeetingBaas)
	}

	if c.Scheduler.DispatchInterval <= 0 {
		return fmt.Errorf("dispatch_interval must be positive, got %s", c.Scheduler.DispatchInterval)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.Scheduler.PollInterval)
	}
	if c.Scheduler.AutoPostInterval <= 0 {
		return fmt.Errorf("auto_post_interval must be positive, got %s", c.Scheduler.AutoPostInterval)
	}
	if c.Scheduler.TeardownGraceDelay < 0 {
		return fmt.Errorf("teardown_grace_delay must not be negative, got %s", c.Scheduler.TeardownGraceDelay)
	}
	if c.VendorTimeout <= 0 {
		return fmt.Errorf("vendor_timeout must be positive, got %s", c.VendorTimeout)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	return nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
