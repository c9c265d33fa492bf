package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/livinlefevreloca/questwatch/internal/db"
	"github.com/livinlefevreloca/questwatch/internal/discord"
	"github.com/livinlefevreloca/questwatch/internal/format"
	"github.com/livinlefevreloca/questwatch/internal/metrics"
	"github.com/livinlefevreloca/questwatch/internal/webhook"
)

// Environment variables that override the file
const (
	EnvAuthorization   = "DISCORD_AUTHORIZATION"
	EnvSuperProperties = "TOKEN_JWT"
	EnvWebhookURL      = "WEBHOOK_URL"
	EnvAlertWebhookURL = "WEBHOOK_URL_ALERT"
	EnvDatabase        = "QUESTWATCH_DB"
)

// Config represents the application configuration
type Config struct {
	Database db.Config      `toml:"database"`
	Discord  discord.Config `toml:"discord"`
	Webhook  webhook.Config `toml:"webhook"`
	Alert    AlertConfig    `toml:"alert"`
	Pass     PassConfig     `toml:"pass"`
	Format   format.Config  `toml:"format"`
	Metrics  metrics.Config `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

// AlertConfig holds the operator alert channel settings
type AlertConfig struct {
	URLs []string `toml:"urls"`
	// FallbackToPrimary sends alerts to the quest webhook when URLs is empty
	FallbackToPrimary bool          `toml:"fallback_to_primary"`
	Username          string        `toml:"username"`
	BufferSize        int           `toml:"buffer_size"`
	SendTimeout       time.Duration `toml:"send_timeout"`
	// DrainTimeout bounds how long queued alerts may delay exit
	DrainTimeout time.Duration `toml:"drain_timeout"`
}

// PassConfig holds the settings of one reconciliation pass
type PassConfig struct {
	FetchTimeout        time.Duration `toml:"fetch_timeout"`
	DeliveryMinInterval time.Duration `toml:"delivery_min_interval"`
	DeliveryTimeout     time.Duration `toml:"delivery_timeout"`
	// MaxNotifyPerPass caps new quests handled per pass, 0 means no cap
	MaxNotifyPerPass int    `toml:"max_notify_per_pass"`
	LockFile         string `toml:"lock_file"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver: "sqlite3",
			DSN:    "seen_quests.db",
		},
		Discord: discord.DefaultConfig(),
		Webhook: webhook.DefaultConfig(),
		Alert: AlertConfig{
			FallbackToPrimary: true,
			Username:          "Quest Alerts",
			BufferSize:        64,
			SendTimeout:       time.Second,
			DrainTimeout:      15 * time.Second,
		},
		Pass: PassConfig{
			FetchTimeout:        30 * time.Second,
			DeliveryMinInterval: time.Second,
			DeliveryTimeout:     15 * time.Second,
			MaxNotifyPerPass:    0,
			LockFile:            "questwatch.lock",
		},
		Format:  format.DefaultConfig(),
		Metrics: metrics.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// ApplyEnv overrides settings from the environment. Set but empty variables
// are ignored so a blank .env entry never wipes a file value.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAuthorization); ok {
		c.Discord.Authorization = v
	}
	if v, ok := get(EnvSuperProperties); ok {
		c.Discord.SuperProperties = v
	}
	if v, ok := get(EnvWebhookURL); ok {
		c.Webhook.URLs = ParseURLList(v)
	}
	if v, ok := get(EnvAlertWebhookURL); ok {
		c.Alert.URLs = ParseURLList(v)
	}
	if v, ok := get(EnvDatabase); ok {
		c.Database.DSN = v
	}
}

// ParseURLList splits a comma or semicolon separated list, dropping blanks
func ParseURLList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// AlertWebhook returns the delivery settings of the alert channel. It shares
// retry settings with the quest channel but never its identity: the URLs
// fall back to the quest URLs only when allowed.
func (c *Config) AlertWebhook() webhook.Config {
	wc := c.Webhook
	wc.Username = c.Alert.Username
	wc.URLs = c.Alert.URLs
	if len(wc.URLs) == 0 && c.Alert.FallbackToPrimary {
		wc.URLs = c.Webhook.URLs
	}
	return wc
}

// HasDiscordTokens reports whether both Discord credentials are set
func (c *Config) HasDiscordTokens() bool {
	return c.Discord.Authorization != "" && c.Discord.SuperProperties != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must be specified")
	}

	// Discord validation
	if c.Discord.BaseURL == "" {
		return fmt.Errorf("discord base_url must be specified")
	}

	// Webhook validation
	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("webhook max_retries must not be negative")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}

	// Alert validation
	if c.Alert.BufferSize <= 0 {
		return fmt.Errorf("alert buffer_size must be positive")
	}

	// Pass validation
	if c.Pass.FetchTimeout <= 0 {
		return fmt.Errorf("pass fetch_timeout must be positive")
	}
	if c.Pass.DeliveryTimeout <= 0 {
		return fmt.Errorf("pass delivery_timeout must be positive")
	}
	if c.Webhook.MaxRetryAfter <= 0 || c.Webhook.MaxRetryAfter >= c.Pass.DeliveryTimeout {
		return fmt.Errorf("webhook max_retry_after must be positive and below pass delivery_timeout (%s)", c.Pass.DeliveryTimeout)
	}
	if c.Pass.DeliveryMinInterval < 0 {
		return fmt.Errorf("pass delivery_min_interval must not be negative")
	}
	if c.Pass.MaxNotifyPerPass < 0 {
		return fmt.Errorf("pass max_notify_per_pass must not be negative")
	}

	// Format validation
	if _, err := time.LoadLocation(c.Format.Timezone); err != nil {
		return fmt.Errorf("invalid format timezone %q: %w", c.Format.Timezone, err)
	}
	if c.Format.Color < 0 || c.Format.Color > 0xFFFFFF {
		return fmt.Errorf("format color must be between 0 and 0xFFFFFF")
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.PushgatewayURL == "" {
		return fmt.Errorf("metrics pushgateway_url must be specified when metrics are enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
