package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // naive backend timestamps are plant-local

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Override wire dialects
const (
	DialectState          = "state"
	DialectManualOverride = "manual_override"
)

// Config represents the complete application configuration
type Config struct {
	Chronos ChronosConfig `mapstructure:"chronos" yaml:"chronos"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Sinks   SinksConfig   `mapstructure:"sinks" yaml:"sinks"`
}

// ChronosConfig contains core application settings
type ChronosConfig struct {
	Timezone          string        `mapstructure:"timezone" yaml:"timezone"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	CountdownInterval time.Duration `mapstructure:"countdown_interval" yaml:"countdown_interval"`
	BannerTTL         time.Duration `mapstructure:"banner_ttl" yaml:"banner_ttl"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RollbackOverrides bool          `mapstructure:"rollback_overrides" yaml:"rollback_overrides"`
	DisplayUnit       string        `mapstructure:"display_unit" yaml:"display_unit"`
}

// APIConfig describes the dashboard backend and how to authenticate against it
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	DashboardPath   string        `mapstructure:"dashboard_path" yaml:"dashboard_path"`
	Email           string        `mapstructure:"email" yaml:"email"`
	Password        string        `mapstructure:"password" yaml:"password"`
	AccessToken     string        `mapstructure:"access_token" yaml:"access_token,omitempty"`
	RefreshToken    string        `mapstructure:"refresh_token" yaml:"refresh_token,omitempty"`
	RefreshLeeway   time.Duration `mapstructure:"refresh_leeway" yaml:"refresh_leeway"`
	OverrideDialect string        `mapstructure:"override_dialect" yaml:"override_dialect"`
	Breaker         BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the backend
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval            time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" yaml:"consecutive_failures"`
}

// LimitsConfig holds the setpoint limits in °F used before the backend reports its own
type LimitsConfig struct {
	HardMin float64 `mapstructure:"hard_min" yaml:"hard_min"`
	HardMax float64 `mapstructure:"hard_max" yaml:"hard_max"`
	SoftMin float64 `mapstructure:"soft_min" yaml:"soft_min"`
	SoftMax float64 `mapstructure:"soft_max" yaml:"soft_max"`
}

// SinksConfig contains the archive sinks
type SinksConfig struct {
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	InfluxDB InfluxDBConfig `mapstructure:"influxdb" yaml:"influxdb"`
	MQTT     MQTTConfig     `mapstructure:"mqtt" yaml:"mqtt"`
}

// SQLiteConfig configures the local history journal
type SQLiteConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// InfluxDBConfig configures the time-series sink
type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Token   string `mapstructure:"token" yaml:"token"`
	Org     string `mapstructure:"org" yaml:"org"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket"`
}

// MQTTConfig configures the event fan-out sink
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `mapstructure:"qos" yaml:"qos"`
}

// LoadConfig loads configuration from a YAML file. Every key can be overridden
// from the environment using its path joined by underscores (CHRONOS_LOG_LEVEL).
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &config, nil
}

// setDefaults registers a default for every key so AutomaticEnv can see it
func setDefaults(v *viper.Viper) {
	v.SetDefault("chronos.timezone", "America/Chicago")
	v.SetDefault("chronos.poll_interval", 5*time.Second)
	v.SetDefault("chronos.countdown_interval", time.Second)
	v.SetDefault("chronos.banner_ttl", 30*time.Second)
	v.SetDefault("chronos.request_timeout", 10*time.Second)
	v.SetDefault("chronos.log_level", "info")
	v.SetDefault("chronos.listen_addr", ":8080")
	v.SetDefault("chronos.rollback_overrides", true)
	v.SetDefault("chronos.display_unit", "fahrenheit")

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.dashboard_path", "/")
	v.SetDefault("api.email", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.access_token", "")
	v.SetDefault("api.refresh_token", "")
	v.SetDefault("api.refresh_leeway", 30*time.Second)
	v.SetDefault("api.override_dialect", DialectManualOverride)
	v.SetDefault("api.breaker.max_requests", 1)
	v.SetDefault("api.breaker.interval", time.Minute)
	v.SetDefault("api.breaker.timeout", 30*time.Second)
	v.SetDefault("api.breaker.consecutive_failures", 5)

	v.SetDefault("limits.hard_min", 120.0)
	v.SetDefault("limits.hard_max", 180.0)
	v.SetDefault("limits.soft_min", 120.0)
	v.SetDefault("limits.soft_max", 180.0)

	v.SetDefault("sinks.sqlite.enabled", false)
	v.SetDefault("sinks.sqlite.path", "chronos-journal.db")
	v.SetDefault("sinks.influxdb.enabled", false)
	v.SetDefault("sinks.influxdb.url", "http://localhost:8086")
	v.SetDefault("sinks.influxdb.token", "")
	v.SetDefault("sinks.influxdb.org", "")
	v.SetDefault("sinks.influxdb.bucket", "chronos")
	v.SetDefault("sinks.mqtt.enabled", false)
	v.SetDefault("sinks.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("sinks.mqtt.client_id", "chronos-console")
	v.SetDefault("sinks.mqtt.username", "")
	v.SetDefault("sinks.mqtt.password", "")
	v.SetDefault("sinks.mqtt.topic_prefix", "chronos")
	v.SetDefault("sinks.mqtt.qos", 1)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Chronos.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1 second")
	}
	if config.Chronos.CountdownInterval <= 0 {
		return fmt.Errorf("countdown_interval must be positive")
	}
	if config.Chronos.BannerTTL < 0 {
		return fmt.Errorf("banner_ttl must not be negative")
	}
	if config.Chronos.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if _, err := time.LoadLocation(config.Chronos.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %s: %w", config.Chronos.Timezone, err)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.Chronos.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", config.Chronos.LogLevel)
	}

	switch strings.ToLower(config.Chronos.DisplayUnit) {
	case "fahrenheit", "celsius":
	default:
		return fmt.Errorf("invalid display_unit: %s, must be fahrenheit or celsius", config.Chronos.DisplayUnit)
	}

	if config.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch config.API.OverrideDialect {
	case DialectState, DialectManualOverride:
	default:
		return fmt.Errorf("invalid override_dialect: %s, must be %s or %s",
			config.API.OverrideDialect, DialectState, DialectManualOverride)
	}

	if config.Limits.HardMin >= config.Limits.HardMax {
		return fmt.Errorf("limits.hard_min must be below limits.hard_max")
	}
	if config.Limits.SoftMin < config.Limits.HardMin || config.Limits.SoftMax > config.Limits.HardMax ||
		config.Limits.SoftMin > config.Limits.SoftMax {
		return fmt.Errorf("soft limits must lie within the hard limits")
	}

	if config.Sinks.SQLite.Enabled && config.Sinks.SQLite.Path == "" {
		return fmt.Errorf("sinks.sqlite.path is required when the sqlite sink is enabled")
	}
	if config.Sinks.InfluxDB.Enabled && (config.Sinks.InfluxDB.URL == "" || config.Sinks.InfluxDB.Bucket == "") {
		return fmt.Errorf("sinks.influxdb.url and bucket are required when the influxdb sink is enabled")
	}
	if config.Sinks.MQTT.Enabled && config.Sinks.MQTT.Broker == "" {
		return fmt.Errorf("sinks.mqtt.broker is required when the mqtt sink is enabled")
	}
	if config.Sinks.MQTT.QoS > 2 {
		return fmt.Errorf("sinks.mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

// Location returns the timezone naive backend timestamps are interpreted in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Chronos.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EnabledSinks returns the names of all enabled sinks
func (c *Config) EnabledSinks() []string {
	var enabled []string
	if c.Sinks.SQLite.Enabled {
		enabled = append(enabled, "sqlite")
	}
	if c.Sinks.InfluxDB.Enabled {
		enabled = append(enabled, "influxdb")
	}
	if c.Sinks.MQTT.Enabled {
		enabled = append(enabled, "mqtt")
	}
	return enabled
}

// CreateExampleConfig creates an example configuration file
func CreateExampleConfig(path string) error {
	config := Config{
		Chronos: ChronosConfig{
			Timezone:          "America/Chicago",
			PollInterval:      5 * time.Second,
			CountdownInterval: time.Second,
			BannerTTL:         30 * time.Second,
			RequestTimeout:    10 * time.Second,
			LogLevel:          "info",
			ListenAddr:        ":8080",
			RollbackOverrides: true,
			DisplayUnit:       "fahrenheit",
		},
		API: APIConfig{
			BaseURL:         "http://chronos.local:8000",
			DashboardPath:   "/",
			Email:           "operator@example.com",
			Password:        "change-me",
			RefreshLeeway:   30 * time.Second,
			OverrideDialect: DialectManualOverride,
			Breaker: BreakerConfig{
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 5,
			},
		},
		Limits: LimitsConfig{HardMin: 120, HardMax: 180, SoftMin: 120, SoftMax: 180},
		Sinks: SinksConfig{
			SQLite: SQLiteConfig{Enabled: true, Path: "chronos-journal.db"},
			InfluxDB: InfluxDBConfig{
				URL:    "http://localhost:8086",
				Token:  "influx-token",
				Org:    "plant",
				Bucket: "chronos",
			},
			MQTT: MQTTConfig{
				Broker:      "tcp://localhost:1883",
				ClientID:    "chronos-console",
				TopicPrefix: "chronos",
				QoS:         1,
			},
		},
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing example config: %w", err)
	}

	return nil
}
