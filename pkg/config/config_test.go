package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestViperEnvVarBinding(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		envVars  map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "environment variable override",
			config: `
chronos:
  log_level: "info"
  poll_interval: "10s"
api:
  base_url: "http://edge.local:8000"
`,
			envVars: map[string]string{
				"CHRONOS_LOG_LEVEL":          "debug",
				"API_BASE_URL":               "http://env.local:9000",
				"CHRONOS_ROLLBACK_OVERRIDES": "false",
				"SINKS_MQTT_TOPIC_PREFIX":    "plant7",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Chronos.LogLevel != "debug" {
					t.Errorf("Expected log_level to be overridden by env var, got %s", cfg.Chronos.LogLevel)
				}
				if cfg.API.BaseURL != "http://env.local:9000" {
					t.Errorf("Expected base_url to be overridden by env var, got %s", cfg.API.BaseURL)
				}
				if cfg.Chronos.RollbackOverrides {
					t.Error("Expected rollback_overrides to be overridden to false")
				}
				if cfg.Sinks.MQTT.TopicPrefix != "plant7" {
					t.Errorf("Expected topic_prefix plant7, got %s", cfg.Sinks.MQTT.TopicPrefix)
				}
				if cfg.Chronos.PollInterval != 10*time.Second {
					t.Errorf("Expected poll_interval from file, got %v", cfg.Chronos.PollInterval)
				}
			},
		},
		{
			name: "default values from Viper",
			config: `
api:
  base_url: "http://edge.local:8000"
`,
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Chronos.Timezone != "America/Chicago" {
					t.Errorf("Expected default timezone America/Chicago, got %s", cfg.Chronos.Timezone)
				}
				if cfg.Chronos.LogLevel != "info" {
					t.Errorf("Expected default log_level info, got %s", cfg.Chronos.LogLevel)
				}
				if !cfg.Chronos.RollbackOverrides {
					t.Error("Expected rollback_overrides to default to true")
				}
				if cfg.API.OverrideDialect != DialectManualOverride {
					t.Errorf("Expected default dialect %s, got %s", DialectManualOverride, cfg.API.OverrideDialect)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			config, err := LoadConfig(writeConfig(t, tt.config))
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}

			tt.validate(t, config)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	configPath := writeConfig(t, `
chronos:
  timezone: "America/New_York"
  poll_interval: "3s"
  countdown_interval: "500ms"
  log_level: "debug"
  listen_addr: "127.0.0.1:9999"

api:
  base_url: "http://edge.local:8000"
  dashboard_path: "/dashboard"
  email: "ops@example.com"
  password: "secret"
  override_dialect: "state"
  breaker:
    consecutive_failures: 3

limits:
  soft_min: 130
  soft_max: 170

sinks:
  sqlite:
    enabled: true
    path: "/tmp/journal.db"
  mqtt:
    enabled: true
    broker: "tcp://broker:1883"
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Chronos.Timezone != "America/New_York" {
		t.Errorf("Expected timezone America/New_York, got %s", config.Chronos.Timezone)
	}
	if config.Chronos.PollInterval != 3*time.Second {
		t.Errorf("Expected poll interval 3s, got %v", config.Chronos.PollInterval)
	}
	if config.Chronos.CountdownInterval != 500*time.Millisecond {
		t.Errorf("Expected countdown interval 500ms, got %v", config.Chronos.CountdownInterval)
	}
	if config.Chronos.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("Expected listen addr, got %s", config.Chronos.ListenAddr)
	}
	if config.API.DashboardPath != "/dashboard" {
		t.Errorf("Expected dashboard path /dashboard, got %s", config.API.DashboardPath)
	}
	if config.API.OverrideDialect != DialectState {
		t.Errorf("Expected dialect state, got %s", config.API.OverrideDialect)
	}
	if config.API.Breaker.ConsecutiveFailures != 3 {
		t.Errorf("Expected 3 consecutive failures, got %d", config.API.Breaker.ConsecutiveFailures)
	}
	if config.API.Breaker.Timeout != 30*time.Second {
		t.Errorf("Expected default breaker timeout, got %v", config.API.Breaker.Timeout)
	}
	if config.Limits.HardMin != 120 || config.Limits.HardMax != 180 {
		t.Errorf("Expected default hard limits, got %v..%v", config.Limits.HardMin, config.Limits.HardMax)
	}
	if config.Limits.SoftMin != 130 || config.Limits.SoftMax != 170 {
		t.Errorf("Expected soft limits 130..170, got %v..%v", config.Limits.SoftMin, config.Limits.SoftMax)
	}

	sinks := config.EnabledSinks()
	if len(sinks) != 2 || sinks[0] != "sqlite" || sinks[1] != "mqtt" {
		t.Errorf("Expected sqlite and mqtt enabled, got %v", sinks)
	}
	if config.Location().String() != "America/New_York" {
		t.Errorf("Expected location America/New_York, got %s", config.Location())
	}
}

func TestLoadConfigWithDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "api:\n  email: \"ops@example.com\"\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Chronos.PollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval 5s, got %v", config.Chronos.PollInterval)
	}
	if config.Chronos.CountdownInterval != time.Second {
		t.Errorf("Expected default countdown interval 1s, got %v", config.Chronos.CountdownInterval)
	}
	if config.Chronos.BannerTTL != 30*time.Second {
		t.Errorf("Expected default banner ttl 30s, got %v", config.Chronos.BannerTTL)
	}
	if config.Chronos.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %s", config.Chronos.ListenAddr)
	}
	if config.API.RefreshLeeway != 30*time.Second {
		t.Errorf("Expected default refresh leeway 30s, got %v", config.API.RefreshLeeway)
	}
	if len(config.EnabledSinks()) != 0 {
		t.Errorf("Expected no sinks enabled by default, got %v", config.EnabledSinks())
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      "api:\n  base_url: \"http://edge.local\"\n",
			expectError: false,
		},
		{
			name:        "invalid log level",
			config:      "chronos:\n  log_level: \"invalid\"\n",
			expectError: true,
			errorMsg:    "invalid log_level",
		},
		{
			name:        "poll interval too short",
			config:      "chronos:\n  poll_interval: \"100ms\"\n",
			expectError: true,
			errorMsg:    "poll_interval must be at least 1 second",
		},
		{
			name:        "negative banner ttl",
			config:      "chronos:\n  banner_ttl: \"-1s\"\n",
			expectError: true,
			errorMsg:    "banner_ttl must not be negative",
		},
		{
			name:        "unknown dialect",
			config:      "api:\n  override_dialect: \"relay\"\n",
			expectError: true,
			errorMsg:    "invalid override_dialect",
		},
		{
			name:        "soft limits outside hard limits",
			config:      "limits:\n  soft_min: 100\n",
			expectError: true,
			errorMsg:    "soft limits must lie within the hard limits",
		},
		{
			name:        "unknown timezone",
			config:      "chronos:\n  timezone: \"Mars/Olympus\"\n",
			expectError: true,
			errorMsg:    "invalid timezone",
		},
		{
			name:        "sqlite enabled without path",
			config:      "sinks:\n  sqlite:\n    enabled: true\n    path: \"\"\n",
			expectError: true,
			errorMsg:    "sinks.sqlite.path is required",
		},
		{
			name:        "missing file",
			config:      "",
			expectError: true,
			errorMsg:    "reading config file",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.config != "" {
				configPath = writeConfig(t, tt.config)
			}

			_, err := LoadConfig(configPath)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error message to contain %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestCreateExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chronos.yaml")
	if err := CreateExampleConfig(path); err != nil {
		t.Fatalf("Failed to create example config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Example config does not load: %v", err)
	}
	if config.Chronos.PollInterval != 5*time.Second {
		t.Errorf("Expected poll interval 5s, got %v", config.Chronos.PollInterval)
	}
	if !config.Sinks.SQLite.Enabled {
		t.Error("Expected the example to enable the sqlite journal")
	}
}
