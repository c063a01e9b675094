package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Ironlatch Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	UserCode UserCodeConfig `yaml:"usercode"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// GatewayConfig contains settings for the entry-control gateway that
// bridges MQTT to the device network.
type GatewayConfig struct {
	// TopicPrefix is the root of the gateway's MQTT topic tree.
	TopicPrefix string `yaml:"topic_prefix"`

	// ResponseTimeout is how long to wait for a report, in seconds.
	ResponseTimeout int `yaml:"response_timeout"`

	// Locks lists the entry-control endpoints to manage.
	Locks []LockConfig `yaml:"locks"`
}

// LockConfig identifies one managed entry-control endpoint.
type LockConfig struct {
	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// NodeID is the device's network node identifier.
	NodeID int `yaml:"node_id"`

	// Endpoint is the addressable sub-unit exposing user codes.
	Endpoint int `yaml:"endpoint"`

	// ProtocolVersion is the user-code protocol generation (1 or 2+).
	ProtocolVersion int `yaml:"protocol_version"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// UserCodeConfig contains user-code module behaviour settings.
type UserCodeConfig struct {
	// ClearCodeNullPadding sends four null characters instead of an empty
	// code when clearing a slot. Some devices require the padding.
	ClearCodeNullPadding bool `yaml:"clear_code_null_padding"`

	// ResyncInterval is how often to re-run synchronization, in minutes.
	// 0 disables periodic resync.
	ResyncInterval int `yaml:"resync_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IRONLATCH_SECTION_KEY
// For example: IRONLATCH_DATABASE_PATH, IRONLATCH_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Ironlatch",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/ironlatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ironlatch-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Gateway: GatewayConfig{
			TopicPrefix:     "ironlatch",
			ResponseTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		UserCode: UserCodeConfig{
			ClearCodeNullPadding: true,
			ResyncInterval:       60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRONLATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IRONLATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IRONLATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRONLATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRONLATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("IRONLATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Gateway validation
	if c.Gateway.TopicPrefix == "" {
		errs = append(errs, "gateway.topic_prefix is required")
	}
	if c.Gateway.ResponseTimeout < 1 {
		errs = append(errs, "gateway.response_timeout must be at least 1 second")
	}
	for i, lock := range c.Gateway.Locks {
		if lock.NodeID < 1 {
			errs = append(errs, fmt.Sprintf("gateway.locks[%d].node_id must be at least 1", i))
		}
		if lock.Endpoint < 0 || lock.Endpoint > 255 {
			errs = append(errs, fmt.Sprintf("gateway.locks[%d].endpoint must be between 0 and 255", i))
		}
		if lock.ProtocolVersion < 1 {
			errs = append(errs, fmt.Sprintf("gateway.locks[%d].protocol_version must be at least 1", i))
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetResponseTimeout returns the gateway response timeout as a Duration.
func (c *Config) GetResponseTimeout() time.Duration {
	return time.Duration(c.Gateway.ResponseTimeout) * time.Second
}

// GetResyncInterval returns the periodic resync interval as a Duration.
// Zero means periodic resync is disabled.
func (c *Config) GetResyncInterval() time.Duration {
	return time.Duration(c.UserCode.ResyncInterval) * time.Minute
}
