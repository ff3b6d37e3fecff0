package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Freebox Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	App      AppConfig      `yaml:"app"`
	Poll     PollConfig     `yaml:"poll"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies one physical router on the local network.
// Immutable after setup.
type DeviceConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// UseHTTPS selects the scheme for the local API. The router presents a
	// self-signed certificate, so HTTPS connections skip verification.
	UseHTTPS bool `yaml:"use_https"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// AppConfig is the application identity presented to the router during
// registration. The router shows AppName and DeviceName on its front panel
// when asking the user to confirm access.
type AppConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	DeviceName string `yaml:"device_name"`
}

// PollConfig controls the periodic state fetch.
type PollConfig struct {
	// Interval is the poll period in seconds.
	Interval int `yaml:"interval"`

	// ResourceTimeout is the per-resource fetch timeout in seconds.
	ResourceTimeout int `yaml:"resource_timeout"`

	// StaleAfter is the snapshot age in seconds past which the snapshot is
	// flagged stale when every fetch in a cycle fails.
	StaleAfter int `yaml:"stale_after"`

	// TrackLanDevices enables polling the LAN browser for connected hosts.
	TrackLanDevices bool `yaml:"track_lan_devices"`

	// TrackCallLog enables polling the phone call log.
	TrackCallLog bool `yaml:"track_call_log"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
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

// InfluxDBConfig contains InfluxDB connection settings for connection metrics.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FBXBRIDGE_SECTION_KEY
// For example: FBXBRIDGE_DEVICE_HOST, FBXBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The default port matches the router's local API; only device.host has no
// usable default.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:           46535,
			UseHTTPS:       true,
			RequestTimeout: 10,
		},
		App: AppConfig{
			ID:         "freebox_bridge",
			Name:       "Freebox Bridge",
			Version:    "1.0.0",
			DeviceName: "Freebox Bridge",
		},
		Poll: PollConfig{
			Interval:        30,
			ResourceTimeout: 10,
			StaleAfter:      300,
			TrackLanDevices: true,
		},
		Database: DatabaseConfig{
			Path: "./data/freebox-bridge.db",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "freebox-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FBXBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("FBXBRIDGE_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}
	if v := os.Getenv("FBXBRIDGE_DEVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Device.Port = port
		}
	}

	// Database
	if v := os.Getenv("FBXBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FBXBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FBXBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FBXBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FBXBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Host == "" {
		errs = append(errs, "device.host is required")
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.App.ID == "" {
		errs = append(errs, "app.id is required")
	}

	// A very short interval hammers the router and trips its rate limiting.
	const minPollInterval = 5
	if c.Poll.Interval < minPollInterval {
		errs = append(errs, fmt.Sprintf("poll.interval must be at least %d seconds", minPollInterval))
	}
	if c.Poll.ResourceTimeout < 1 {
		errs = append(errs, "poll.resource_timeout must be at least 1 second")
	}
	if c.Poll.StaleAfter < c.Poll.Interval {
		errs = append(errs, "poll.stale_after must be at least poll.interval")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the per-request device timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Device.RequestTimeout) * time.Second
}

// GetPollInterval returns the poll period as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

// GetResourceTimeout returns the per-resource fetch timeout as a Duration.
func (c *Config) GetResourceTimeout() time.Duration {
	return time.Duration(c.Poll.ResourceTimeout) * time.Second
}

// GetStaleAfter returns the snapshot staleness threshold as a Duration.
func (c *Config) GetStaleAfter() time.Duration {
	return time.Duration(c.Poll.StaleAfter) * time.Second
}
