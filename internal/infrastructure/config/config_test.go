package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes a config file into a temp dir and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

const validYAML = `
device:
  host: "192.168.1.254"
  port: 46535
  use_https: true
mqtt:
  broker:
    host: "localhost"
    port: 1883
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Device.Host != "192.168.1.254" {
		t.Errorf("Device.Host = %q, want %q", cfg.Device.Host, "192.168.1.254")
	}
	if cfg.Device.Port != 46535 {
		t.Errorf("Device.Port = %d, want 46535", cfg.Device.Port)
	}
	if !cfg.Device.UseHTTPS {
		t.Error("Device.UseHTTPS = false, want true")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Poll.Interval != 30 {
		t.Errorf("Poll.Interval default = %d, want 30", cfg.Poll.Interval)
	}
	if cfg.App.ID != "freebox_bridge" {
		t.Errorf("App.ID default = %q, want %q", cfg.App.ID, "freebox_bridge")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level default = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "device: [not a mapping")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	t.Setenv("FBXBRIDGE_DEVICE_HOST", "10.0.0.1")
	t.Setenv("FBXBRIDGE_MQTT_USERNAME", "bridge")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Device.Host != "10.0.0.1" {
		t.Errorf("Device.Host = %q, want env override %q", cfg.Device.Host, "10.0.0.1")
	}
	if cfg.MQTT.Auth.Username != "bridge" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "bridge")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Device.Host = "" },
			wantSub: "device.host",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Device.Port = 0 },
			wantSub: "device.port",
		},
		{
			name:    "missing app id",
			mutate:  func(c *Config) { c.App.ID = "" },
			wantSub: "app.id",
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.Poll.Interval = 1 },
			wantSub: "poll.interval",
		},
		{
			name:    "stale_after below interval",
			mutate:  func(c *Config) { c.Poll.StaleAfter = 10 },
			wantSub: "poll.stale_after",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantSub: "mqtt.qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Device.Host = "192.168.1.254"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetPollInterval(); got != 30*time.Second {
		t.Errorf("GetPollInterval() = %v, want 30s", got)
	}
	if got := cfg.GetResourceTimeout(); got != 10*time.Second {
		t.Errorf("GetResourceTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetStaleAfter(); got != 300*time.Second {
		t.Errorf("GetStaleAfter() = %v, want 300s", got)
	}
	if got := cfg.GetRequestTimeout(); got != 10*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 10s", got)
	}
}
