// Package config provides configuration loading for Freebox Bridge.
//
// Configuration is loaded from a YAML file with environment variable
// overrides (FBXBRIDGE_* pattern). Defaults are applied first, then the
// file, then the environment, and the result is validated before use.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Security
//
// MQTT passwords and InfluxDB tokens should be supplied via environment
// variables rather than committed to the config file.
package config
