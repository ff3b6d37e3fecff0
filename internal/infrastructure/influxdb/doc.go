// Package influxdb provides time-series telemetry storage for the bridge.
//
// Each poll cycle writes WAN throughput, hardware sensor readings, and
// cycle timing to InfluxDB v2. Writes are batched and non-blocking so a
// slow or absent InfluxDB never delays the poll loop; the client is
// optional and the bridge runs without it when disabled in configuration.
//
// The API token is read from configuration and never logged.
package influxdb
