package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteConnectionMetrics records WAN link throughput for a router.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - device: Router identifier (host:port)
//   - rateDown, rateUp: Current throughput in bytes/s
//   - bandwidthDown, bandwidthUp: Link capacity in bits/s
func (c *Client) WriteConnectionMetrics(device string, rateDown, rateUp, bandwidthDown, bandwidthUp float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"rate_down":      rateDown,
			"rate_up":        rateUp,
			"bandwidth_down": bandwidthDown,
			"bandwidth_up":   bandwidthUp,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSystemMetrics records router hardware telemetry.
//
// Parameters:
//   - device: Router identifier (host:port)
//   - uptimeSeconds: Seconds since last boot
//   - sensors: Temperature and fan readings keyed by sensor id
func (c *Client) WriteSystemMetrics(device string, uptimeSeconds float64, sensors map[string]float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"uptime_seconds": uptimeSeconds,
	}
	for id, value := range sensors {
		fields[id] = value
	}

	point := write.NewPoint(
		"system",
		map[string]string{
			"device": device,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollCycle records the outcome of one poll cycle.
//
// Used for monitoring bridge health: cycle duration creeping toward the
// poll interval or a rising failure count both indicate trouble.
func (c *Client) WritePollCycle(device string, duration time.Duration, failures int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_cycle",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
			"failures":    failures,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
