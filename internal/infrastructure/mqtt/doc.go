// Package mqtt provides MQTT client functionality for the Freebox Bridge.
//
// It wraps the Eclipse Paho MQTT library with connection management,
// automatic reconnection, subscription restoration, and Last Will and
// Testament for availability signaling.
//
// The bridge uses MQTT as its host-platform boundary: router state
// snapshots and health reports flow out, action commands flow in, and
// the retained status topic lets consumers distinguish a running bridge
// from a crashed one.
//
// Security note: broker credentials are read from configuration and are
// never logged. Callers must not include them in published payloads.
package mqtt
