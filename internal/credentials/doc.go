// Package credentials persists the app token granted by a router.
//
// Registration requires a person to physically press the router's
// front-panel button, so the resulting token is stored in SQLite and
// reused across restarts. One row exists per router, keyed by host:port.
//
// App tokens are secrets and must never appear in logs or MQTT payloads.
package credentials
