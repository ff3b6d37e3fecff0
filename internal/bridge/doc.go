// Package bridge connects one Freebox router to an MQTT broker.
//
// A Coordinator polls the router on a fixed interval, fans out to every
// tracked resource, and commits the results as one atomic Snapshot. A
// failed resource keeps its previous value; only a total outage past the
// configured threshold marks the snapshot stale. Snapshots are published
// retained so consumers can read state without touching the router.
//
// Commands arrive on the command topic, run through the Dispatcher, and
// are answered with a Result on the per-command result topic. Actions
// never wait for the next poll cycle; callers see updated state on the
// cycle after the action lands.
package bridge
