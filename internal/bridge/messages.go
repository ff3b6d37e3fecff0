package bridge

import (
	"fmt"
	"time"
)

// TopicPrefix is the root of every topic the bridge publishes or
// subscribes on.
const TopicPrefix = "freebox"

// CommandMessage is the JSON payload accepted on the command topic.
type CommandMessage struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Result statuses published after a command is handled.
type ResultStatus string

const (
	StatusOK          ResultStatus = "ok"
	StatusFailed      ResultStatus = "failed"
	StatusTimeout     ResultStatus = "timeout"
	StatusDenied      ResultStatus = "denied"
	StatusUnsupported ResultStatus = "unsupported"
)

// Result error codes, stable for machine consumption.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownAction  = "UNKNOWN_ACTION"
	ErrCodeBadParameter   = "BAD_PARAMETER"
	ErrCodeRouterError    = "ROUTER_ERROR"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeDenied         = "PERMISSION_DENIED"
	ErrCodeUnsupported    = "UNSUPPORTED_ENDPOINT"
)

// ResultMessage acknowledges a command. One result is published per
// command, correlated by CommandID.
type ResultMessage struct {
	CommandID  string       `json:"command_id"`
	Action     string       `json:"action"`
	Status     ResultStatus `json:"status"`
	ErrorCode  string       `json:"error_code,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Timestamp  time.Time    `json:"timestamp"`
}

// NewResult builds a successful result for a command.
func NewResult(cmd CommandMessage, took time.Duration) ResultMessage {
	return ResultMessage{
		CommandID:  cmd.ID,
		Action:     cmd.Action,
		Status:     StatusOK,
		DurationMS: took.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}

// NewResultError builds a failed result with a machine-readable code.
func NewResultError(cmd CommandMessage, status ResultStatus, code, msg string, took time.Duration) ResultMessage {
	return ResultMessage{
		CommandID:  cmd.ID,
		Action:     cmd.Action,
		Status:     status,
		ErrorCode:  code,
		Error:      msg,
		DurationMS: took.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}

// HealthStatus values published on the health topic.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the periodic health payload.
type HealthMessage struct {
	Bridge          string       `json:"bridge"`
	Status          HealthStatus `json:"status"`
	Version         string       `json:"version"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	MQTTConnected   bool         `json:"mqtt_connected"`
	RouterReachable bool         `json:"router_reachable"`
	LastPollAt      time.Time    `json:"last_poll_at,omitempty"`
	PollFailures    int64        `json:"poll_failures"`
	PollCycles      int64        `json:"poll_cycles"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Topic helpers. Centralised so topic layout changes in one place.

// SnapshotTopic carries the retained router snapshot.
func SnapshotTopic() string {
	return fmt.Sprintf("%s/snapshot", TopicPrefix)
}

// HealthTopic carries the retained bridge health payload.
func HealthTopic() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// CommandTopic is the single topic the bridge subscribes on for actions.
func CommandTopic() string {
	return fmt.Sprintf("%s/command", TopicPrefix)
}

// ResultTopic is the per-command response topic.
func ResultTopic(commandID string) string {
	return fmt.Sprintf("%s/result/%s", TopicPrefix, commandID)
}
