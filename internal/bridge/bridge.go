package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/mqtt"
)

// MQTTClient is the broker surface the bridge needs. The concrete
// mqtt.Client satisfies it; tests substitute a fake.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	MQTT        MQTTClient
	Coordinator *Coordinator
	Dispatcher  *Dispatcher
	Health      *HealthReporter
	QoS         byte
	Logger      Logger
}

// Bridge ties the poll loop, the command dispatcher and the health
// reporter together and owns their lifecycle.
type Bridge struct {
	mqtt   MQTTClient
	coord  *Coordinator
	disp   *Dispatcher
	health *HealthReporter
	qos    byte
	logger Logger

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // guards closed and wg.Add against Stop's wg.Wait
	closed   bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New wires a bridge from pre-built components.
func New(opts BridgeOptions) *Bridge {
	return &Bridge{
		mqtt:   opts.MQTT,
		coord:  opts.Coordinator,
		disp:   opts.Dispatcher,
		health: opts.Health,
		qos:    opts.QoS,
		logger: opts.Logger,
	}
}

// Start subscribes to the command topic and launches the poll loop and
// health reporter. The parent context bounds everything the bridge does.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.mqtt.Subscribe(CommandTopic(), b.qos, b.handleCommand); err != nil {
		b.cancel()
		return err
	}

	b.coord.Start(b.ctx)
	if b.health != nil {
		b.health.Start()
	}

	b.logInfo("bridge started", "command_topic", CommandTopic())
	return nil
}

// Stop shuts the bridge down in order: no new commands, finish in-flight
// work, final health payload last.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		if err := b.mqtt.Unsubscribe(CommandTopic()); err != nil {
			b.logWarn("failed to unsubscribe command topic", "error", err)
		}
		b.cancel()
		b.wg.Wait()
		b.coord.Stop()
		if b.health != nil {
			b.health.Stop()
		}
		b.logInfo("bridge stopped")
	})
}

// handleCommand parses and dispatches one inbound command. Dispatch runs
// on its own goroutine so a slow router never blocks the MQTT receive
// path.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logWarn("rejected malformed command payload", "topic", topic, "error", err)
		cmd.ID = uuid.NewString()
		b.publishResult(NewResultError(cmd, StatusFailed, ErrCodeInvalidPayload, err.Error(), 0))
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}

	// A broker delivery can race Stop; once closed, no new work may be
	// added to the group.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logDebug("dropping command received during shutdown", "command_id", cmd.ID)
		return nil
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()

		result := b.disp.Perform(b.ctx, cmd)
		b.publishResult(result)

		// A successful mutation changes router state; refresh the
		// snapshot now instead of waiting out the poll interval.
		if result.Status == StatusOK && cmd.Action != ActionReboot {
			b.coord.PollOnce(b.ctx)
		}
	}()
	return nil
}

func (b *Bridge) publishResult(result ResultMessage) {
	payload, err := json.Marshal(result)
	if err != nil {
		b.logError("failed to encode command result", "command_id", result.CommandID, "error", err)
		return
	}
	if err := b.mqtt.Publish(ResultTopic(result.CommandID), payload, b.qos, false); err != nil {
		b.logError("failed to publish command result", "command_id", result.CommandID, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, args...)
	}
}
