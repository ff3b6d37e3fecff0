package bridge

import (
	"encoding/json"
	"sync"
	"time"
)

// HealthReporter publishes a retained health payload on a fixed
// interval. Status is derived from broker connectivity and snapshot
// freshness, so a dead router shows up even while MQTT is fine.
type HealthReporter struct {
	pub       Publisher
	store     *Store
	coord     *Coordinator
	version   string
	interval  time.Duration
	qos       byte
	logger    Logger
	startedAt time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterOptions configures a reporter.
type HealthReporterOptions struct {
	Publisher   Publisher
	Store       *Store
	Coordinator *Coordinator
	Version     string
	Interval    time.Duration
	QoS         byte
	Logger      Logger
}

// NewHealthReporter builds a reporter; call Start to begin publishing.
func NewHealthReporter(opts HealthReporterOptions) *HealthReporter {
	interval := opts.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &HealthReporter{
		pub:       opts.Publisher,
		store:     opts.Store,
		coord:     opts.Coordinator,
		version:   opts.Version,
		interval:  interval,
		qos:       opts.QoS,
		logger:    opts.Logger,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start publishes a "starting" payload immediately, then reports on the
// configured interval.
func (h *HealthReporter) Start() {
	h.publish(h.build(HealthStarting))
	h.wg.Add(1)
	go h.reportLoop()
}

// Stop halts the loop and publishes a final "stopping" payload so
// consumers see a clean shutdown rather than an LWT.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.publish(h.build(HealthStopping))
	})
}

// PublishNow forces an immediate report, used after reconnects.
func (h *HealthReporter) PublishNow() {
	h.publish(h.build(h.determineStatus()))
}

func (h *HealthReporter) reportLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publish(h.build(h.determineStatus()))
		case <-h.done:
			return
		}
	}
}

// determineStatus folds broker and router state into one value:
// no broker is offline, a stale snapshot is degraded, otherwise healthy.
func (h *HealthReporter) determineStatus() HealthStatus {
	if h.pub == nil || !h.pub.IsConnected() {
		return HealthOffline
	}
	snap := h.store.Current()
	if snap == nil || snap.Stale {
		return HealthDegraded
	}
	return HealthHealthy
}

func (h *HealthReporter) build(status HealthStatus) HealthMessage {
	msg := HealthMessage{
		Bridge:        "freebox",
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		MQTTConnected: h.pub != nil && h.pub.IsConnected(),
		Timestamp:     time.Now().UTC(),
	}
	if snap := h.store.Current(); snap != nil {
		msg.LastPollAt = snap.TakenAt
		msg.RouterReachable = !snap.Stale
	}
	if h.coord != nil {
		msg.PollCycles = h.coord.Cycles()
		msg.PollFailures = h.coord.Failures()
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) {
	if h.pub == nil || !h.pub.IsConnected() {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logError("failed to encode health payload", "error", err)
		return
	}
	if err := h.pub.Publish(HealthTopic(), payload, h.qos, true); err != nil {
		h.logError("failed to publish health payload", "error", err)
	}
}

func (h *HealthReporter) logError(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Error(msg, args...)
	}
}
