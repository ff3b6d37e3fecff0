package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/freebox-bridge/internal/freebox"
)

// ResourceClient is the slice of the router gateway the coordinator
// polls. Defined here so tests can substitute a fake.
type ResourceClient interface {
	System(ctx context.Context) (*freebox.SystemInfo, error)
	Connection(ctx context.Context) (*freebox.ConnectionInfo, error)
	WifiConfig(ctx context.Context) (*freebox.WifiConfig, error)
	WifiState(ctx context.Context) (*freebox.WifiState, error)
	WifiAccessPoints(ctx context.Context) ([]freebox.WifiAP, error)
	Repeaters(ctx context.Context) ([]freebox.Repeater, error)
	Disks(ctx context.Context) ([]freebox.Disk, error)
	LanDevices(ctx context.Context) ([]freebox.LanDevice, error)
	LCDConfig(ctx context.Context) (*freebox.LCDConfig, error)
	CallLog(ctx context.Context) ([]freebox.CallEntry, error)
	Permissions(ctx context.Context) (map[string]bool, error)
}

// Publisher is the MQTT surface the coordinator needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MetricsWriter receives per-cycle telemetry. All methods are
// fire-and-forget; a nil writer disables telemetry.
type MetricsWriter interface {
	WriteConnectionMetrics(device string, rateDown, rateUp, bandwidthDown, bandwidthUp float64)
	WriteSystemMetrics(device string, uptimeSeconds float64, sensors map[string]float64)
	WritePollCycle(device string, duration time.Duration, failures int)
}

// CoordinatorOptions configures a poll loop.
type CoordinatorOptions struct {
	Client          ResourceClient
	Publisher       Publisher
	Metrics         MetricsWriter // optional
	Device          string        // router identifier for metrics tags
	Interval        time.Duration
	ResourceTimeout time.Duration
	StaleAfter      time.Duration
	QoS             byte
	TrackLanDevices bool
	TrackCallLog    bool
	Logger          Logger // optional
}

// Logger is the minimal logging surface bridge components use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Coordinator owns the poll loop. One cycle fans out to every tracked
// resource with a per-resource timeout, then commits and publishes a
// single snapshot.
type Coordinator struct {
	client  ResourceClient
	pub     Publisher
	metrics MetricsWriter
	store   *Store
	logger  Logger

	device     string
	interval   time.Duration
	resTimeout time.Duration
	staleAfter time.Duration
	qos        byte
	trackLan   bool
	trackCalls bool

	pollMu      sync.Mutex // serialises cycles: ticker vs post-command refresh
	lastSuccess time.Time
	permsLogged bool
	cycles      atomic.Int64
	failures    atomic.Int64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCoordinator wires a coordinator around an empty snapshot store.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	return &Coordinator{
		client:     opts.Client,
		pub:        opts.Publisher,
		metrics:    opts.Metrics,
		store:      &Store{},
		logger:     opts.Logger,
		device:     opts.Device,
		interval:   opts.Interval,
		resTimeout: opts.ResourceTimeout,
		staleAfter: opts.StaleAfter,
		qos:        opts.QoS,
		trackLan:   opts.TrackLanDevices,
		trackCalls: opts.TrackCallLog,
		done:       make(chan struct{}),
	}
}

// Store exposes the snapshot store for health checks and shutdown state.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Start runs an immediate first poll, then ticks until Stop or ctx
// cancellation.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Cycles returns the number of completed poll cycles.
func (c *Coordinator) Cycles() int64 {
	return c.cycles.Load()
}

// Failures returns the total resource fetch failures across all cycles.
func (c *Coordinator) Failures() int64 {
	return c.failures.Load()
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	c.PollOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.PollOnce(ctx)
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchResult carries one resource outcome back to the assembly step.
type fetchResult struct {
	name  string
	err   error
	apply func(*Snapshot)
}

// PollOnce runs a single poll cycle: fan out, assemble, commit, publish.
// Exported so callers can force a refresh right after a mutation.
func (c *Coordinator) PollOnce(ctx context.Context) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	start := time.Now()
	now := start.UTC()
	snap := newSnapshot(c.store.Current(), now)

	c.checkPermissions(ctx)

	results := c.fanOut(ctx)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			c.failures.Add(1)
			snap.markFailed(r.name, r.err)
			if errors.Is(r.err, freebox.ErrUnsupportedEndpoint) {
				c.logDebug("resource not supported by this router", "resource", r.name)
			} else {
				c.logWarn("resource fetch failed", "resource", r.name, "error", r.err)
			}
			continue
		}
		r.apply(snap)
		snap.markFresh(r.name, now)
	}

	if failed < len(results) {
		c.lastSuccess = now
	}
	// An empty store with nothing ever fetched is stale from the start;
	// otherwise staleness only sets in past the configured threshold.
	snap.Stale = c.lastSuccess.IsZero() || now.Sub(c.lastSuccess) > c.staleAfter

	c.store.Commit(snap)
	c.cycles.Add(1)
	c.publishSnapshot(snap)
	c.writeMetrics(snap, time.Since(start), failed)

	c.logDebug("poll cycle complete",
		"duration", time.Since(start),
		"resources", len(results),
		"failures", failed,
		"stale", snap.Stale)
}

// checkPermissions records the rights granted to this app once per
// process, retrying on later cycles until a fetch succeeds. Having the
// granted set on record makes a denied command result explainable.
// Caller holds pollMu.
func (c *Coordinator) checkPermissions(ctx context.Context) {
	if c.permsLogged {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, c.resTimeout)
	defer cancel()

	perms, err := c.client.Permissions(fctx)
	if err != nil {
		c.logDebug("permission fetch failed, retrying next cycle", "error", err)
		return
	}

	granted := make([]string, 0, len(perms))
	for name, ok := range perms {
		if ok {
			granted = append(granted, name)
		}
	}
	sort.Strings(granted)
	c.logInfo("router permissions granted", "permissions", granted)
	c.permsLogged = true
}

// fanOut fetches every tracked resource concurrently, each under its
// own timeout. Errors are collected, never propagated through the
// group: one slow disk must not sink the connection stats.
func (c *Coordinator) fanOut(ctx context.Context) []fetchResult {
	type slot struct {
		name  string
		fetch func(context.Context) (func(*Snapshot), error)
	}

	slots := []slot{
		{ResourceSystem, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.System(ctx)
			return func(s *Snapshot) { s.System = v }, err
		}},
		{ResourceConnection, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.Connection(ctx)
			return func(s *Snapshot) { s.Connection = v }, err
		}},
		{ResourceWifi, c.fetchWifi},
		{ResourceAPs, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.WifiAccessPoints(ctx)
			return func(s *Snapshot) { s.AccessPoints = v }, err
		}},
		{ResourceRepeaters, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.Repeaters(ctx)
			return func(s *Snapshot) { s.Repeaters = v }, err
		}},
		{ResourceDisks, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.Disks(ctx)
			return func(s *Snapshot) { s.Disks = v }, err
		}},
		{ResourceLCD, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.LCDConfig(ctx)
			return func(s *Snapshot) { s.LCD = v }, err
		}},
	}
	if c.trackLan {
		slots = append(slots, slot{ResourceLanDevices, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.LanDevices(ctx)
			return func(s *Snapshot) { s.LanDevices = v }, err
		}})
	}
	if c.trackCalls {
		slots = append(slots, slot{ResourceCallLog, func(ctx context.Context) (func(*Snapshot), error) {
			v, err := c.client.CallLog(ctx)
			return func(s *Snapshot) { s.CallLog = v }, err
		}})
	}

	results := make([]fetchResult, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	for i, sl := range slots {
		i, sl := i, sl
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, c.resTimeout)
			defer cancel()
			apply, err := sl.fetch(fctx)
			results[i] = fetchResult{name: sl.name, err: err, apply: apply}
			return nil
		})
	}
	_ = g.Wait() // workers report through results, never the group
	return results
}

// fetchWifi combines wifi_config and wifi_state into one tri-state
// value. Either endpoint alone is enough; both failing fails the
// resource.
func (c *Coordinator) fetchWifi(ctx context.Context) (func(*Snapshot), error) {
	cfg, cfgErr := c.client.WifiConfig(ctx)
	state, stateErr := c.client.WifiState(ctx)
	if cfgErr != nil && stateErr != nil {
		return nil, cfgErr
	}
	if cfgErr != nil {
		cfg = nil
	}
	if stateErr != nil {
		state = nil
	}
	enabled := freebox.NormalizeWifiEnabled(cfg, state)
	return func(s *Snapshot) { s.WifiEnabled = enabled.String() }, nil
}

func (c *Coordinator) publishSnapshot(snap *Snapshot) {
	if c.pub == nil || !c.pub.IsConnected() {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		c.logError("failed to encode snapshot", "error", err)
		return
	}
	if err := c.pub.Publish(SnapshotTopic(), payload, c.qos, true); err != nil {
		c.logError("failed to publish snapshot", "error", err)
	}
}

func (c *Coordinator) writeMetrics(snap *Snapshot, took time.Duration, failed int) {
	if c.metrics == nil {
		return
	}
	c.metrics.WritePollCycle(c.device, took, failed)
	if snap.Fields[ResourceConnection].Fresh && snap.Connection != nil {
		conn := snap.Connection
		c.metrics.WriteConnectionMetrics(c.device,
			float64(conn.RateDown), float64(conn.RateUp),
			float64(conn.BandwidthDown), float64(conn.BandwidthUp))
	}
	if snap.Fields[ResourceSystem].Fresh && snap.System != nil {
		sensors := make(map[string]float64)
		for _, s := range snap.System.Sensors {
			sensors[s.ID] = s.Value
		}
		for _, f := range snap.System.Fans {
			sensors[f.ID] = f.Value
		}
		c.metrics.WriteSystemMetrics(c.device, float64(snap.System.UptimeSeconds), sensors)
	}
}

func (c *Coordinator) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
