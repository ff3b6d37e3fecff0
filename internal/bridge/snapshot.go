package bridge

import (
	"sync"
	"time"

	"github.com/nerrad567/freebox-bridge/internal/freebox"
)

// Resource names used as keys in Snapshot.Fields and in log lines.
const (
	ResourceSystem     = "system"
	ResourceConnection = "connection"
	ResourceWifi       = "wifi"
	ResourceAPs        = "access_points"
	ResourceRepeaters  = "repeaters"
	ResourceDisks      = "disks"
	ResourceLanDevices = "lan_devices"
	ResourceCallLog    = "call_log"
	ResourceLCD        = "lcd"
)

// Field records per-resource freshness inside a snapshot. A field that
// failed to refresh keeps its previous value and UpdatedAt, with Fresh
// false and the fetch error attached.
type Field struct {
	UpdatedAt time.Time `json:"updated_at"`
	Fresh     bool      `json:"fresh"`
	Error     string    `json:"error,omitempty"`
}

// Snapshot is one atomic view of the router, published as-is on the
// snapshot topic. Consumers never see fields from two different poll
// cycles mixed together.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Stale   bool      `json:"stale"`

	System       *freebox.SystemInfo     `json:"system,omitempty"`
	Connection   *freebox.ConnectionInfo `json:"connection,omitempty"`
	WifiEnabled  string                  `json:"wifi_enabled"`
	AccessPoints []freebox.WifiAP        `json:"access_points,omitempty"`
	Repeaters    []freebox.Repeater      `json:"repeaters,omitempty"`
	Disks        []freebox.Disk          `json:"disks,omitempty"`
	LanDevices   []freebox.LanDevice     `json:"lan_devices,omitempty"`
	CallLog      []freebox.CallEntry     `json:"call_log,omitempty"`
	LCD          *freebox.LCDConfig      `json:"lcd,omitempty"`

	Fields map[string]Field `json:"fields"`
}

// newSnapshot seeds a snapshot from its predecessor so failed fetches
// inherit the last known values. The clone is shallow: resource values
// are treated as immutable once committed.
func newSnapshot(prev *Snapshot, now time.Time) *Snapshot {
	s := &Snapshot{
		TakenAt:     now,
		WifiEnabled: freebox.TriUnknown.String(),
		Fields:      make(map[string]Field),
	}
	if prev == nil {
		return s
	}
	s.System = prev.System
	s.Connection = prev.Connection
	s.WifiEnabled = prev.WifiEnabled
	s.AccessPoints = prev.AccessPoints
	s.Repeaters = prev.Repeaters
	s.Disks = prev.Disks
	s.LanDevices = prev.LanDevices
	s.CallLog = prev.CallLog
	s.LCD = prev.LCD
	for name, f := range prev.Fields {
		f.Fresh = false
		s.Fields[name] = f
	}
	return s
}

// markFresh records a successful refresh of one resource.
func (s *Snapshot) markFresh(name string, now time.Time) {
	s.Fields[name] = Field{UpdatedAt: now, Fresh: true}
}

// markFailed keeps the inherited value and attaches the fetch error.
func (s *Snapshot) markFailed(name string, err error) {
	prev := s.Fields[name]
	s.Fields[name] = Field{UpdatedAt: prev.UpdatedAt, Fresh: false, Error: err.Error()}
}

// Store holds the current snapshot behind a read-write mutex. Commits
// replace the whole pointer, so readers always observe one complete
// cycle.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

// Current returns the last committed snapshot, nil before the first
// cycle completes. Callers must not mutate the returned value.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Commit atomically replaces the current snapshot.
func (s *Store) Commit(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}
