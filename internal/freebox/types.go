package freebox

import (
	"strings"
	"time"
)

// APIVersion is the unauthenticated discovery response from /api_version.
type APIVersion struct {
	APIVersion string `json:"api_version"`
	APIBaseURL string `json:"api_base_url"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	UID        string `json:"uid"`
	BoxModel   string `json:"box_model"`
}

// AppCredentials is the long-lived identity granted by the router after
// the user confirms the authorization on the front panel.
type AppCredentials struct {
	AppID    string
	AppToken string
	TrackID  int
}

// SessionToken is the short-lived credential opened via challenge-response
// login. Carried in the X-Fbx-App-Auth header on every authenticated call.
type SessionToken struct {
	Token       string
	Permissions map[string]bool
	Created     time.Time
}

// SystemInfo is the router's hardware and firmware state.
type SystemInfo struct {
	UptimeSeconds   int64    `json:"uptime_val"`
	BoardName       string   `json:"board_name"`
	FirmwareVersion string   `json:"firmware_version"`
	Serial          string   `json:"serial"`
	MAC             string   `json:"mac"`
	Sensors         []Sensor `json:"sensors"`
	Fans            []Sensor `json:"fans"`
	ModelInfo       struct {
		PrettyName string `json:"pretty_name"`
	} `json:"model_info"`
}

// Sensor is a temperature or fan reading.
type Sensor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ConnectionInfo is the WAN link state.
type ConnectionInfo struct {
	State         string `json:"state"`
	Type          string `json:"type"`
	Media         string `json:"media"`
	IPv4          string `json:"ipv4"`
	IPv6          string `json:"ipv6"`
	RateDown      int64  `json:"rate_down"`
	RateUp        int64  `json:"rate_up"`
	BandwidthDown int64  `json:"bandwidth_down"`
	BandwidthUp   int64  `json:"bandwidth_up"`
	BytesDown     int64  `json:"bytes_down"`
	BytesUp       int64  `json:"bytes_up"`
}

// WifiConfig is the global Wi-Fi configuration.
// Enabled is a pointer because older firmware omits the field.
type WifiConfig struct {
	Enabled *bool `json:"enabled"`
}

// WifiState is the runtime Wi-Fi state. Firmware versions disagree on
// the field layout: some expose a boolean, others a state string.
type WifiState struct {
	Enabled *bool  `json:"enabled"`
	State   string `json:"state"`
}

// WifiAP is one Wi-Fi access point (radio).
type WifiAP struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status struct {
		State string `json:"state"`
	} `json:"status"`
	Config struct {
		Channel int `json:"primary_channel"`
	} `json:"config"`
}

// Repeater is a Wi-Fi range extender managed through the same API.
type Repeater struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	MainMAC         string `json:"main_mac"`
	Model           string `json:"model"`
	Connection      string `json:"connection"`
	FirmwareVersion string `json:"firmware_version"`
	// LedActivated is a pointer because some models omit the field.
	LedActivated *bool `json:"led_activated"`
}

// Disk is one storage device attached to the router.
type Disk struct {
	ID         int         `json:"id"`
	Type       string      `json:"type"`
	State      string      `json:"state"`
	Model      string      `json:"model"`
	Serial     string      `json:"serial"`
	TotalBytes int64       `json:"total_bytes"`
	Partitions []Partition `json:"partitions"`
}

// Partition is one filesystem on a Disk.
type Partition struct {
	ID         int    `json:"id"`
	Label      string `json:"label"`
	TotalBytes int64  `json:"total_bytes"`
	UsedBytes  int64  `json:"used_bytes"`
	FreeBytes  int64  `json:"free_bytes"`
}

// LanDevice is one host seen by the router's LAN browser.
type LanDevice struct {
	ID           string `json:"id"`
	PrimaryName  string `json:"primary_name"`
	VendorName   string `json:"vendor_name"`
	Active       bool   `json:"active"`
	Reachable    bool   `json:"reachable"`
	LastActivity int64  `json:"last_activity"`
	L2Ident      struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"l2ident"`
}

// CallEntry is one phone call log record.
type CallEntry struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	Datetime int64  `json:"datetime"`
	Duration int    `json:"duration"`
	New      bool   `json:"new"`
}

// LCDConfig is the router's front-panel display configuration.
type LCDConfig struct {
	Brightness  int  `json:"brightness"`
	Orientation int  `json:"orientation"`
	HideWifiKey bool `json:"hide_wifi_key"`
	// HideStatusLED is a pointer because only some models have the LED.
	HideStatusLED *bool `json:"hide_status_led"`
}

// TriState is a boolean that can also be unknown. The zero value is
// TriUnknown so a missing field never reads as "off".
type TriState int

const (
	TriUnknown TriState = iota
	TriOff
	TriOn
)

// String returns "unknown", "off" or "on".
func (t TriState) String() string {
	switch t {
	case TriOn:
		return "on"
	case TriOff:
		return "off"
	default:
		return "unknown"
	}
}

// triFromBool converts a bool to the corresponding TriState.
func triFromBool(b bool) TriState {
	if b {
		return TriOn
	}
	return TriOff
}

// NormalizeWifiEnabled reconciles the Wi-Fi enabled flag across the field
// layouts different firmware versions return. Precedence: the explicit
// boolean in wifi_config, then the boolean in wifi_state, then the state
// string. When no recognized field is present the result is TriUnknown,
// never a default of "off".
func NormalizeWifiEnabled(cfg *WifiConfig, state *WifiState) TriState {
	if cfg != nil && cfg.Enabled != nil {
		return triFromBool(*cfg.Enabled)
	}
	if state != nil {
		if state.Enabled != nil {
			return triFromBool(*state.Enabled)
		}
		switch strings.ToLower(state.State) {
		case "on", "enabled", "active", "1":
			return TriOn
		case "off", "disabled", "inactive", "0":
			return TriOff
		}
	}
	return TriUnknown
}
