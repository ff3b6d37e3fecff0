package freebox

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestNormalizeWifiEnabled(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *WifiConfig
		state *WifiState
		want  TriState
	}{
		{
			name: "config boolean wins",
			cfg:  &WifiConfig{Enabled: boolPtr(true)},
			want: TriOn,
		},
		{
			name:  "config boolean overrides state string",
			cfg:   &WifiConfig{Enabled: boolPtr(false)},
			state: &WifiState{State: "on"},
			want:  TriOff,
		},
		{
			name:  "state boolean when config missing",
			cfg:   &WifiConfig{},
			state: &WifiState{Enabled: boolPtr(true)},
			want:  TriOn,
		},
		{
			name:  "state string on",
			state: &WifiState{State: "on"},
			want:  TriOn,
		},
		{
			name:  "state string active",
			state: &WifiState{State: "active"},
			want:  TriOn,
		},
		{
			name:  "state string numeric",
			state: &WifiState{State: "1"},
			want:  TriOn,
		},
		{
			name:  "state string disabled",
			state: &WifiState{State: "disabled"},
			want:  TriOff,
		},
		{
			name:  "unrecognized state string is unknown",
			state: &WifiState{State: "maybe"},
			want:  TriUnknown,
		},
		{
			name: "all fields absent is unknown, never off",
			cfg:  &WifiConfig{},
			want: TriUnknown,
		},
		{
			name: "nil inputs are unknown",
			want: TriUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWifiEnabled(tt.cfg, tt.state); got != tt.want {
				t.Errorf("NormalizeWifiEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriStateString(t *testing.T) {
	if TriState(0).String() != "unknown" {
		t.Error("zero value must read as unknown")
	}
	if TriOn.String() != "on" || TriOff.String() != "off" {
		t.Error("unexpected TriState strings")
	}
}
