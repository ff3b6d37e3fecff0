package bridge

import (
	"testing"
	"time"
)

func TestTopicLayout(t *testing.T) {
	if got := SnapshotTopic(); got != "freebox/snapshot" {
		t.Errorf("SnapshotTopic() = %q", got)
	}
	if got := HealthTopic(); got != "freebox/health" {
		t.Errorf("HealthTopic() = %q", got)
	}
	if got := CommandTopic(); got != "freebox/command" {
		t.Errorf("CommandTopic() = %q", got)
	}
	if got := ResultTopic("abc-123"); got != "freebox/result/abc-123" {
		t.Errorf("ResultTopic() = %q", got)
	}
}

func TestNewResultCarriesCorrelation(t *testing.T) {
	cmd := CommandMessage{ID: "id-1", Action: ActionReboot}

	result := NewResult(cmd, 150*time.Millisecond)

	if result.CommandID != "id-1" || result.Action != ActionReboot {
		t.Errorf("correlation lost: %+v", result)
	}
	if result.Status != StatusOK {
		t.Errorf("status = %s, want ok", result.Status)
	}
	if result.DurationMS != 150 {
		t.Errorf("duration = %d, want 150", result.DurationMS)
	}
}

func TestNewResultErrorFields(t *testing.T) {
	cmd := CommandMessage{ID: "id-2", Action: ActionSetWifi}

	result := NewResultError(cmd, StatusDenied, ErrCodeDenied, "missing settings permission", time.Second)

	if result.Status != StatusDenied {
		t.Errorf("status = %s, want denied", result.Status)
	}
	if result.ErrorCode != ErrCodeDenied || result.Error == "" {
		t.Errorf("error detail lost: %+v", result)
	}
}
