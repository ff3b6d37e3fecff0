package bridge

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestReporter(pub Publisher, store *Store) *HealthReporter {
	return NewHealthReporter(HealthReporterOptions{
		Publisher: pub,
		Store:     store,
		Version:   "test",
		Interval:  time.Hour, // tests call PublishNow directly
		QoS:       1,
	})
}

func decodeHealth(t *testing.T, pub *fakePublisher, index int) HealthMessage {
	t.Helper()
	published := pub.messages(HealthTopic())
	if len(published) <= index {
		t.Fatalf("published %d health messages, want at least %d", len(published), index+1)
	}
	var msg HealthMessage
	if err := json.Unmarshal(published[index].payload, &msg); err != nil {
		t.Fatalf("health payload does not decode: %v", err)
	}
	return msg
}

func TestHealthOfflineWithoutBroker(t *testing.T) {
	pub := newFakePublisher()
	pub.connected = false
	h := newTestReporter(pub, &Store{})

	if status := h.determineStatus(); status != HealthOffline {
		t.Errorf("status = %s, want offline", status)
	}
}

func TestHealthDegradedBeforeFirstSnapshot(t *testing.T) {
	h := newTestReporter(newFakePublisher(), &Store{})

	if status := h.determineStatus(); status != HealthDegraded {
		t.Errorf("status = %s, want degraded", status)
	}
}

func TestHealthDegradedOnStaleSnapshot(t *testing.T) {
	store := &Store{}
	store.Commit(&Snapshot{TakenAt: time.Now(), Stale: true})
	h := newTestReporter(newFakePublisher(), store)

	if status := h.determineStatus(); status != HealthDegraded {
		t.Errorf("status = %s, want degraded", status)
	}
}

func TestHealthHealthyWithFreshSnapshot(t *testing.T) {
	store := &Store{}
	store.Commit(&Snapshot{TakenAt: time.Now()})
	h := newTestReporter(newFakePublisher(), store)

	if status := h.determineStatus(); status != HealthHealthy {
		t.Errorf("status = %s, want healthy", status)
	}
}

func TestHealthLifecyclePayloads(t *testing.T) {
	pub := newFakePublisher()
	store := &Store{}
	store.Commit(&Snapshot{TakenAt: time.Now()})
	h := newTestReporter(pub, store)

	h.Start()
	h.PublishNow()
	h.Stop()
	h.Stop() // idempotent

	first := decodeHealth(t, pub, 0)
	if first.Status != HealthStarting {
		t.Errorf("first payload status = %s, want starting", first.Status)
	}

	published := pub.messages(HealthTopic())
	last := decodeHealth(t, pub, len(published)-1)
	if last.Status != HealthStopping {
		t.Errorf("final payload status = %s, want stopping", last.Status)
	}
	if !published[0].retained {
		t.Error("health payloads must be retained")
	}
	if first.Bridge != "freebox" {
		t.Errorf("bridge = %q, want freebox", first.Bridge)
	}
}
