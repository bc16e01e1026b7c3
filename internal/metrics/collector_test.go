package metrics

import (
	"testing"
	"time"

	"github.com/normanking/safeshell/internal/bus"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestCollectorCounts(t *testing.T) {
	b := bus.New()
	defer b.Close()

	c := NewCollector(b)
	c.Start()
	defer c.Stop()

	publish := func(et bus.EventType, mutate func(*bus.Event)) {
		event := bus.NewEvent(et)
		if mutate != nil {
			mutate(&event)
		}
		if err := b.Publish(event); err != nil {
			t.Fatalf("publish %s: %v", et, err)
		}
	}

	publish(bus.EventCommandReceived, nil)
	publish(bus.EventCommandReceived, nil)
	publish(bus.EventCommandTranslated, func(e *bus.Event) { e.Confidence = 0.9 })
	publish(bus.EventTierAssigned, func(e *bus.Event) { e.Tier = "1" })
	publish(bus.EventTierAssigned, func(e *bus.Event) {
		e.Tier = "3"
		e.Suggestion = "grep"
	})
	publish(bus.EventCommandBlocked, func(e *bus.Event) { e.Tier = "4" })
	publish(bus.EventValidationVerdict, func(e *bus.Event) { e.Verdict = "deny" })
	publish(bus.EventValidationVerdict, func(e *bus.Event) { e.Verdict = "approve" })
	publish(bus.EventCommandExecuted, func(e *bus.Event) { e.DurationMs = 120 })
	publish(bus.EventCommandExecuted, func(e *bus.Event) { e.DurationMs = 30 })
	publish(bus.EventCommandFailed, nil)

	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.Total == 2 && s.Executed == 2 && s.ExecFailures == 1
	})

	s := c.Snapshot()
	if s.Translated != 1 {
		t.Errorf("expected 1 translated, got %d", s.Translated)
	}
	if s.PerTier["1"] != 1 || s.PerTier["3"] != 1 {
		t.Errorf("unexpected per-tier counts: %v", s.PerTier)
	}
	if s.Corrected != 1 {
		t.Errorf("expected 1 correction, got %d", s.Corrected)
	}
	if s.Blocked != 1 {
		t.Errorf("expected 1 blocked, got %d", s.Blocked)
	}
	if s.Denied != 1 {
		t.Errorf("expected 1 denied (approve must not count), got %d", s.Denied)
	}
	if s.TotalExecMs != 150 {
		t.Errorf("expected 150ms total, got %d", s.TotalExecMs)
	}
	if s.LastEvent == "" || s.LastEventTime.IsZero() {
		t.Error("last event not tracked")
	}
}

func TestCollectorStop(t *testing.T) {
	b := bus.New()
	defer b.Close()

	c := NewCollector(b)
	c.Start()

	if err := b.Publish(bus.NewEvent(bus.EventCommandReceived)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.Snapshot().Total == 1 })

	c.Stop()

	if err := b.Publish(bus.NewEvent(bus.EventCommandReceived)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if got := c.Snapshot().Total; got != 1 {
		t.Errorf("expected counts frozen after Stop, got %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := bus.New()
	defer b.Close()

	c := NewCollector(b)
	c.Start()
	defer c.Stop()

	event := bus.NewEvent(bus.EventTierAssigned)
	event.Tier = "2"
	if err := b.Publish(event); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.Snapshot().PerTier["2"] == 1 })

	s := c.Snapshot()
	s.PerTier["2"] = 99

	if got := c.Snapshot().PerTier["2"]; got != 1 {
		t.Errorf("snapshot mutation leaked into collector: %d", got)
	}
}
