package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	b := New()
	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.historySize != DefaultHistorySize {
		t.Errorf("expected history size %d, got %d", DefaultHistorySize, b.historySize)
	}
	b.Close()
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	done := make(chan Event, 1)
	id := b.Subscribe(EventCommandExecuted, func(e Event) {
		done <- e
	})
	if id == "" {
		t.Fatal("Subscribe returned empty ID")
	}

	event := NewEvent(EventCommandExecuted)
	event.Command = "ls -la"
	event.ExitCode = 0

	if err := b.Publish(event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-done:
		if got.Command != "ls -la" {
			t.Errorf("expected command %q, got %q", "ls -la", got.Command)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for event")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	callCount := atomic.Int32{}
	id := b.Subscribe(EventCommandBlocked, func(e Event) {
		callCount.Add(1)
	})

	b.Publish(NewEvent(EventCommandBlocked))
	time.Sleep(100 * time.Millisecond)

	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	b.Publish(NewEvent(EventCommandBlocked))
	time.Sleep(100 * time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected 1 call, got %d", callCount.Load())
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	callCount := atomic.Int32{}
	done := make(chan bool, 1)

	b.Subscribe(EventType(""), func(e Event) {
		if callCount.Add(1) == 2 {
			done <- true
		}
	})

	b.Publish(NewEvent(EventCommandReceived))
	b.Publish(NewEvent(EventCommandExecuted))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("timeout waiting for events")
	}
}

func TestTypedAndWildcardSubscriptions(t *testing.T) {
	b := New()
	defer b.Close()

	typedCount := atomic.Int32{}
	wildcardCount := atomic.Int32{}

	b.Subscribe(EventTierAssigned, func(e Event) {
		typedCount.Add(1)
	})
	b.Subscribe(EventType(""), func(e Event) {
		wildcardCount.Add(1)
	})

	b.Publish(NewEvent(EventTierAssigned))
	time.Sleep(100 * time.Millisecond)

	if typedCount.Load() != 1 {
		t.Errorf("typed subscriber expected 1 call, got %d", typedCount.Load())
	}
	if wildcardCount.Load() != 1 {
		t.Errorf("wildcard subscriber expected 1 call, got %d", wildcardCount.Load())
	}
}

func TestTypedSubscriberIgnoresOtherTypes(t *testing.T) {
	b := New()
	defer b.Close()

	callCount := atomic.Int32{}
	b.Subscribe(EventCommandBlocked, func(e Event) {
		callCount.Add(1)
	})

	b.Publish(NewEvent(EventCommandReceived))
	b.Publish(NewEvent(EventCommandExecuted))
	time.Sleep(100 * time.Millisecond)

	if callCount.Load() != 0 {
		t.Errorf("expected 0 calls, got %d", callCount.Load())
	}
}

func TestHistory(t *testing.T) {
	b := NewWithHistory(10)
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(NewEvent(EventCommandReceived))
	}

	if got := len(b.History()); got != 5 {
		t.Errorf("expected 5 events in history, got %d", got)
	}
	if got := len(b.Recent(3)); got != 3 {
		t.Errorf("expected 3 recent events, got %d", got)
	}
	if got := len(b.Recent(50)); got != 5 {
		t.Errorf("expected 5 recent events when asking past capacity, got %d", got)
	}
}

func TestHistoryOverflow(t *testing.T) {
	b := NewWithHistory(5)
	defer b.Close()

	for i := 0; i < 10; i++ {
		b.Publish(NewEvent(EventCommandReceived))
	}

	if got := len(b.History()); got != 5 {
		t.Errorf("expected history trimmed to 5 events, got %d", got)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	var wg sync.WaitGroup
	counters := [3]*atomic.Int32{{}, {}, {}}

	for i := 0; i < 3; i++ {
		wg.Add(1)
		idx := i
		b.Subscribe(EventCommandExecuted, func(e Event) {
			counters[idx].Add(1)
			wg.Done()
		})
	}

	b.Publish(NewEvent(EventCommandExecuted))

	done := make(chan bool)
	go func() {
		wg.Wait()
		done <- true
	}()

	select {
	case <-done:
		for i, c := range counters {
			if c.Load() != 1 {
				t.Errorf("subscriber %d expected 1 call, got %d", i, c.Load())
			}
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for all subscribers")
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	defer b.Close()

	received := atomic.Int32{}
	for i := 0; i < 10; i++ {
		b.Subscribe(EventCommandExecuted, func(e Event) {
			received.Add(1)
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(NewEvent(EventCommandExecuted))
		}()
	}
	wg.Wait()
	time.Sleep(200 * time.Millisecond)

	expected := int32(50 * 10)
	if received.Load() != expected {
		t.Errorf("expected %d deliveries, got %d", expected, received.Load())
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	b.Close()

	if err := b.Publish(NewEvent(EventCommandReceived)); err == nil {
		t.Error("expected error when publishing to closed bus")
	}
}

func TestUnsubscribeNonExistent(t *testing.T) {
	b := New()
	defer b.Close()

	if err := b.Unsubscribe(SubscriptionID("nonexistent")); err == nil {
		t.Error("expected error when unsubscribing unknown ID")
	}
}

func TestSubscriptionCounts(t *testing.T) {
	b := New()
	defer b.Close()

	if b.SubscriptionsCount() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", b.SubscriptionsCount())
	}

	id1 := b.Subscribe(EventCommandExecuted, func(e Event) {})
	b.Subscribe(EventCommandBlocked, func(e Event) {})
	b.Subscribe(EventType(""), func(e Event) {})

	if b.SubscriptionsCount() != 3 {
		t.Errorf("expected 3 subscriptions, got %d", b.SubscriptionsCount())
	}
	if b.TypedSubscriptionsCount(EventCommandExecuted) != 1 {
		t.Errorf("expected 1 typed subscription, got %d", b.TypedSubscriptionsCount(EventCommandExecuted))
	}

	b.Unsubscribe(id1)
	if b.TypedSubscriptionsCount(EventCommandExecuted) != 0 {
		t.Errorf("expected 0 typed subscriptions after unsubscribe, got %d", b.TypedSubscriptionsCount(EventCommandExecuted))
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventCommandReceived)

	if event.ID == "" {
		t.Error("NewEvent should generate an ID")
	}
	if event.Type != EventCommandReceived {
		t.Errorf("expected type %s, got %s", EventCommandReceived, event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("NewEvent should set a timestamp")
	}

	other := NewEvent(EventCommandReceived)
	if other.ID == event.ID {
		t.Error("event IDs should be unique")
	}
}

func BenchmarkPublish(b *testing.B) {
	eventBus := New()
	defer eventBus.Close()

	eventBus.Subscribe(EventCommandExecuted, func(e Event) {})
	event := NewEvent(EventCommandExecuted)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eventBus.Publish(event)
	}
}
