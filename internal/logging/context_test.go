package logging

import (
	"context"
	"testing"
	"time"
)

func TestDetachContextSurvivesCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached := DetachContext(parent)

	cancel()

	if parent.Err() == nil {
		t.Error("parent should be cancelled")
	}
	if detached.Err() != nil {
		t.Errorf("detached should survive cancellation, got error: %v", detached.Err())
	}
}

func TestDetachContextWithTimeout(t *testing.T) {
	t.Run("survives parent cancellation", func(t *testing.T) {
		parent, parentCancel := context.WithCancel(context.Background())
		detached, detachedCancel := DetachContextWithTimeout(parent, 100*time.Millisecond)
		defer detachedCancel()

		parentCancel()

		if detached.Err() != nil {
			t.Errorf("detached should not be cancelled yet, got error: %v", detached.Err())
		}

		<-detached.Done()
		if detached.Err() != context.DeadlineExceeded {
			t.Errorf("detached should hit its own deadline, got: %v", detached.Err())
		}
	})

	t.Run("has own deadline", func(t *testing.T) {
		detached, cancel := DetachContextWithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, ok := detached.Deadline(); !ok {
			t.Error("detached context should have a deadline")
		}
	})
}
