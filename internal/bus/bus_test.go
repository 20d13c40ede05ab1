package bus

import "testing"

func TestSubscribeOnlySeesFuturePublishes(t *testing.T) {
	b := NewBroadcast[int](4)
	b.Publish(1) // published before subscribe, must not be observed

	sub := b.Subscribe()
	b.Publish(2)

	v, skipped, ok := sub.Next()
	if !ok {
		t.Fatalf("expected a value")
	}
	if skipped {
		t.Fatalf("did not expect a skip")
	}
	if v != 2 {
		t.Fatalf("got %d, want 2", v)
	}
}

func TestOrderPreservedWithinCapacity(t *testing.T) {
	b := NewBroadcast[int](8)
	sub := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(i)
	}
	for i := 0; i < 5; i++ {
		v, skipped, ok := sub.Next()
		if !ok || skipped {
			t.Fatalf("unexpected ok=%v skipped=%v at i=%d", ok, skipped, i)
		}
		if v != i {
			t.Fatalf("got %d, want %d", v, i)
		}
	}
}

func TestLagPolicySkipsAheadPastCapacity(t *testing.T) {
	b := NewBroadcast[int](2)
	sub := b.Subscribe()
	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	v, skipped, ok := sub.Next()
	if !ok {
		t.Fatalf("expected a value")
	}
	if !skipped {
		t.Fatalf("expected lag skip after overflowing capacity")
	}
	if v < 8 {
		t.Fatalf("expected to resume near the newest retained value, got %d", v)
	}
}

func TestCloseUnblocksSubscribers(t *testing.T) {
	b := NewBroadcast[int](4)
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		_, _, ok := sub.Next()
		if ok {
			t.Errorf("expected ok=false after close with no pending values")
		}
		close(done)
	}()

	b.Close()
	<-done
}

func TestSubscriptionCloseUnblocksOnlyThatSubscriber(t *testing.T) {
	b := NewBroadcast[int](4)
	sub := b.Subscribe()
	other := b.Subscribe()

	done := make(chan struct{})
	go func() {
		_, _, ok := sub.Next()
		if ok {
			t.Errorf("expected ok=false after subscription close with no pending values")
		}
		close(done)
	}()

	// The goroutine may or may not be blocked in Next yet; either way a
	// closed subscription makes Next return ok=false.
	sub.Close()
	<-done

	// The bus itself, and other subscribers, are unaffected.
	b.Publish(1)
	v, skipped, ok := other.Next()
	if !ok || skipped || v != 1 {
		t.Fatalf("unexpected result for unrelated subscriber: v=%d skipped=%v ok=%v", v, skipped, ok)
	}
}
