package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Stale(context.Background(), ScopeBoard, "b1", "task moved")

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Scope != ScopeBoard || ev.ID != "b1" || ev.Reason != "task moved" {
				t.Errorf("%s got %+v", name, ev)
			}
			if ev.At.IsZero() {
				t.Errorf("%s event has no timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the event", name)
		}
	}
}

func TestHub_FullQueueDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Stale(context.Background(), ScopeSprint, "s1", "")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stale blocked on a full subscriber")
	}
	if n := len(ch); n != 1 {
		t.Errorf("queued events = %d, want 1", n)
	}
}

func TestHub_CancelClosesAndUnregisters(t *testing.T) {
	h := NewHub(0)
	ch, cancel := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d, want 1", h.Subscribers())
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", h.Subscribers())
	}
	h.Stale(context.Background(), ScopeTeam, "t1", "")
}

func TestHub_NilIsNoop(t *testing.T) {
	var h *Hub
	h.Stale(context.Background(), ScopeBoard, "b1", "")
}

func TestHub_ConcurrentPublishAndCancel(t *testing.T) {
	h := NewHub(8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		_, cancel := h.Subscribe()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Stale(context.Background(), ScopeDashboard, "", "")
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", h.Subscribers())
	}
}
