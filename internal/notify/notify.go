// Package notify fans out "this view is stale" signals to subscribers
// after committed mutations.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scope names the kind of view an event invalidates.
type Scope string

const (
	ScopeBoard     Scope = "board"
	ScopeSprint    Scope = "sprint"
	ScopeTeam      Scope = "team"
	ScopeUser      Scope = "user"
	ScopeDashboard Scope = "dashboard"
)

// Event tells subscribers that the view identified by Scope and ID must be
// re-fetched.
type Event struct {
	Scope  Scope     `json:"scope"`
	ID     string    `json:"id,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// DefaultBuffer is the per-subscriber queue length used by NewHub when
// given a non-positive size.
const DefaultBuffer = 64

// Hub is an in-process broadcaster. Publishing never blocks: a subscriber
// whose queue is full misses the event and is expected to re-fetch on its
// next one.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	buffer int
}

// NewHub returns a hub whose subscribers queue up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stale publishes an event for one view. A nil hub discards it.
func (h *Hub) Stale(ctx context.Context, scope Scope, id, reason string) {
	if h == nil {
		return
	}
	h.Publish(ctx, Event{Scope: scope, ID: id, Reason: reason, At: time.Now().UTC()})
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.DebugContext(ctx, "notify: subscriber queue full, event dropped",
				"subscriber", id, "scope", ev.Scope, "id", ev.ID)
		}
	}
}
