package event

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine; they must not block.
type Handler func(Event)

// Bus is a broadcast channel with one logical writer and many independent
// readers. See the package documentation for delivery semantics.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription

	// emitMu guards the pending queue and the emitting flag. Publish
	// never holds it while running handlers, so handlers are free to
	// publish follow-up events; those are queued and delivered after
	// the current event finishes its fan-out, preserving total order.
	emitMu   sync.Mutex
	pending  []Event
	emitting bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns its subscription handle.
func (b *Bus) Subscribe(fn Handler) *Subscription {
	sub := &Subscription{bus: b, fn: fn}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub
}

// Publish delivers the event to all current subscribers in order.
// The timestamp is stamped here if unset.
//
// Events published from inside a handler (typically a subscriber calling
// back into the registry) do not deadlock: they join the pending queue
// and the outer Publish drains them after the in-flight event has been
// delivered to every subscriber.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.emitMu.Lock()
	b.pending = append(b.pending, ev)
	if b.emitting {
		b.emitMu.Unlock()
		return
	}
	b.emitting = true

	for len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.emitMu.Unlock()

		b.mu.RLock()
		subs := make([]*Subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.RUnlock()

		for _, sub := range subs {
			if sub.active.Load() {
				sub.fn(next)
			}
		}

		b.emitMu.Lock()
	}
	b.emitting = false
	b.emitMu.Unlock()
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// remove drops a subscription from the list.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscription is a handle to an active bus subscription.
type Subscription struct {
	bus    *Bus
	fn     Handler
	active atomic.Bool
}

// Cancel stops delivery to this subscription. Safe to call more than once
// and safe to call while an emission is in progress.
func (s *Subscription) Cancel() {
	if s.active.CompareAndSwap(true, false) {
		s.bus.remove(s)
	}
}

// Active returns true while the subscription receives events.
func (s *Subscription) Active() bool {
	return s.active.Load()
}
