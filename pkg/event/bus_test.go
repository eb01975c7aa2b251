package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/connection"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []Type
	bus.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})

	want := []Type{TypeDeviceDiscovered, TypeDeviceConnected, TypeDeviceReady, TypeQualityChanged}
	for _, ty := range want {
		bus.Publish(Event{Type: ty})
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("delivered %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event order = %v, want %v", got, want)
		}
	}
}

func TestPublishFromHandler(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []Type
	bus.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
		// React to the disconnect by publishing a follow-up, the way a
		// subscriber calling back into the registry would.
		if ev.Type == TypeDeviceDisconnected {
			bus.Publish(Event{Type: TypeConnectionStateChanged})
		}
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeDeviceDisconnected})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested publish never returned")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Type{TypeDeviceDisconnected, TypeConnectionStateChanged}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("delivered %v, want %v", got, want)
	}
}

func TestBusBroadcastsToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var a, b atomic.Int32
	bus.Subscribe(func(Event) { a.Add(1) })
	bus.Subscribe(func(Event) { b.Add(1) })

	bus.Publish(Event{Type: TypeHeartbeatSuccess})
	bus.Publish(Event{Type: TypeHeartbeatFailed})

	if a.Load() != 2 || b.Load() != 2 {
		t.Errorf("deliveries = %d/%d, want 2/2", a.Load(), b.Load())
	}
}

func TestBusNoReplay(t *testing.T) {
	bus := NewBus()

	bus.Publish(Event{Type: TypeDeviceDiscovered})

	var n atomic.Int32
	bus.Subscribe(func(Event) { n.Add(1) })

	if n.Load() != 0 {
		t.Errorf("late subscriber saw %d replayed events, want 0", n.Load())
	}

	bus.Publish(Event{Type: TypeDeviceConnected})
	if n.Load() != 1 {
		t.Errorf("deliveries = %d, want 1", n.Load())
	}
}

func TestSubscriptionCancel(t *testing.T) {
	bus := NewBus()

	var n atomic.Int32
	sub := bus.Subscribe(func(Event) { n.Add(1) })

	bus.Publish(Event{Type: TypeDeviceReady})
	sub.Cancel()
	bus.Publish(Event{Type: TypeDeviceDisconnected})

	if n.Load() != 1 {
		t.Errorf("deliveries = %d, want 1", n.Load())
	}
	if sub.Active() {
		t.Error("subscription still active after Cancel")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", bus.SubscriberCount())
	}

	// Double cancel is a no-op.
	sub.Cancel()
}

func TestBusConcurrentSubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.Publish(Event{Type: TypeQualityChanged})
			}
		}
	}()

	for i := 0; i < 50; i++ {
		sub := bus.Subscribe(func(Event) {})
		sub.Cancel()
	}

	close(stop)
	wg.Wait()
}

func TestEventCarriesState(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(func(ev Event) { got = ev })

	bus.Publish(Event{Type: TypeConnectionStateChanged, State: connection.StateUnstable})

	if got.Type != TypeConnectionStateChanged {
		t.Fatalf("type = %v, want CONNECTION_STATE_CHANGED", got.Type)
	}
	if got.State != connection.StateUnstable {
		t.Errorf("state = %v, want UNSTABLE", got.State)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}
