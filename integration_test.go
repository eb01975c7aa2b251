// End-to-end tests exercising the full stack through the public API:
// registry, devices, command queue, heartbeat, quality and event bus,
// all running against the in-memory transport.
package blelink_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blelink-protocol/blelink-go/internal/testharness/mock"
	"github.com/blelink-protocol/blelink-go/pkg/command"
	"github.com/blelink-protocol/blelink-go/pkg/config"
	"github.com/blelink-protocol/blelink-go/pkg/connection"
	"github.com/blelink-protocol/blelink-go/pkg/event"
	"github.com/blelink-protocol/blelink-go/pkg/frame"
	"github.com/blelink-protocol/blelink-go/pkg/heartbeat"
	"github.com/blelink-protocol/blelink-go/pkg/log"
	"github.com/blelink-protocol/blelink-go/pkg/registry"
	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// echoPeripheral answers every complete frame with the same opcode and
// the payload reversed, so responses are distinguishable from echoes.
func echoPeripheral(id, name string) *mock.Peripheral {
	var buf []byte
	return &mock.Peripheral{
		ID:   id,
		Name: name,
		RSSI: -55,
		Responder: func(data []byte) []byte {
			buf = append(buf, data...)
			var out []byte
			for {
				opcode, payload, consumed, complete := frame.Decode(buf)
				if consumed > 0 {
					buf = buf[consumed:]
				}
				if !complete {
					break
				}
				for i, j := 0, len(payload)-1; i < j; i, j = i+1, j-1 {
					payload[i], payload[j] = payload[j], payload[i]
				}
				chunks, _ := frame.Encode(opcode, payload)
				for _, c := range chunks {
					out = append(out, c...)
				}
			}
			return out
		},
	}
}

func newStack(t *testing.T) (*registry.Registry, *mock.Transport, chan event.Event) {
	t.Helper()
	tr := mock.NewTransport()
	reg := registry.New(tr, mock.NewNegotiator(tr), registry.Options{
		Heartbeat: heartbeat.Config{
			Interval:     20 * time.Millisecond,
			ProbeTimeout: 40 * time.Millisecond,
			MaxMisses:    2,
		},
		Backoff: connection.BackoffConfig{
			Initial:    10 * time.Millisecond,
			Max:        40 * time.Millisecond,
			Multiplier: 2,
			Jitter:     0.01,
		},
		RSSISampleInterval: 100 * time.Millisecond,
	})
	t.Cleanup(reg.Close)

	events := make(chan event.Event, 4096)
	reg.Subscribe(func(ev event.Event) { events <- ev })
	return reg, tr, events
}

func awaitEvent(t *testing.T, events chan event.Event, typ event.Type) event.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestE2E_DiscoveryToReady(t *testing.T) {
	reg, tr, events := newStack(t)

	if err := reg.StartScanning(); err != nil {
		t.Fatalf("StartScanning: %v", err)
	}
	tr.AddPeripheral(echoPeripheral("lock-1", "Front Door Lock"))

	ev := awaitEvent(t, events, event.TypeDeviceDiscovered)
	if ev.Device.ID() != "lock-1" {
		t.Fatalf("discovered %q, want lock-1", ev.Device.ID())
	}

	if err := reg.Connect("lock-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitEvent(t, events, event.TypeDeviceConnected)
	awaitEvent(t, events, event.TypeDeviceReady)

	d, _ := reg.Device("lock-1")
	if d.State() != connection.StateReady {
		t.Fatalf("state = %s, want READY", d.State())
	}
}

func TestE2E_CommandRoundTrip(t *testing.T) {
	reg, tr, events := newStack(t)

	_ = reg.StartScanning()
	tr.AddPeripheral(echoPeripheral("sensor-1", "Sensor"))
	awaitEvent(t, events, event.TypeDeviceDiscovered)
	_ = reg.Connect("sensor-1")
	awaitEvent(t, events, event.TypeDeviceReady)

	d, _ := reg.Device("sensor-1")
	done := make(chan command.Result, 1)
	d.SendCommand(command.New(0x20, []byte{1, 2, 3}, true), func(r command.Result) {
		done <- r
	})

	select {
	case r := <-done:
		if !r.OK() {
			t.Fatalf("command failed: %s", r.Status)
		}
		want := []byte{3, 2, 1}
		if len(r.Payload) != 3 || r.Payload[0] != want[0] || r.Payload[2] != want[2] {
			t.Fatalf("payload = %v, want %v", r.Payload, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("command never completed")
	}
}

func TestE2E_HeartbeatLossAndReconnect(t *testing.T) {
	reg, tr, events := newStack(t)

	_ = reg.StartScanning()
	tr.AddPeripheral(echoPeripheral("lamp-1", "Lamp"))
	awaitEvent(t, events, event.TypeDeviceDiscovered)
	_ = reg.Connect("lamp-1")
	awaitEvent(t, events, event.TypeDeviceReady)

	// The peripheral goes silent; the heartbeat notices and the registry
	// reconnects.
	tr.SetMuted("lamp-1", true)
	awaitEvent(t, events, event.TypeHeartbeatFailed)

	tr.SetMuted("lamp-1", false)
	awaitEvent(t, events, event.TypeDeviceConnected)
	awaitEvent(t, events, event.TypeDeviceReady)
	awaitEvent(t, events, event.TypeHeartbeatSuccess)
}

func TestE2E_RadioPowerLoss(t *testing.T) {
	reg, tr, events := newStack(t)

	_ = reg.StartScanning()
	tr.AddPeripheral(echoPeripheral("a", "A"))
	tr.AddPeripheral(echoPeripheral("b", "B"))
	_ = reg.Connect("a")
	_ = reg.Connect("b")
	awaitEvent(t, events, event.TypeDeviceReady)
	awaitEvent(t, events, event.TypeDeviceReady)

	tr.SetRadioState(transport.RadioPoweredOff)

	disconnects := 0
	deadline := time.After(3 * time.Second)
	for {
		var ev event.Event
		select {
		case ev = <-events:
		case <-deadline:
			t.Fatal("power-off sequence never completed")
		}
		switch ev.Type {
		case event.TypeDeviceDisconnected:
			disconnects++
		case event.TypeAllDevicesDisconnected:
			if disconnects != 2 {
				t.Fatalf("aggregate event after %d disconnects, want 2", disconnects)
			}
		case event.TypeRadioPoweredOff:
			if got := len(reg.ConnectedDevices()); got != 0 {
				t.Fatalf("connected devices = %d, want 0", got)
			}
			if err := reg.Connect("a"); err != registry.ErrRadioUnavailable {
				t.Fatalf("Connect err = %v, want ErrRadioUnavailable", err)
			}
			return
		}
	}
}

func TestE2E_ConfigDrivenStack(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "blelink.yaml")
	logPath := filepath.Join(dir, "protocol.cbor")
	yaml := `
heartbeat:
  interval: 20ms
  probe_timeout: 40ms
  max_misses: 2
reconnect:
  initial_backoff: 10ms
  max_backoff: 40ms
  multiplier: 2
  jitter: 0.01
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	fl, err := log.NewFileLogger(logPath)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	tr := mock.NewTransport()
	opts := cfg.RegistryOptions()
	opts.Logger = fl
	reg := registry.New(tr, mock.NewNegotiator(tr), opts)
	events := make(chan event.Event, 4096)
	reg.Subscribe(func(ev event.Event) { events <- ev })

	_ = reg.StartScanning()
	tr.AddPeripheral(echoPeripheral("therm-1", "Thermostat"))
	awaitEvent(t, events, event.TypeDeviceDiscovered)
	_ = reg.Connect("therm-1")
	awaitEvent(t, events, event.TypeDeviceReady)

	reg.Close()
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The protocol log replays the session.
	r, err := log.NewReader(logPath)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	states := 0
	for {
		entry, err := r.Next()
		if err != nil {
			break
		}
		if entry.Category == log.CategoryState {
			states++
		}
	}
	if states == 0 {
		t.Fatal("protocol log recorded no state changes")
	}
}
