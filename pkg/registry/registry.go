package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/connection"
	"github.com/blelink-protocol/blelink-go/pkg/device"
	"github.com/blelink-protocol/blelink-go/pkg/event"
	"github.com/blelink-protocol/blelink-go/pkg/heartbeat"
	"github.com/blelink-protocol/blelink-go/pkg/log"
	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// Registry errors
var (
	// ErrUnknownDevice indicates the device ID has never been discovered.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrRadioUnavailable indicates the radio is off, unauthorized or
	// unsupported.
	ErrRadioUnavailable = errors.New("radio unavailable")
	// ErrClosed indicates the registry has been closed.
	ErrClosed = errors.New("registry closed")
)

const (
	// DefaultRSSISampleInterval is the period between RSSI reads while a
	// device is connected.
	DefaultRSSISampleInterval = 2 * time.Second

	// DefaultNegotiateTimeout bounds post-connect channel negotiation.
	DefaultNegotiateTimeout = 10 * time.Second
)

// Options configures a Registry. The zero value selects defaults
// throughout.
type Options struct {
	// Heartbeat configures the per-device liveness monitor.
	Heartbeat heartbeat.Config

	// Backoff configures the reconnect delay schedule.
	Backoff connection.BackoffConfig

	// RSSISampleInterval is the period between RSSI reads.
	// Defaults to DefaultRSSISampleInterval.
	RSSISampleInterval time.Duration

	// NegotiateTimeout bounds channel negotiation after a connect.
	// Defaults to DefaultNegotiateTimeout.
	NegotiateTimeout time.Duration

	// KeepQueueOnReconnect preserves queued commands across an automatic
	// reconnect instead of abandoning them. Off by default: queued
	// commands are usually stale by the time the link comes back.
	KeepQueueOnReconnect bool

	// Logger receives structured protocol events. Defaults to the no-op
	// logger.
	Logger log.Logger
}

// Registry tracks discovered and connected peripherals and drives their
// lifecycle from transport callbacks. It implements transport.Handler.
type Registry struct {
	transport  transport.Transport
	negotiator transport.Negotiator
	opts       Options
	bus        *event.Bus
	logger     log.Logger

	mu           sync.Mutex
	discovered   map[string]*device.Device
	connected    map[string]*device.Device
	backoffs     map[string]*connection.Backoff
	rssiStops    map[string]chan struct{}
	reconnecting map[string]bool
	radioState   transport.RadioState
	closed       bool
}

var _ transport.Handler = (*Registry)(nil)
var _ device.Owner = (*Registry)(nil)

// New creates a registry on top of the given transport and negotiator and
// installs itself as the transport's handler.
func New(t transport.Transport, n transport.Negotiator, opts Options) *Registry {
	if opts.RSSISampleInterval <= 0 {
		opts.RSSISampleInterval = DefaultRSSISampleInterval
	}
	if opts.NegotiateTimeout <= 0 {
		opts.NegotiateTimeout = DefaultNegotiateTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NoopLogger{}
	}
	r := &Registry{
		transport:    t,
		negotiator:   n,
		opts:         opts,
		bus:          event.NewBus(),
		logger:       opts.Logger,
		discovered:   make(map[string]*device.Device),
		connected:    make(map[string]*device.Device),
		backoffs:     make(map[string]*connection.Backoff),
		rssiStops:    make(map[string]chan struct{}),
		reconnecting: make(map[string]bool),
		radioState:   transport.RadioUnknown,
	}
	t.SetHandler(r)
	return r
}

// Subscribe registers an event handler and returns its subscription.
func (r *Registry) Subscribe(fn event.Handler) *event.Subscription {
	return r.bus.Subscribe(fn)
}

// Publish forwards an event to all subscribers. Devices emit their own
// events through this method; the registry stays the bus's only writer.
func (r *Registry) Publish(ev event.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.logEvent(ev)
	r.bus.Publish(ev)
}

// StartScanning begins peripheral discovery.
func (r *Registry) StartScanning() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if radioDown(r.radioState) {
		r.mu.Unlock()
		return ErrRadioUnavailable
	}
	r.mu.Unlock()
	return r.transport.StartScan()
}

// StopScanning halts peripheral discovery.
func (r *Registry) StopScanning() error {
	return r.transport.StopScan()
}

// Connect initiates a connection to a previously discovered device.
func (r *Registry) Connect(deviceID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if radioDown(r.radioState) {
		r.mu.Unlock()
		return ErrRadioUnavailable
	}
	d, ok := r.discovered[deviceID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownDevice
	}
	if _, already := r.connected[deviceID]; already {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	d.SetState(connection.StateConnecting)
	if err := r.transport.Connect(deviceID); err != nil {
		d.SetState(connection.StateDisconnected)
		return err
	}
	return nil
}

// Disconnect tears down a connected device. The device stays discovered
// and can be connected again. A device in the middle of an automatic
// reconnect is disconnectable too: the pending attempt is cancelled.
func (r *Registry) Disconnect(deviceID string) error {
	r.mu.Lock()
	d, ok := r.connected[deviceID]
	wasReconnecting := r.reconnecting[deviceID]
	if !ok && wasReconnecting {
		d, ok = r.discovered[deviceID]
	}
	if ok {
		delete(r.connected, deviceID)
		delete(r.reconnecting, deviceID)
		r.stopRSSILocked(deviceID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownDevice
	}

	err := r.transport.Disconnect(deviceID)
	r.finishDisconnect(d)
	if wasReconnecting {
		// The physical link already dropped when the reconnect began.
		return nil
	}
	return err
}

// DisconnectAll tears down every connected device.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.connected))
	for id := range r.connected {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Disconnect(id)
	}
}

// Device returns a discovered device by ID.
func (r *Registry) Device(deviceID string) (*device.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discovered[deviceID]
	return d, ok
}

// Devices returns all discovered devices.
func (r *Registry) Devices() []*device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*device.Device, 0, len(r.discovered))
	for _, d := range r.discovered {
		out = append(out, d)
	}
	return out
}

// ConnectedDevices returns all currently connected devices.
func (r *Registry) ConnectedDevices() []*device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*device.Device, 0, len(r.connected))
	for _, d := range r.connected {
		out = append(out, d)
	}
	return out
}

// RadioState returns the last reported radio power state.
func (r *Registry) RadioState() transport.RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.radioState
}

// Close disconnects every device and shuts the registry down. Further
// Connect and StartScanning calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	_ = r.transport.StopScan()
	r.DisconnectAll()
}

// OnDeviceDiscovered registers a newly seen peripheral.
func (r *Registry) OnDeviceDiscovered(deviceID, name string) {
	r.mu.Lock()
	if r.closed || radioDown(r.radioState) {
		r.mu.Unlock()
		return
	}
	if _, known := r.discovered[deviceID]; known {
		r.mu.Unlock()
		return
	}
	d := device.New(deviceID, name, r.opts.Heartbeat, r)
	d.SetLogger(r.logger)
	r.discovered[deviceID] = d
	r.mu.Unlock()

	r.Publish(event.Event{
		Type:      event.TypeDeviceDiscovered,
		Timestamp: time.Now(),
		Device:    d,
	})
}

// OnDeviceConnected moves a device into the connected set and starts
// channel negotiation.
func (r *Registry) OnDeviceConnected(deviceID string) {
	r.mu.Lock()
	d, ok := r.discovered[deviceID]
	if !ok || r.closed {
		r.mu.Unlock()
		return
	}
	r.connected[deviceID] = d
	delete(r.reconnecting, deviceID)
	if b, has := r.backoffs[deviceID]; has {
		b.Reset()
	}
	r.mu.Unlock()

	d.SetState(connection.StateConnected)
	go r.negotiate(d)
}

// OnConnectFailed records a failed connection attempt.
func (r *Registry) OnConnectFailed(deviceID string, err error) {
	r.mu.Lock()
	d, ok := r.discovered[deviceID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.logError(deviceID, "connect failed: "+err.Error())
	d.SetState(connection.StateDisconnected)
}

// OnDeviceDisconnected handles a transport-reported link loss.
func (r *Registry) OnDeviceDisconnected(deviceID string, err error) {
	r.mu.Lock()
	// During an automatic reconnect the physical disconnect is expected
	// and the device has already been prepared. Ignore it.
	if r.reconnecting[deviceID] {
		r.mu.Unlock()
		return
	}
	d, ok := r.connected[deviceID]
	if ok {
		delete(r.connected, deviceID)
		r.stopRSSILocked(deviceID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	if err != nil {
		r.logError(deviceID, "disconnected: "+err.Error())
	}
	r.finishDisconnect(d)
}

// OnBytesReceived routes inbound notification bytes to the device.
func (r *Registry) OnBytesReceived(deviceID string, data []byte) {
	r.mu.Lock()
	d, ok := r.connected[deviceID]
	r.mu.Unlock()
	if !ok {
		return
	}
	d.HandleBytesReceived(data)
}

// OnRSSISample routes a signal strength reading to the device.
func (r *Registry) OnRSSISample(deviceID string, rssi int) {
	r.mu.Lock()
	d, ok := r.connected[deviceID]
	r.mu.Unlock()
	if !ok {
		return
	}
	d.HandleRSSISample(rssi)
}

// OnRadioStateChanged reacts to adapter power transitions. Power loss
// tears down every device before the radio event goes out, so
// subscribers observe per-device disconnects, the aggregate event and
// the radio event in that order.
func (r *Registry) OnRadioStateChanged(state transport.RadioState) {
	r.mu.Lock()
	r.radioState = state
	var victims []*device.Device
	if radioDown(state) {
		for id, d := range r.connected {
			victims = append(victims, d)
			r.stopRSSILocked(id)
		}
		r.connected = make(map[string]*device.Device)
		r.discovered = make(map[string]*device.Device)
		r.reconnecting = make(map[string]bool)
	}
	r.mu.Unlock()

	r.Publish(event.Event{
		Type:       event.TypeRadioStateChanged,
		Timestamp:  time.Now(),
		RadioState: state,
	})

	switch state {
	case transport.RadioPoweredOn:
		r.Publish(event.Event{Type: event.TypeRadioPoweredOn, Timestamp: time.Now(), RadioState: state})
	case transport.RadioPoweredOff:
		for _, d := range victims {
			r.finishDisconnect(d)
		}
		r.Publish(event.Event{Type: event.TypeAllDevicesDisconnected, Timestamp: time.Now(), RadioState: state})
		r.Publish(event.Event{Type: event.TypeRadioPoweredOff, Timestamp: time.Now(), RadioState: state})
	case transport.RadioUnauthorized:
		for _, d := range victims {
			r.finishDisconnect(d)
		}
		r.Publish(event.Event{Type: event.TypeRadioUnauthorized, Timestamp: time.Now(), RadioState: state})
	case transport.RadioUnsupported:
		for _, d := range victims {
			r.finishDisconnect(d)
		}
	}
}

// RequestReconnect drops the link and schedules a fresh connect attempt
// after the device's current backoff delay. Called by devices when the
// heartbeat miss threshold fires.
func (r *Registry) RequestReconnect(deviceID string) {
	r.mu.Lock()
	d, ok := r.connected[deviceID]
	if !ok || r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.connected, deviceID)
	r.reconnecting[deviceID] = true
	r.stopRSSILocked(deviceID)
	b, has := r.backoffs[deviceID]
	if !has {
		b = connection.NewBackoffWithConfig(r.opts.Backoff)
		r.backoffs[deviceID] = b
	}
	r.mu.Unlock()

	d.SetState(connection.StateReconnecting)
	d.PrepareReconnect(r.opts.KeepQueueOnReconnect)
	_ = r.transport.Disconnect(deviceID)

	delay := b.Next()
	time.AfterFunc(delay, func() {
		r.mu.Lock()
		pending := r.reconnecting[deviceID] && !r.closed && !radioDown(r.radioState)
		r.mu.Unlock()
		if !pending {
			return
		}
		d.SetState(connection.StateConnecting)
		if err := r.transport.Connect(deviceID); err != nil {
			r.mu.Lock()
			delete(r.reconnecting, deviceID)
			r.mu.Unlock()
			r.logError(deviceID, "reconnect failed: "+err.Error())
			d.SetState(connection.StateDisconnected)
		}
	})
}

// negotiate resolves the device's channel pair and promotes it to ready.
// Negotiation failure drops the connection.
func (r *Registry) negotiate(d *device.Device) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.NegotiateTimeout)
	defer cancel()

	ch, err := r.negotiator.Negotiate(ctx, d.ID())
	if err != nil {
		r.logError(d.ID(), "negotiation failed: "+err.Error())
		_ = r.Disconnect(d.ID())
		return
	}

	r.mu.Lock()
	if _, still := r.connected[d.ID()]; !still {
		// A transport disconnect won the race; the teardown already ran.
		r.mu.Unlock()
		return
	}
	d.SetChannels(ch)
	r.startRSSILocked(d)
	r.mu.Unlock()

	d.SetState(connection.StateReady)
	d.StartHeartbeat()

	// A disconnect may still have raced the promotion above. Re-verify
	// membership and undo, otherwise a detached device would keep its
	// heartbeat probing a dead link forever.
	r.mu.Lock()
	_, still := r.connected[d.ID()]
	gone := !still && !r.reconnecting[d.ID()]
	r.mu.Unlock()
	if gone {
		d.Cleanup()
		d.SetState(connection.StateDisconnected)
	}
}

// finishDisconnect performs the device-side teardown and emits the
// disconnect event. The device must already be out of the connected set.
func (r *Registry) finishDisconnect(d *device.Device) {
	d.Cleanup()
	d.SetState(connection.StateDisconnected)
	r.Publish(event.Event{
		Type:      event.TypeDeviceDisconnected,
		Timestamp: time.Now(),
		Device:    d,
	})
}

// startRSSILocked launches the periodic RSSI sampling loop for a device.
// Caller holds the registry lock.
func (r *Registry) startRSSILocked(d *device.Device) {
	if _, running := r.rssiStops[d.ID()]; running {
		return
	}
	stop := make(chan struct{})
	r.rssiStops[d.ID()] = stop
	go func() {
		ticker := time.NewTicker(r.opts.RSSISampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Sample arrives asynchronously through OnRSSISample.
				_ = r.transport.ReadRSSI(d.ID())
			}
		}
	}()
}

// stopRSSILocked halts the sampling loop. Caller holds the registry lock.
func (r *Registry) stopRSSILocked(deviceID string) {
	if stop, ok := r.rssiStops[deviceID]; ok {
		close(stop)
		delete(r.rssiStops, deviceID)
	}
}

// logEvent mirrors a bus event into the structured log.
func (r *Registry) logEvent(ev event.Event) {
	var id string
	if ev.Device != nil {
		id = ev.Device.ID()
	}
	entry := log.Event{
		Timestamp: ev.Timestamp,
		DeviceID:  id,
		Layer:     log.LayerRegistry,
	}
	switch ev.Type {
	case event.TypeConnectionStateChanged, event.TypeDeviceDiscovered, event.TypeDeviceConnected,
		event.TypeDeviceReady, event.TypeDeviceDisconnected:
		entry.Layer = log.LayerDevice
		entry.Category = log.CategoryState
		if ev.Type == event.TypeConnectionStateChanged {
			entry.StateChange = &log.StateChangeEvent{From: ev.Previous.String(), To: ev.State.String()}
		} else if ev.Device != nil {
			entry.StateChange = &log.StateChangeEvent{To: ev.Device.State().String()}
		}
	case event.TypeHeartbeatSuccess, event.TypeHeartbeatFailed:
		entry.Layer = log.LayerDevice
		entry.Category = log.CategoryHeartbeat
	case event.TypeQualityChanged:
		entry.Layer = log.LayerDevice
		entry.Category = log.CategoryQuality
	default:
		entry.Category = log.CategoryRadio
		entry.Radio = &log.RadioEvent{State: ev.RadioState.String()}
	}
	r.logger.Log(entry)
}

// logError records a registry-layer error in the structured log.
func (r *Registry) logError(deviceID, msg string) {
	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		Layer:     log.LayerRegistry,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: msg},
	})
}

// radioDown reports whether the radio cannot carry traffic.
func radioDown(s transport.RadioState) bool {
	switch s {
	case transport.RadioPoweredOff, transport.RadioUnauthorized, transport.RadioUnsupported:
		return true
	}
	return false
}
