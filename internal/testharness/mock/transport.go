// Package mock provides an in-memory transport and negotiator for testing.
//
// The mock transport delivers handler callbacks synchronously from the
// calling goroutine, which keeps tests deterministic: after
// SimulateDiscovery returns, the registry has already processed the
// discovery. Simulated peripherals can answer writes through a Responder
// function, so full command round trips work without a radio.
package mock

import (
	"errors"
	"sync"

	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// Mock transport errors
var (
	// ErrNoHandler indicates no handler was installed before use.
	ErrNoHandler = errors.New("no transport handler set")
	// ErrPeripheralNotFound indicates the device ID is not simulated.
	ErrPeripheralNotFound = errors.New("peripheral not found")
	// ErrNotConnected indicates an operation on a disconnected peripheral.
	ErrNotConnected = errors.New("peripheral not connected")
)

// Peripheral is a simulated BLE peripheral.
type Peripheral struct {
	// ID is the peripheral identifier.
	ID string

	// Name is the advertised name.
	Name string

	// RSSI is the value returned by ReadRSSI.
	RSSI int

	// ConnectErr, when set, makes connection attempts fail.
	ConnectErr error

	// Responder, when set, is invoked with each complete write and its
	// return value is delivered back as notification bytes.
	Responder func(data []byte) []byte
}

// Transport is an in-memory transport.Transport implementation.
type Transport struct {
	mu          sync.Mutex
	handler     transport.Handler
	peripherals map[string]*Peripheral
	connected   map[string]bool
	muted       map[string]bool
	writes      map[string][][]byte
	scanning    bool
	radioState  transport.RadioState
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates a mock transport with the radio powered on.
func NewTransport() *Transport {
	return &Transport{
		peripherals: make(map[string]*Peripheral),
		connected:   make(map[string]bool),
		muted:       make(map[string]bool),
		writes:      make(map[string][][]byte),
		radioState:  transport.RadioPoweredOn,
	}
}

// SetHandler installs the callback receiver.
func (t *Transport) SetHandler(h transport.Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// StartScan marks the transport as scanning. Already-added peripherals
// are announced immediately.
func (t *Transport) StartScan() error {
	t.mu.Lock()
	h := t.handler
	t.scanning = true
	var known []*Peripheral
	for _, p := range t.peripherals {
		known = append(known, p)
	}
	t.mu.Unlock()
	if h == nil {
		return ErrNoHandler
	}
	for _, p := range known {
		h.OnDeviceDiscovered(p.ID, p.Name)
	}
	return nil
}

// StopScan halts scanning.
func (t *Transport) StopScan() error {
	t.mu.Lock()
	t.scanning = false
	t.mu.Unlock()
	return nil
}

// Scanning reports whether a scan is active.
func (t *Transport) Scanning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scanning
}

// Connect simulates a connection attempt. Success and failure are both
// reported through the handler.
func (t *Transport) Connect(deviceID string) error {
	t.mu.Lock()
	h := t.handler
	p, ok := t.peripherals[deviceID]
	if ok && p.ConnectErr == nil {
		t.connected[deviceID] = true
	}
	t.mu.Unlock()
	if h == nil {
		return ErrNoHandler
	}
	if !ok {
		return ErrPeripheralNotFound
	}
	if p.ConnectErr != nil {
		h.OnConnectFailed(deviceID, p.ConnectErr)
		return nil
	}
	h.OnDeviceConnected(deviceID)
	return nil
}

// Disconnect drops a simulated connection without notifying the handler;
// the caller initiated it and already knows.
func (t *Transport) Disconnect(deviceID string) error {
	t.mu.Lock()
	delete(t.connected, deviceID)
	t.mu.Unlock()
	return nil
}

// WriteBytes records a write chunk and, when the peripheral has a
// Responder, feeds its response back through OnBytesReceived.
func (t *Transport) WriteBytes(deviceID string, data []byte) error {
	t.mu.Lock()
	h := t.handler
	p, ok := t.peripherals[deviceID]
	conn := t.connected[deviceID]
	muted := t.muted[deviceID]
	if conn {
		buf := make([]byte, len(data))
		copy(buf, data)
		t.writes[deviceID] = append(t.writes[deviceID], buf)
	}
	t.mu.Unlock()
	if !ok {
		return ErrPeripheralNotFound
	}
	if !conn {
		return ErrNotConnected
	}
	if p.Responder != nil && h != nil && !muted {
		if reply := p.Responder(data); reply != nil {
			h.OnBytesReceived(deviceID, reply)
		}
	}
	return nil
}

// ReadRSSI delivers the peripheral's configured RSSI through
// OnRSSISample.
func (t *Transport) ReadRSSI(deviceID string) error {
	t.mu.Lock()
	h := t.handler
	p, ok := t.peripherals[deviceID]
	conn := t.connected[deviceID]
	t.mu.Unlock()
	if !ok {
		return ErrPeripheralNotFound
	}
	if !conn {
		return ErrNotConnected
	}
	if h != nil {
		h.OnRSSISample(deviceID, p.RSSI)
	}
	return nil
}

// AddPeripheral registers a simulated peripheral. If a scan is active it
// is announced right away.
func (t *Transport) AddPeripheral(p *Peripheral) {
	t.mu.Lock()
	t.peripherals[p.ID] = p
	h := t.handler
	announce := t.scanning
	t.mu.Unlock()
	if announce && h != nil {
		h.OnDeviceDiscovered(p.ID, p.Name)
	}
}

// Connected reports whether the peripheral currently has a simulated
// connection.
func (t *Transport) Connected(deviceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected[deviceID]
}

// Writes returns a copy of all chunks written to the peripheral.
func (t *Transport) Writes(deviceID string) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes[deviceID]))
	copy(out, t.writes[deviceID])
	return out
}

// SetMuted controls whether the peripheral answers frames. A muted
// peripheral still accepts writes; its responses just never come back.
// Returns false for unknown peripherals.
func (t *Transport) SetMuted(deviceID string, muted bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.peripherals[deviceID]; !ok {
		return false
	}
	t.muted[deviceID] = muted
	return true
}

// SimulateNotify delivers notification bytes from the peripheral.
func (t *Transport) SimulateNotify(deviceID string, data []byte) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.OnBytesReceived(deviceID, data)
	}
}

// SimulateRSSI delivers an unsolicited RSSI sample.
func (t *Transport) SimulateRSSI(deviceID string, rssi int) {
	t.mu.Lock()
	if p, ok := t.peripherals[deviceID]; ok {
		p.RSSI = rssi
	}
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.OnRSSISample(deviceID, rssi)
	}
}

// SimulateDisconnect reports a transport-initiated link loss.
func (t *Transport) SimulateDisconnect(deviceID string, err error) {
	t.mu.Lock()
	delete(t.connected, deviceID)
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.OnDeviceDisconnected(deviceID, err)
	}
}

// SetRadioState changes the simulated adapter state and notifies the
// handler. Powering off drops all simulated connections.
func (t *Transport) SetRadioState(state transport.RadioState) {
	t.mu.Lock()
	t.radioState = state
	if state != transport.RadioPoweredOn {
		t.connected = make(map[string]bool)
	}
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.OnRadioStateChanged(state)
	}
}

// RadioState returns the simulated adapter state.
func (t *Transport) RadioState() transport.RadioState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.radioState
}
