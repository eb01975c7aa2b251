package device

import (
	"sync"
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/command"
	"github.com/blelink-protocol/blelink-go/pkg/connection"
	"github.com/blelink-protocol/blelink-go/pkg/event"
	"github.com/blelink-protocol/blelink-go/pkg/frame"
	"github.com/blelink-protocol/blelink-go/pkg/heartbeat"
	"github.com/blelink-protocol/blelink-go/pkg/log"
	"github.com/blelink-protocol/blelink-go/pkg/quality"
	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// maxLoggedFrameBytes caps the raw bytes copied into frame log events.
const maxLoggedFrameBytes = 32

// Owner is the device's non-owning back-reference to its registry. The
// registry is the sole writer to the event bus; devices publish through
// it. Implementations must be safe for concurrent use.
type Owner interface {
	// Publish emits a domain event on the registry's event bus.
	Publish(ev event.Event)

	// RequestReconnect asks the registry to tear down and re-establish
	// the physical connection after a backoff.
	RequestReconnect(deviceID string)
}

// Compile-time interface satisfaction check.
var _ event.Peripheral = (*Device)(nil)

// Device is one known peripheral and all of its mutable state.
type Device struct {
	id      string
	name    string
	devType Type
	owner   Owner
	logger  log.Logger

	mu       sync.Mutex
	state    connection.State
	channels *transport.Channels
	rxBuf    []byte

	queue   *command.Queue
	monitor *heartbeat.Monitor
	tracker *quality.Tracker
}

// New creates a device in the disconnected state.
func New(id, name string, hbConfig heartbeat.Config, owner Owner) *Device {
	d := &Device{
		id:      id,
		name:    name,
		devType: Classify(name),
		owner:   owner,
		logger:  log.NoopLogger{},
		state:   connection.StateDisconnected,
		tracker: quality.NewTracker(),
	}

	d.queue = command.NewQueue(d.writeFrames)
	d.queue.SetOutcomeCallback(d.tracker.RecordCommandOutcome)

	d.monitor = heartbeat.NewMonitor(hbConfig, d.submit, d.handleHeartbeatSuccess, d.handleHeartbeatFailure)
	d.monitor.OnMiss(func(int) { d.tracker.RecordHeartbeatMiss() })

	d.tracker.OnChange(d.handleQualityChange)
	d.tracker.OnDegraded(func(int) { d.demote() })
	d.tracker.OnRecovered(func(int) { d.promote() })

	return d
}

// SetLogger installs a structured logger for command and frame traffic.
// Set before the device is connected; defaults to the no-op logger.
func (d *Device) SetLogger(l log.Logger) {
	if l == nil {
		l = log.NoopLogger{}
	}
	d.logger = l
}

// ID returns the stable peripheral identifier.
func (d *Device) ID() string { return d.id }

// Name returns the advertised name.
func (d *Device) Name() string { return d.name }

// Type returns the classified peripheral type.
func (d *Device) Type() Type { return d.devType }

// State returns the current connection state.
func (d *Device) State() connection.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Quality returns the current connection quality snapshot.
func (d *Device) Quality() quality.Quality {
	return d.tracker.Snapshot()
}

// Queue exposes the device's command queue (primarily for tests and
// diagnostics).
func (d *Device) Queue() *command.Queue { return d.queue }

// HeartbeatRunning reports whether the liveness monitor is active
// (primarily for tests and diagnostics).
func (d *Device) HeartbeatRunning() bool { return d.monitor.IsRunning() }

// SetState is the single state mutator. It stores the new state and
// publishes a state-changed event unconditionally, plus the named event
// for the connected and ready targets. Events are published outside the
// device lock.
func (d *Device) SetState(s connection.State) {
	d.mu.Lock()
	prev := d.state
	if prev == s {
		d.mu.Unlock()
		return
	}
	d.state = s
	d.mu.Unlock()

	d.owner.Publish(event.Event{Type: event.TypeConnectionStateChanged, Device: d, State: s, Previous: prev})

	switch s {
	case connection.StateConnected:
		d.owner.Publish(event.Event{Type: event.TypeDeviceConnected, Device: d})
	case connection.StateReady:
		d.owner.Publish(event.Event{Type: event.TypeDeviceReady, Device: d})
	}
}

// SendCommand submits a command for execution. A device that is not ready
// rejects immediately with a device-not-connected failure, without
// touching the transport.
func (d *Device) SendCommand(cmd command.Command, complete command.CompletionFunc) {
	if !d.State().AcceptsCommands() {
		complete(command.Failure(command.FailureDeviceNotConnected))
		return
	}
	d.submit(cmd, complete)
}

// submit logs the command's submission and terminal outcome around the
// queue. Both user commands and heartbeat probes come through here.
func (d *Device) submit(cmd command.Command, complete command.CompletionFunc) {
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  d.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerCommand,
		Category:  log.CategoryCommand,
		Command:   &log.CommandEvent{Opcode: cmd.Opcode, Heartbeat: cmd.Heartbeat},
	})
	d.queue.Submit(cmd, func(res command.Result) {
		d.logger.Log(log.Event{
			Timestamp: time.Now(),
			DeviceID:  d.id,
			Direction: log.DirectionIn,
			Layer:     log.LayerCommand,
			Category:  log.CategoryCommand,
			Command:   &log.CommandEvent{Opcode: cmd.Opcode, Status: res.Status.String(), Heartbeat: cmd.Heartbeat},
		})
		complete(res)
	})
}

// SetChannels installs the negotiated write/notify channel pair.
func (d *Device) SetChannels(ch *transport.Channels) {
	d.mu.Lock()
	d.channels = ch
	d.mu.Unlock()
}

// StartHeartbeat begins liveness probing.
func (d *Device) StartHeartbeat() {
	d.monitor.Start()
}

// StopHeartbeat stops liveness probing.
func (d *Device) StopHeartbeat() {
	d.monitor.Stop()
}

// HandleBytesReceived accumulates notify-channel bytes and correlates
// complete response frames with the in-flight command. Implements the
// transport-facing receive path; called by the registry.
func (d *Device) HandleBytesReceived(data []byte) {
	d.logFrame(log.DirectionIn, data)

	d.mu.Lock()
	d.rxBuf = append(d.rxBuf, data...)

	type response struct {
		opcode  byte
		payload []byte
	}
	var responses []response
	for {
		opcode, payload, consumed, complete := frame.Decode(d.rxBuf)
		if consumed > 0 {
			d.rxBuf = d.rxBuf[consumed:]
		}
		if !complete {
			break
		}
		responses = append(responses, response{opcode, payload})
	}
	d.mu.Unlock()

	for _, r := range responses {
		d.queue.HandleResponse(r.opcode, r.payload)
	}
}

// HandleRSSISample feeds a signal strength sample to the quality tracker.
func (d *Device) HandleRSSISample(rssi int) {
	d.tracker.RecordRSSI(rssi, d.State())
}

// Cleanup is the full resource teardown for a disconnecting device: the
// heartbeat stops, queued commands are abandoned, the channel pair and
// receive buffer are dropped, and the quality record resets. Re-entering
// the connecting state recreates these resources fresh.
func (d *Device) Cleanup() {
	d.monitor.Stop()
	d.queue.Clear()

	d.mu.Lock()
	d.channels = nil
	d.rxBuf = nil
	d.mu.Unlock()

	d.tracker.Reset()
}

// PrepareReconnect is the partial teardown preceding an automatic
// reconnect: the heartbeat stops and the stale channel pair and receive
// buffer are dropped. Queued commands survive when keepQueue is set; the
// quality history is kept either way so the reconnect cause stays
// observable.
func (d *Device) PrepareReconnect(keepQueue bool) {
	d.monitor.Stop()
	if !keepQueue {
		d.queue.Clear()
	}

	d.mu.Lock()
	d.channels = nil
	d.rxBuf = nil
	d.mu.Unlock()
}

// writeFrames is the queue's write function: it pushes each MTU-sized
// chunk through the negotiated write channel.
func (d *Device) writeFrames(chunks [][]byte) error {
	d.mu.Lock()
	ch := d.channels
	d.mu.Unlock()

	if ch == nil || ch.Write == nil {
		return command.ErrNoWriteChannel
	}
	for _, chunk := range chunks {
		d.logFrame(log.DirectionOut, chunk)
		if err := ch.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// logFrame records raw frame traffic, truncating large payloads.
func (d *Device) logFrame(dir log.Direction, data []byte) {
	fe := &log.FrameEvent{Size: len(data)}
	if len(data) > maxLoggedFrameBytes {
		fe.Data = append([]byte(nil), data[:maxLoggedFrameBytes]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  d.id,
		Direction: dir,
		Layer:     log.LayerFrame,
		Category:  log.CategoryFrame,
		Frame:     fe,
	})
}

// handleHeartbeatSuccess records latency and publishes the success event.
func (d *Device) handleHeartbeatSuccess(latency time.Duration) {
	d.tracker.RecordHeartbeatSuccess(latency)
	d.owner.Publish(event.Event{Type: event.TypeHeartbeatSuccess, Device: d})
}

// handleHeartbeatFailure demotes the device and requests a reconnect.
func (d *Device) handleHeartbeatFailure() {
	d.demote()
	d.owner.Publish(event.Event{Type: event.TypeHeartbeatFailed, Device: d})
	d.owner.RequestReconnect(d.id)
}

// handleQualityChange publishes the quality-changed event.
func (d *Device) handleQualityChange(quality.Quality) {
	d.owner.Publish(event.Event{Type: event.TypeQualityChanged, Device: d})
}

// demote moves a ready device to unstable.
func (d *Device) demote() {
	d.mu.Lock()
	ready := d.state == connection.StateReady
	d.mu.Unlock()
	if ready {
		d.SetState(connection.StateUnstable)
	}
}

// promote moves an unstable device back to ready.
func (d *Device) promote() {
	d.mu.Lock()
	unstable := d.state == connection.StateUnstable
	d.mu.Unlock()
	if unstable {
		d.SetState(connection.StateReady)
	}
}
