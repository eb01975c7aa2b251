package event

import (
	"time"

	"github.com/blelink-protocol/blelink-go/pkg/connection"
	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// Type identifies the kind of domain event.
type Type uint8

const (
	// TypeDeviceDiscovered fires when the transport reports a new
	// peripheral advertisement.
	TypeDeviceDiscovered Type = iota

	// TypeDeviceConnected fires when a peripheral is physically connected.
	TypeDeviceConnected

	// TypeDeviceReady fires when capability negotiation completes and the
	// peripheral accepts commands.
	TypeDeviceReady

	// TypeDeviceDisconnected fires when a peripheral is disconnected.
	TypeDeviceDisconnected

	// TypeConnectionStateChanged fires on every state transition, in
	// addition to any named event for the same transition.
	TypeConnectionStateChanged

	// TypeQualityChanged fires when a peripheral's connection quality
	// record is updated.
	TypeQualityChanged

	// TypeHeartbeatSuccess fires when a liveness probe is answered.
	TypeHeartbeatSuccess

	// TypeHeartbeatFailed fires when the miss threshold is reached.
	TypeHeartbeatFailed

	// TypeRadioStateChanged fires on every radio state change.
	TypeRadioStateChanged

	// TypeRadioPoweredOff fires when the radio powers off.
	TypeRadioPoweredOff

	// TypeRadioPoweredOn fires when the radio powers on.
	TypeRadioPoweredOn

	// TypeRadioUnauthorized fires when radio access is denied.
	TypeRadioUnauthorized

	// TypeAllDevicesDisconnected fires once after a bulk teardown leaves
	// no connected peripherals.
	TypeAllDevicesDisconnected
)

// String returns a human-readable event type name.
func (t Type) String() string {
	switch t {
	case TypeDeviceDiscovered:
		return "DEVICE_DISCOVERED"
	case TypeDeviceConnected:
		return "DEVICE_CONNECTED"
	case TypeDeviceReady:
		return "DEVICE_READY"
	case TypeDeviceDisconnected:
		return "DEVICE_DISCONNECTED"
	case TypeConnectionStateChanged:
		return "CONNECTION_STATE_CHANGED"
	case TypeQualityChanged:
		return "QUALITY_CHANGED"
	case TypeHeartbeatSuccess:
		return "HEARTBEAT_SUCCESS"
	case TypeHeartbeatFailed:
		return "HEARTBEAT_FAILED"
	case TypeRadioStateChanged:
		return "RADIO_STATE_CHANGED"
	case TypeRadioPoweredOff:
		return "RADIO_POWERED_OFF"
	case TypeRadioPoweredOn:
		return "RADIO_POWERED_ON"
	case TypeRadioUnauthorized:
		return "RADIO_UNAUTHORIZED"
	case TypeAllDevicesDisconnected:
		return "ALL_DEVICES_DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Peripheral is the read-only view of a device carried by events. Devices
// outlive their events, so holding the reference is safe; observers that
// need more than identity can type-assert to the concrete device type.
type Peripheral interface {
	ID() string
	Name() string
	State() connection.State
}

// Event is an immutable snapshot of a domain occurrence.
type Event struct {
	// Type tags the event.
	Type Type

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Device is the affected peripheral; nil for system-level events.
	Device Peripheral

	// State is the new connection state for TypeConnectionStateChanged.
	State connection.State

	// Previous is the prior connection state for
	// TypeConnectionStateChanged.
	Previous connection.State

	// RadioState is the new radio state for TypeRadioStateChanged.
	RadioState transport.RadioState
}
