package transport

import (
	"context"

	"github.com/google/uuid"
)

// RadioState represents the power/authorization state of the local radio.
type RadioState uint8

const (
	// RadioUnknown indicates the radio state has not been determined yet.
	RadioUnknown RadioState = iota

	// RadioResetting indicates the radio is resetting.
	RadioResetting

	// RadioUnsupported indicates the host has no usable radio.
	RadioUnsupported

	// RadioUnauthorized indicates the process lacks permission to use the
	// radio.
	RadioUnauthorized

	// RadioPoweredOff indicates the radio is powered off.
	RadioPoweredOff

	// RadioPoweredOn indicates the radio is powered on and usable.
	RadioPoweredOn
)

// String returns a human-readable radio state name.
func (s RadioState) String() string {
	switch s {
	case RadioUnknown:
		return "UNKNOWN"
	case RadioResetting:
		return "RESETTING"
	case RadioUnsupported:
		return "UNSUPPORTED"
	case RadioUnauthorized:
		return "UNAUTHORIZED"
	case RadioPoweredOff:
		return "POWERED_OFF"
	case RadioPoweredOn:
		return "POWERED_ON"
	default:
		return "INVALID"
	}
}

// Transport is the physical radio link abstraction. All operations are
// asynchronous: results and unsolicited events are delivered through the
// Handler registered with SetHandler.
type Transport interface {
	// SetHandler registers the callback sink. Must be called before any
	// other method.
	SetHandler(h Handler)

	// StartScan begins peripheral discovery.
	StartScan() error

	// StopScan stops peripheral discovery.
	StopScan() error

	// Connect initiates a physical connection to a peripheral.
	Connect(deviceID string) error

	// Disconnect tears down the physical connection to a peripheral.
	Disconnect(deviceID string) error

	// WriteBytes writes one MTU-sized chunk to the peripheral's write
	// channel.
	WriteBytes(deviceID string, chunk []byte) error

	// ReadRSSI requests a signal strength sample; the value arrives via
	// Handler.OnRSSISample.
	ReadRSSI(deviceID string) error
}

// Handler receives asynchronous transport callbacks. Implemented by the
// device registry. Implementations must be safe for concurrent use.
type Handler interface {
	// OnDeviceDiscovered reports an advertisement from a peripheral.
	OnDeviceDiscovered(deviceID, name string)

	// OnDeviceConnected reports a completed physical connection.
	OnDeviceConnected(deviceID string)

	// OnConnectFailed reports a failed connection attempt.
	OnConnectFailed(deviceID string, err error)

	// OnDeviceDisconnected reports a physical disconnect, solicited or
	// not. err is nil for solicited disconnects.
	OnDeviceDisconnected(deviceID string, err error)

	// OnBytesReceived reports bytes arriving on a peripheral's notify
	// channel.
	OnBytesReceived(deviceID string, data []byte)

	// OnRSSISample reports a signal strength sample in dBm.
	OnRSSISample(deviceID string, rssi int)

	// OnRadioStateChanged reports a change of the local radio state.
	OnRadioStateChanged(state RadioState)
}

// Channels is the negotiated write/notify channel pair for a connected
// peripheral.
type Channels struct {
	// WriteUUID identifies the write characteristic.
	WriteUUID uuid.UUID

	// NotifyUUID identifies the notify characteristic.
	NotifyUUID uuid.UUID

	// Write sends one MTU-sized chunk to the write characteristic.
	Write func(chunk []byte) error
}

// Negotiator performs post-connect capability discovery for a physically
// connected peripheral. Its success drives the connected → ready
// transition.
type Negotiator interface {
	// Negotiate discovers services and characteristics and returns the
	// usable channel pair, or an error if the peripheral lacks the
	// required capabilities.
	Negotiate(ctx context.Context, deviceID string) (*Channels, error)
}
