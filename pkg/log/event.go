package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// DeviceID identifies the affected peripheral, if any.
	DeviceID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow for frame events.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"6,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"`
	Command     *CommandEvent     `cbor:"8,keyasint,omitempty"`
	Radio       *RadioEvent       `cbor:"9,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerFrame is the frame codec layer (raw bytes).
	LayerFrame Layer = 0
	// LayerCommand is the command queue / execution layer.
	LayerCommand Layer = 1
	// LayerDevice is the device state machine layer.
	LayerDevice Layer = 2
	// LayerRegistry is the registry / radio layer.
	LayerRegistry Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFrame:
		return "FRAME"
	case LayerCommand:
		return "COMMAND"
	case LayerDevice:
		return "DEVICE"
	case LayerRegistry:
		return "REGISTRY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame is raw frame traffic.
	CategoryFrame Category = 0
	// CategoryState is a connection state change.
	CategoryState Category = 1
	// CategoryCommand is a command lifecycle event.
	CategoryCommand Category = 2
	// CategoryHeartbeat is a liveness probe outcome.
	CategoryHeartbeat Category = 3
	// CategoryQuality is a link quality update.
	CategoryQuality Category = 4
	// CategoryRadio is a radio power/authorization change.
	CategoryRadio Category = 5
	// CategoryError is an error at any layer.
	CategoryError Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryCommand:
		return "COMMAND"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryQuality:
		return "QUALITY"
	case CategoryRadio:
		return "RADIO"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent carries raw frame traffic.
type FrameEvent struct {
	// Size is the full frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame content, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut for space.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent carries a connection state transition.
type StateChangeEvent struct {
	// From is the previous state name.
	From string `cbor:"1,keyasint"`

	// To is the new state name.
	To string `cbor:"2,keyasint"`
}

// CommandEvent carries a command lifecycle change.
type CommandEvent struct {
	// Opcode is the command opcode.
	Opcode uint8 `cbor:"1,keyasint"`

	// Status is the terminal status name, empty while in flight.
	Status string `cbor:"2,keyasint,omitempty"`

	// Heartbeat marks liveness probes.
	Heartbeat bool `cbor:"3,keyasint,omitempty"`
}

// RadioEvent carries a radio state change.
type RadioEvent struct {
	// State is the new radio state name.
	State string `cbor:"1,keyasint"`
}

// ErrorEventData carries an error.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`
}
