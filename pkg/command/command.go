package command

import "time"

// Command defaults.
const (
	// DefaultTimeout is the default response timeout for a command.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retries after the first
	// attempt times out.
	DefaultMaxRetries = 0
)

// Command is an immutable command value submitted to a peripheral.
type Command struct {
	// Opcode identifies the command on the wire.
	Opcode byte

	// Payload is the command payload (may be nil).
	Payload []byte

	// ResponseRequired indicates whether a response frame is expected.
	// Commands without a response complete immediately after the write.
	ResponseRequired bool

	// Timeout is the response timeout per attempt.
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after a timeout.
	MaxRetries int

	// Heartbeat marks liveness probes issued by the heartbeat monitor.
	Heartbeat bool
}

// New creates a command with default timeout and retry settings.
func New(opcode byte, payload []byte, responseRequired bool) Command {
	return Command{
		Opcode:           opcode,
		Payload:          payload,
		ResponseRequired: responseRequired,
		Timeout:          DefaultTimeout,
		MaxRetries:       DefaultMaxRetries,
	}
}

// Status is the terminal outcome class of a command.
type Status uint8

const (
	// StatusSuccess indicates the command completed successfully.
	StatusSuccess Status = iota

	// StatusFailure indicates the command failed before or during the write.
	StatusFailure

	// StatusTimeout indicates no response arrived within the retry budget.
	StatusTimeout
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// FailureKind classifies command failures.
type FailureKind uint8

const (
	// FailureNone indicates no failure.
	FailureNone FailureKind = iota

	// FailureDeviceNotConnected indicates the command was submitted while
	// the device was not ready.
	FailureDeviceNotConnected

	// FailureCharacteristicNotFound indicates the write channel is missing
	// (capability negotiation incomplete or stale).
	FailureCharacteristicNotFound

	// FailureSendFailed indicates the transport rejected the write.
	FailureSendFailed
)

// String returns a human-readable failure kind name.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "NONE"
	case FailureDeviceNotConnected:
		return "DEVICE_NOT_CONNECTED"
	case FailureCharacteristicNotFound:
		return "CHARACTERISTIC_NOT_FOUND"
	case FailureSendFailed:
		return "SEND_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Result is the tagged outcome of a command. Exactly one Result is
// delivered per submitted command.
type Result struct {
	// Status is the outcome class.
	Status Status

	// Payload is the response payload for successful commands that
	// required a response; nil otherwise.
	Payload []byte

	// Failure is the failure kind when Status is StatusFailure.
	Failure FailureKind
}

// Success creates a successful result with an optional payload.
func Success(payload []byte) Result {
	return Result{Status: StatusSuccess, Payload: payload}
}

// Failure creates a failed result for the given kind.
func Failure(kind FailureKind) Result {
	return Result{Status: StatusFailure, Failure: kind}
}

// Timeout creates a timeout result.
func Timeout() Result {
	return Result{Status: StatusTimeout}
}

// OK returns true for successful results.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
