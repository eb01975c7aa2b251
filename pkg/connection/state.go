package connection

// State represents the connection lifecycle state of a peripheral.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates a physical connection without negotiated
	// capabilities; commands are not yet accepted.
	StateConnected

	// StateReady indicates capabilities are negotiated and commands are
	// accepted.
	StateReady

	// StateUnstable indicates a degraded link (missed heartbeats or weak
	// signal); the connection is kept but recovery is underway.
	StateUnstable

	// StateReconnecting indicates the connection is being torn down and
	// re-established automatically.
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReady:
		return "READY"
	case StateUnstable:
		return "UNSTABLE"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// AcceptsCommands returns true if the state permits command submission.
func (s State) AcceptsCommands() bool {
	return s == StateReady
}
