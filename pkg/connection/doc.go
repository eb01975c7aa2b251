// Package connection defines the peripheral connection lifecycle states and
// the reconnect backoff calculator.
//
// # State Machine
//
//	disconnected → connecting → connected → ready
//	ready ⇄ unstable (signal quality / heartbeat driven)
//	unstable → reconnecting → connecting | disconnected
//
// Only the ready state permits command submission. The unstable state is
// entered automatically by exactly two drivers: the heartbeat monitor (miss
// threshold) and the signal quality tracker (RSSI threshold); both funnel
// through the owning device's single state mutator, so they never race.
//
// # Backoff
//
// Reconnect attempts are spaced by exponential backoff with jitter,
// starting at one second and capped at one minute. Backoff resets after a
// successful connection.
package connection
