// Package device implements the per-peripheral state machine and ties the
// command queue, heartbeat monitor, and quality tracker together.
//
// A Device owns all mutable per-peripheral state: its connection state,
// quality record, command queue, heartbeat monitor, and the accumulated
// notify-channel bytes. Every mutation funnels through the device's own
// methods under a single device-scoped lock; transport I/O and event
// publication happen outside that lock so one stalled peripheral never
// stalls another.
//
// Every state transition, regardless of cause, passes through SetState,
// which stores the new state and publishes a state-changed event
// unconditionally, plus the named connected/ready event for those two
// targets. The device holds a non-owning back-reference to its registry
// (the Owner interface) for event publication and reconnect requests; the
// registry, not the device, owns device lifetime.
package device
