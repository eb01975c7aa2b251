// Package registry implements the device registry, the root object of a
// BLELink process.
//
// The registry owns the set of known peripherals, routes transport and
// negotiator callbacks into per-device state, aggregates the system-wide
// radio power state, and is the sole writer to the event bus. Consumers
// go the other direction: subscribe for events, and call Connect /
// Disconnect / SendCommand through the registry and its devices.
//
// # Locking
//
// The registry lock guards only its own maps and radio state. Per-device
// operations run under each device's own lock, one device at a time, and
// events are published with no registry lock held, so a subscriber may
// call back into the registry from its handler. Bulk teardown (radio
// power-off) flips the radio state and empties both maps atomically under
// the registry lock first, which makes the teardown atomic with respect
// to new discovery or connect requests, then performs the per-device
// cleanup and event sequence outside it.
package registry
