// Package event defines the BLELink domain events and the broadcast bus
// that fans them out to independent observers.
//
// The bus has a single logical writer (the device registry) and any number
// of subscribers attached at arbitrary times. Delivery is broadcast and
// synchronous: every event is handed to all current subscribers in the
// exact order it was published, and the bus itself never drops an event.
// There is no replay (a subscriber only observes events published after
// it subscribed) and no backpressure; handlers that need to block should
// hand the event off to their own goroutine. A handler may publish
// further events, directly or by calling back into the registry; they
// are queued behind the event being delivered and fanned out once it
// completes.
//
// Cancelling a subscription stops further delivery, nothing more. A
// subscriber added while an emission is in progress may or may not see the
// in-flight event; that race is accepted.
package event
