// Package heartbeat implements the per-peripheral liveness monitor.
//
// While a device is ready or unstable, the monitor periodically submits a
// heartbeat-flagged command through the device's command queue. Probes
// share the queue's FIFO with user commands, so a probe never overtakes
// in-flight traffic. Each probe carries its own short timeout envelope,
// independent of user command timeouts, and the monitor keeps its own miss
// counter: after a configured number of consecutive unanswered probes it
// reports failure once, at which point the owner demotes the device and
// requests a reconnect.
//
// At most one probe is outstanding at a time. A tick that fires while the
// previous probe is still pending is skipped rather than stacking probes.
package heartbeat
