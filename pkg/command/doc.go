// Package command implements the per-device command queue and execution
// engine.
//
// Commands are immutable values (opcode, payload, timeout, retry budget);
// the engine does not interpret their semantics. Each peripheral owns one
// Queue which serializes all traffic to it: at most one command is in
// flight at any time, and a new command is only dequeued after the previous
// one reached a terminal outcome. The underlying link has no multiplexing,
// so this serialization is required for correctness, not a throughput
// trade-off.
//
// # Timeout and Retry
//
// A command that requires a response arms a timeout for its configured
// duration. On expiry the command is re-attempted immediately (front of the
// queue, attempt counter preserved) until its retry budget is exhausted,
// then completed with a timeout result. A command with MaxRetries=2 that
// never receives a response produces exactly three transport write
// attempts.
//
// # Completion Guarantee
//
// Every submitted command resolves exactly once, whether by success,
// failure, or timeout. The single exception is Clear, which abandons queued and
// in-flight tasks without invoking their completions; callers use it only
// when the device is already known to be gone.
package command
