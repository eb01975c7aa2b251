// Package log provides structured logging of BLELink protocol activity.
//
// The library does not write to any particular sink itself: components
// emit immutable Event records through the Logger interface, and the
// application chooses where they go. Available sinks:
//
//   - NoopLogger: discard everything (the default).
//   - SlogAdapter: forward to a log/slog logger.
//   - ZerologAdapter: forward to a zerolog logger.
//   - FileLogger: append CBOR-encoded events to a file for post-mortem
//     analysis; Reader parses such files back.
//   - MultiLogger: fan out to several sinks at once.
//
// Events use integer CBOR keys for compactness on disk.
package log
