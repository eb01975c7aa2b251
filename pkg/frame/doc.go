// Package frame implements the BLELink frame codec.
//
// A frame wraps a single command or response byte sequence exchanged with a
// peripheral:
//
//	┌──────────────┬─────────┬───────────────┬──────────────┐
//	│ Header (2B)  │ Opcode  │ Payload (0-n) │ Footer (2B)  │
//	│  0xA5 0x5A   │  (1B)   │               │  0x5A 0xA5   │
//	└──────────────┴─────────┴───────────────┴──────────────┘
//
// The wire format carries no length field and no checksum. A payload that
// happens to contain the footer marker, a response split across multiple
// notification fragments, or a corrupted stream cannot be reliably
// distinguished from a valid short frame. This is a known correctness gap in
// the protocol itself, not something the codec can repair; Decode implements
// the only interpretation the format permits (first footer marker after the
// opcode terminates the frame).
//
// Encode chunks the assembled frame at the BLE write MTU, since a single
// attribute write cannot exceed MTUSize bytes on the links this library
// targets.
package frame
