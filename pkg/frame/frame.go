package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 2

	// FooterSize is the size of the frame footer in bytes.
	FooterSize = 2

	// OpcodeSize is the size of the opcode field in bytes.
	OpcodeSize = 1

	// MinFrameSize is the minimum size of a complete frame
	// (header + opcode + footer, empty payload).
	MinFrameSize = HeaderSize + OpcodeSize + FooterSize

	// MTUSize is the maximum bytes per transport write. Assembled frames
	// larger than this are split into multiple write chunks.
	MTUSize = 20

	// MaxPayloadSize is the maximum payload size accepted by Encode.
	MaxPayloadSize = 512
)

// Header and footer markers.
var (
	// Header marks the start of every frame.
	Header = []byte{0xA5, 0x5A}

	// Footer marks the end of every frame.
	Footer = []byte{0x5A, 0xA5}
)

// Framing errors.
var (
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Encode builds the wire frame for an opcode and payload and splits it into
// MTU-sized chunks ready for sequential transport writes.
func Encode(opcode byte, payload []byte) ([][]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	buf := make([]byte, 0, MinFrameSize+len(payload))
	buf = append(buf, Header...)
	buf = append(buf, opcode)
	buf = append(buf, payload...)
	buf = append(buf, Footer...)

	chunks := make([][]byte, 0, (len(buf)+MTUSize-1)/MTUSize)
	for len(buf) > 0 {
		n := len(buf)
		if n > MTUSize {
			n = MTUSize
		}
		chunks = append(chunks, buf[:n])
		buf = buf[n:]
	}
	return chunks, nil
}

// Decode scans accumulated bytes for a complete frame.
//
// It returns the decoded opcode and payload together with the number of
// bytes consumed from the front of buf. A complete=false result means not
// enough bytes are buffered yet; it is not an error, the caller should keep
// accumulating. Bytes preceding the first header marker are skipped (and
// counted as consumed) so a desynchronized stream resynchronizes on the
// next frame boundary.
func Decode(buf []byte) (opcode byte, payload []byte, consumed int, complete bool) {
	// Resynchronize on the header marker.
	start := bytes.Index(buf, Header)
	if start < 0 {
		// Keep at most one trailing byte in case it is a split header.
		if n := len(buf); n > HeaderSize-1 {
			return 0, nil, n - (HeaderSize - 1), false
		}
		return 0, nil, 0, false
	}

	rest := buf[start:]
	if len(rest) < MinFrameSize {
		return 0, nil, start, false
	}

	opcode = rest[HeaderSize]

	// The format has no length field: the first footer marker after the
	// opcode terminates the frame.
	end := bytes.Index(rest[HeaderSize+OpcodeSize:], Footer)
	if end < 0 {
		return 0, nil, start, false
	}

	payload = rest[HeaderSize+OpcodeSize : HeaderSize+OpcodeSize+end]
	consumed = start + HeaderSize + OpcodeSize + end + FooterSize
	if len(payload) == 0 {
		payload = nil
	} else {
		payload = append([]byte(nil), payload...)
	}
	return opcode, payload, consumed, true
}

// FrameSize returns the assembled frame size for a payload length.
func FrameSize(payloadLen int) int {
	return MinFrameSize + payloadLen
}
