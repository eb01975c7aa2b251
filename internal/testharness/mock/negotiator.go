package mock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// Negotiator resolves channel pairs against a mock transport. Writes on
// the returned channels go through the transport's WriteBytes, so
// Responder-equipped peripherals answer them.
type Negotiator struct {
	// Transport is the mock transport the channels write to.
	Transport *Transport

	// Fail maps device IDs to errors returned instead of channels.
	Fail map[string]error

	// Delay is an optional artificial negotiation latency.
	Delay time.Duration
}

var _ transport.Negotiator = (*Negotiator)(nil)

// NewNegotiator creates a negotiator bound to the given mock transport.
func NewNegotiator(t *Transport) *Negotiator {
	return &Negotiator{Transport: t, Fail: make(map[string]error)}
}

// Negotiate returns a fresh channel pair for the device.
func (n *Negotiator) Negotiate(ctx context.Context, deviceID string) (*transport.Channels, error) {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := n.Fail[deviceID]; err != nil {
		return nil, err
	}
	tp := n.Transport
	return &transport.Channels{
		WriteUUID:  uuid.New(),
		NotifyUUID: uuid.New(),
		Write: func(chunk []byte) error {
			return tp.WriteBytes(deviceID, chunk)
		},
	}, nil
}
