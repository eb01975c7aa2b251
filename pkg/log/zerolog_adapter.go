package log

import "github.com/rs/zerolog"

// ZerologAdapter writes protocol events to a zerolog.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter writing to the given logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event at Debug level, or Error level for error events.
func (a *ZerologAdapter) Log(event Event) {
	var ev *zerolog.Event
	if event.Error != nil {
		ev = a.logger.Error()
	} else {
		ev = a.logger.Debug()
	}

	ev = ev.
		Str("layer", event.Layer.String()).
		Str("category", event.Category.String())

	if event.DeviceID != "" {
		ev = ev.Str("device_id", event.DeviceID)
	}

	switch {
	case event.Frame != nil:
		ev = ev.
			Str("direction", event.Direction.String()).
			Int("frame_size", event.Frame.Size)
	case event.StateChange != nil:
		ev = ev.
			Str("from", event.StateChange.From).
			Str("to", event.StateChange.To)
	case event.Command != nil:
		ev = ev.
			Uint8("opcode", event.Command.Opcode).
			Bool("heartbeat", event.Command.Heartbeat)
		if event.Command.Status != "" {
			ev = ev.Str("status", event.Command.Status)
		}
	case event.Radio != nil:
		ev = ev.Str("radio_state", event.Radio.State)
	case event.Error != nil:
		ev = ev.Str("error", event.Error.Message)
	}

	ev.Msg("blelink event")
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
