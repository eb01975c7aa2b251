package device

import "strings"

// Type classifies a peripheral by its advertised name.
type Type uint8

const (
	// TypeUnknown is the fallback when no pattern matches.
	TypeUnknown Type = iota

	// TypeSensor covers environmental and telemetry peripherals.
	TypeSensor

	// TypeLight covers lamps and lighting controllers.
	TypeLight

	// TypeLock covers smart locks.
	TypeLock

	// TypeThermostat covers heating/cooling controllers.
	TypeThermostat

	// TypeSpeaker covers audio peripherals.
	TypeSpeaker

	// TypeHub covers bridges and multi-device hubs.
	TypeHub
)

// String returns a human-readable type name.
func (t Type) String() string {
	switch t {
	case TypeSensor:
		return "SENSOR"
	case TypeLight:
		return "LIGHT"
	case TypeLock:
		return "LOCK"
	case TypeThermostat:
		return "THERMOSTAT"
	case TypeSpeaker:
		return "SPEAKER"
	case TypeHub:
		return "HUB"
	default:
		return "UNKNOWN"
	}
}

// typePatterns maps name substrings to types, checked in order.
var typePatterns = []struct {
	substr string
	t      Type
}{
	{"sensor", TypeSensor},
	{"temp", TypeSensor},
	{"light", TypeLight},
	{"lamp", TypeLight},
	{"bulb", TypeLight},
	{"lock", TypeLock},
	{"thermo", TypeThermostat},
	{"speaker", TypeSpeaker},
	{"audio", TypeSpeaker},
	{"hub", TypeHub},
	{"bridge", TypeHub},
}

// Classify infers the peripheral type from its advertised name.
func Classify(name string) Type {
	lower := strings.ToLower(name)
	for _, p := range typePatterns {
		if strings.Contains(lower, p.substr) {
			return p.t
		}
	}
	return TypeUnknown
}
