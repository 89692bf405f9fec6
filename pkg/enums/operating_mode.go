package enums

import "fmt"

// OperatingMode controls how the probability controller treats a container type.
type OperatingMode string

const (
	// OperatingModeNormal applies the adaptive RTP feedback loop.
	OperatingModeNormal OperatingMode = "normal"
	// OperatingModeBlackout pins the win probability to a low fixed value.
	OperatingModeBlackout OperatingMode = "blackout"
	// OperatingModeEvent raises the win probability to a boosted fixed value.
	OperatingModeEvent OperatingMode = "event"
)

var validOperatingModes = []OperatingMode{
	OperatingModeNormal,
	OperatingModeBlackout,
	OperatingModeEvent,
}

// String implements fmt.Stringer.
func (m OperatingMode) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m OperatingMode) IsValid() bool {
	for _, candidate := range validOperatingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseOperatingMode converts raw input into an OperatingMode.
func ParseOperatingMode(value string) (OperatingMode, error) {
	for _, candidate := range validOperatingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operating mode %q", value)
}
