package enums

import "fmt"

// ProgrammedPrizeStatus tracks the lifecycle of an administrator override.
type ProgrammedPrizeStatus string

const (
	ProgrammedPrizePending  ProgrammedPrizeStatus = "pending"
	ProgrammedPrizeConsumed ProgrammedPrizeStatus = "consumed"
	ProgrammedPrizeExpired  ProgrammedPrizeStatus = "expired"
	ProgrammedPrizeRevoked  ProgrammedPrizeStatus = "revoked"
)

var validProgrammedPrizeStatuses = []ProgrammedPrizeStatus{
	ProgrammedPrizePending,
	ProgrammedPrizeConsumed,
	ProgrammedPrizeExpired,
	ProgrammedPrizeRevoked,
}

// String implements fmt.Stringer.
func (s ProgrammedPrizeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ProgrammedPrizeStatus) IsValid() bool {
	for _, candidate := range validProgrammedPrizeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProgrammedPrizeStatus converts raw input into a ProgrammedPrizeStatus.
func ParseProgrammedPrizeStatus(value string) (ProgrammedPrizeStatus, error) {
	for _, candidate := range validProgrammedPrizeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid programmed prize status %q", value)
}
