package engine

import "errors"

var (
	// ErrValidation marks a structurally invalid scheduling request.
	ErrValidation = errors.New("invalid schedule request")
	// ErrInvalidTimeFormat is returned for malformed or out-of-range time strings.
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrNoValidSlots means the college window, breaks and durations leave nothing to schedule.
	ErrNoValidSlots = errors.New("no valid time slots generated")
	// ErrCorruptIndividual flags an optimizer candidate that references unknown inputs.
	ErrCorruptIndividual = errors.New("corrupt schedule candidate")
)

// IsValidation reports whether err should be surfaced to callers as a client error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidTimeFormat) || errors.Is(err, ErrNoValidSlots)
}
