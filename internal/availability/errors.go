package availability

import "errors"

var (
	// ErrDoctorNotFound is returned by schedule sources for unknown or inactive doctors.
	ErrDoctorNotFound = errors.New("availability: doctor not found")
	// ErrAvailabilityUnknown means the inputs could not be read; callers must not treat the day as open.
	ErrAvailabilityUnknown = errors.New("availability: could not determine availability")
	ErrInvalidDate         = errors.New("availability: invalid date")
	ErrInvalidClock        = errors.New("availability: invalid time of day")
	ErrInvalidTemplate     = errors.New("availability: invalid schedule")
)
