package bookings

import (
	"fmt"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

const (
	StatusPending   = availability.StatusPending
	StatusConfirmed = availability.StatusConfirmed
	StatusPaid      = availability.StatusPaid
	StatusCompleted = availability.StatusCompleted
	StatusCancelled = availability.StatusCancelled
	StatusFailed    = availability.StatusFailed
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusPaid, StatusCancelled, StatusFailed},
	StatusConfirmed: {StatusPaid, StatusCompleted, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
// Completed, cancelled and failed are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}
