package availability

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusPaid      BookingStatus = "paid"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusFailed    BookingStatus = "failed"
)

// IsOccupying reports whether a booking in this status holds its slot.
// Every status except cancelled and failed occupies, unknown ones included,
// so a new status can never silently free a slot.
func IsOccupying(status BookingStatus) bool {
	switch status {
	case StatusCancelled, StatusFailed:
		return false
	default:
		return true
	}
}

// Valid reports whether status is one of the known lifecycle states.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
