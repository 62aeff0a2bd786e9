package bookings

import "errors"

var (
	ErrNotFound = errors.New("bookings: not found")
	ErrInvalid  = errors.New("bookings: invalid request")
	// ErrSlotConflict means an active booking already holds (doctor, date, time).
	ErrSlotConflict = errors.New("bookings: slot already booked")
	// ErrSlotUnavailable means the time is not an open slot for the doctor on that date.
	ErrSlotUnavailable   = errors.New("bookings: slot not available")
	ErrInvalidTransition = errors.New("bookings: invalid status transition")
	// ErrConcurrentUpdate means the booking changed status between read and write.
	ErrConcurrentUpdate = errors.New("bookings: booking was modified concurrently")
	ErrSlotBusy         = errors.New("bookings: slot is being booked, retry shortly")
	ErrNotRefundable    = errors.New("bookings: booking cannot be refunded")
	ErrPaymentMismatch  = errors.New("bookings: payment does not match booking")
	ErrCouponRejected   = errors.New("bookings: coupon rejected")
	// ErrTooManyAttempts means the patient started too many online checkouts recently.
	ErrTooManyAttempts = errors.New("bookings: too many booking attempts")
)
