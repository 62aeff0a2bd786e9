package events

import "time"

// Event types published by the booking backend.
const (
	TypeBookingCreated       = "booking.created.v1"
	TypeBookingStatusChanged = "booking.status_changed.v1"
	TypeBookingRefunded      = "booking.refunded.v1"
	TypeSlotsChanged         = "slots.changed.v1"
)

type BookingCreatedV1 struct {
	BookingID    string    `json:"booking_id"`
	DoctorID     string    `json:"doctor_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email,omitempty"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	Total        int64     `json:"total"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

func (BookingCreatedV1) EventType() string { return TypeBookingCreated }

type BookingStatusChangedV1 struct {
	BookingID    string    `json:"booking_id"`
	DoctorID     string    `json:"doctor_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email,omitempty"`
	ChangedAt    time.Time `json:"changed_at"`
}

func (BookingStatusChangedV1) EventType() string { return TypeBookingStatusChanged }

type BookingRefundedV1 struct {
	BookingID    string    `json:"booking_id"`
	PaymentID    string    `json:"payment_id"`
	RefundID     string    `json:"refund_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Reason       string    `json:"reason,omitempty"`
	PatientEmail string    `json:"patient_email,omitempty"`
	RefundedAt   time.Time `json:"refunded_at"`
}

func (BookingRefundedV1) EventType() string { return TypeBookingRefunded }

// SlotsChangedV1 is emitted when a doctor's bookable slots may differ. An
// empty DoctorID means every doctor; an empty Date means every date.
type SlotsChangedV1 struct {
	DoctorID  string    `json:"doctor_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

func (SlotsChangedV1) EventType() string { return TypeSlotsChanged }
