package bookings

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

// Status is the booking lifecycle state shared with the slot resolver.
type Status = availability.BookingStatus

// Source tells how the booking was made.
type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// Patient is captured on the booking; there is no separate patient record.
type Patient struct {
	Name  string `json:"name" bson:"name" dynamodbav:"name"`
	Email string `json:"email" bson:"email" dynamodbav:"email"`
	Phone string `json:"phone" bson:"phone" dynamodbav:"phone"`
}

// Payment tracks the gateway side of a booking.
type Payment struct {
	OrderID        string     `json:"orderId,omitempty" bson:"orderId,omitempty" dynamodbav:"order_id,omitempty"`
	PaymentID      string     `json:"paymentId,omitempty" bson:"paymentId,omitempty" dynamodbav:"payment_id,omitempty"`
	RefundID       string     `json:"refundId,omitempty" bson:"refundId,omitempty" dynamodbav:"refund_id,omitempty"`
	// RefundIDs holds every refund already counted in RefundedAmount.
	RefundIDs      []string   `json:"refundIds,omitempty" bson:"refundIds,omitempty" dynamodbav:"refund_ids,omitempty"`
	RefundedAmount int64      `json:"refundedAmount,omitempty" bson:"refundedAmount,omitempty" dynamodbav:"refunded_amount,omitempty"`
	RefundReason   string     `json:"refundReason,omitempty" bson:"refundReason,omitempty" dynamodbav:"refund_reason,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty" bson:"paidAt,omitempty" dynamodbav:"paid_at,omitempty"`
}

// Booking reserves one slot of one doctor. Cancelling changes the status;
// records are never deleted.
type Booking struct {
	ID       string  `json:"id" bson:"_id" dynamodbav:"id"`
	DoctorID string  `json:"doctorId" bson:"doctorId" dynamodbav:"doctor_id"`
	Date     string  `json:"date" bson:"date" dynamodbav:"date"`
	Time     string  `json:"time" bson:"time" dynamodbav:"time"`
	Status   Status  `json:"status" bson:"status" dynamodbav:"status"`
	Source   Source  `json:"source" bson:"source" dynamodbav:"source"`
	Patient  Patient `json:"patient" bson:"patient" dynamodbav:"patient"`
	Notes    string  `json:"notes,omitempty" bson:"notes,omitempty" dynamodbav:"notes,omitempty"`

	// Amounts are in the currency's minor unit.
	Amount     int64  `json:"amount" bson:"amount" dynamodbav:"amount"`
	Discount   int64  `json:"discount" bson:"discount" dynamodbav:"discount"`
	Total      int64  `json:"total" bson:"total" dynamodbav:"total"`
	Currency   string `json:"currency" bson:"currency" dynamodbav:"currency"`
	CouponCode string `json:"couponCode,omitempty" bson:"couponCode,omitempty" dynamodbav:"coupon_code,omitempty"`

	Payment   Payment   `json:"payment" bson:"payment" dynamodbav:"payment"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" dynamodbav:"updated_at"`
}

// HasRefund reports whether refundID is already counted.
func (p Payment) HasRefund(refundID string) bool {
	if refundID == "" {
		return false
	}
	if p.RefundID == refundID {
		return true
	}
	for _, id := range p.RefundIDs {
		if id == refundID {
			return true
		}
	}
	return false
}

// addRefund counts amount under refundID and makes it the latest refund.
func (p *Payment) addRefund(refundID string, amount int64) {
	if refundID != "" {
		p.RefundIDs = append(append([]string(nil), p.RefundIDs...), refundID)
	}
	p.RefundID = refundID
	p.RefundedAmount += amount
}

func (b *Booking) clone() *Booking {
	copied := *b
	copied.Payment.RefundIDs = append([]string(nil), b.Payment.RefundIDs...)
	return &copied
}

// SlotKey identifies the reserved slot.
func (b *Booking) SlotKey() string {
	return SlotKey(b.DoctorID, b.Date, b.Time)
}

// Occupying reports whether the booking holds its slot.
func (b *Booking) Occupying() bool {
	return availability.IsOccupying(b.Status)
}

// Slot projects the booking onto what the slot resolver reads.
func (b *Booking) Slot() availability.BookedSlot {
	return availability.BookedSlot{DoctorID: b.DoctorID, Date: b.Date, Time: b.Time, Status: b.Status}
}

// SlotKey builds the uniqueness key of a slot.
func SlotKey(doctorID, date, slot string) string {
	return doctorID + "#" + date + "#" + slot
}

// CreateRequest is the patient-facing booking payload.
type CreateRequest struct {
	DoctorID   string  `json:"doctorId"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Patient    Patient `json:"patient"`
	CouponCode string  `json:"couponCode,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

func (r *CreateRequest) normalize() error {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.Patient.Name = strings.TrimSpace(r.Patient.Name)
	r.Patient.Email = strings.TrimSpace(strings.ToLower(r.Patient.Email))
	r.Patient.Phone = strings.TrimSpace(r.Patient.Phone)
	r.CouponCode = strings.ToUpper(strings.TrimSpace(r.CouponCode))
	if r.DoctorID == "" {
		return fmt.Errorf("%w: doctorId is required", ErrInvalid)
	}
	if _, err := availability.ParseDate(r.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	if _, err := availability.ParseClock(r.Time); err != nil {
		return fmt.Errorf("%w: time must be HH:MM", ErrInvalid)
	}
	r.Time = availability.NormalizeClock(r.Time)
	if r.Patient.Name == "" {
		return fmt.Errorf("%w: patient name is required", ErrInvalid)
	}
	if r.Patient.Email == "" && r.Patient.Phone == "" {
		return fmt.Errorf("%w: patient email or phone is required", ErrInvalid)
	}
	if r.Patient.Email != "" {
		if _, err := mail.ParseAddress(r.Patient.Email); err != nil {
			return fmt.Errorf("%w: invalid patient email", ErrInvalid)
		}
	}
	return nil
}

// ListFilter narrows admin listings.
type ListFilter struct {
	DoctorID string
	Date     string
	From     string
	To       string
	Status   Status
	Limit    int
}

func (f ListFilter) matches(b *Booking) bool {
	if f.DoctorID != "" && b.DoctorID != f.DoctorID {
		return false
	}
	if f.Date != "" && b.Date != f.Date {
		return false
	}
	if f.From != "" && b.Date < f.From {
		return false
	}
	if f.To != "" && b.Date > f.To {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return 100
	}
	return f.Limit
}
