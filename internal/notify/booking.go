package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// DoctorNames resolves the doctor shown in patient emails.
type DoctorNames interface {
	DoctorName(ctx context.Context, doctorID string) (string, error)
}

type ClinicInfo struct {
	Name         string
	SupportEmail string
	BaseURL      string
}

// BookingNotifier emails patients about their bookings.
type BookingNotifier struct {
	email   EmailSender
	doctors DoctorNames
	clinic  ClinicInfo
	logger  *logging.Logger
}

func NewBookingNotifier(email EmailSender, doctors DoctorNames, clinic ClinicInfo, logger *logging.Logger) *BookingNotifier {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clinic.Name == "" {
		clinic.Name = "the clinic"
	}
	return &BookingNotifier{email: email, doctors: doctors, clinic: clinic, logger: logger}
}

// HandleEnvelope dispatches a queued event. Event types without a patient
// email are acknowledged without doing anything.
func (n *BookingNotifier) HandleEnvelope(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.TypeBookingCreated:
		var evt events.BookingCreatedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return n.BookingCreated(ctx, evt)
	case events.TypeBookingStatusChanged:
		var evt events.BookingStatusChangedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return n.StatusChanged(ctx, evt)
	case events.TypeBookingRefunded:
		var evt events.BookingRefundedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return n.Refunded(ctx, evt)
	default:
		n.logger.Debug("notify: ignoring event", "type", env.EventType, "event_id", env.EventID)
		return nil
	}
}

func (n *BookingNotifier) BookingCreated(ctx context.Context, evt events.BookingCreatedV1) error {
	if evt.PatientEmail == "" {
		return nil
	}
	when := formatSlot(evt.Date, evt.Time)
	doctor := n.doctorName(ctx, evt.DoctorID)
	if evt.Status == "pending" {
		return n.send(ctx, evt.PatientEmail, evt.PatientName,
			"Complete your payment to confirm your appointment",
			[]string{
				fmt.Sprintf("We are holding %s with %s for you.", when, doctor),
				fmt.Sprintf("Amount due: %s. The slot is released if payment does not go through.", formatAmount(evt.Total, evt.Currency)),
			}, evt.BookingID)
	}
	return n.send(ctx, evt.PatientEmail, evt.PatientName,
		"Your appointment is confirmed",
		[]string{fmt.Sprintf("Your appointment with %s is confirmed for %s.", doctor, when)},
		evt.BookingID)
}

func (n *BookingNotifier) StatusChanged(ctx context.Context, evt events.BookingStatusChangedV1) error {
	if evt.PatientEmail == "" {
		return nil
	}
	when := formatSlot(evt.Date, evt.Time)
	doctor := n.doctorName(ctx, evt.DoctorID)
	var subject, line string
	switch evt.To {
	case "paid":
		subject = "Payment received, appointment confirmed"
		line = fmt.Sprintf("We received your payment. Your appointment with %s on %s is confirmed.", doctor, when)
	case "confirmed":
		subject = "Your appointment is confirmed"
		line = fmt.Sprintf("Your appointment with %s is confirmed for %s.", doctor, when)
	case "cancelled":
		subject = "Your appointment was cancelled"
		line = fmt.Sprintf("Your appointment with %s on %s has been cancelled.", doctor, when)
	case "failed":
		subject = "Payment was not completed"
		line = fmt.Sprintf("We could not confirm your payment, so %s with %s was released. You can book again at any time.", when, doctor)
	default:
		return nil
	}
	return n.send(ctx, evt.PatientEmail, evt.PatientName, subject, []string{line}, evt.BookingID)
}

func (n *BookingNotifier) Refunded(ctx context.Context, evt events.BookingRefundedV1) error {
	if evt.PatientEmail == "" {
		return nil
	}
	lines := []string{fmt.Sprintf("A refund of %s has been issued to your original payment method.", formatAmount(evt.Amount, evt.Currency))}
	if evt.Reason != "" {
		lines = append(lines, "Reason: "+evt.Reason)
	}
	lines = append(lines, "Refund reference: "+evt.RefundID)
	return n.send(ctx, evt.PatientEmail, "", "Your refund is on its way", lines, evt.BookingID)
}

func (n *BookingNotifier) send(ctx context.Context, to, name, subject string, lines []string, bookingID string) error {
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	footer := []string{"Booking reference: " + bookingID}
	if n.clinic.BaseURL != "" {
		footer = append(footer, fmt.Sprintf("Manage your booking: %s/bookings/%s", strings.TrimRight(n.clinic.BaseURL, "/"), bookingID))
	}
	if n.clinic.SupportEmail != "" {
		footer = append(footer, "Questions? Write to "+n.clinic.SupportEmail)
	}

	text := greeting + "\n\n" + strings.Join(lines, "\n") + "\n\n" + strings.Join(footer, "\n") + "\n\n" + n.clinic.Name

	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(greeting))
	for _, l := range lines {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(l))
	}
	b.WriteString(`<p style="color: #6b7280; font-size: 12px;">`)
	for i, l := range footer {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString(html.EscapeString(l))
	}
	fmt.Fprintf(&b, "</p><p>%s</p></div>", html.EscapeString(n.clinic.Name))

	msg := EmailMessage{To: to, ToName: name, Subject: subject, Body: text, HTML: b.String()}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %q: %w", subject, err)
	}
	n.logger.Info("notify: patient email sent", "booking_id", bookingID, "subject", subject)
	return nil
}

func (n *BookingNotifier) doctorName(ctx context.Context, id string) string {
	if n.doctors != nil {
		name, err := n.doctors.DoctorName(ctx, id)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			n.logger.Warn("notify: doctor lookup failed", "error", err, "doctor_id", id)
		}
	}
	return "your doctor"
}

// formatSlot renders "2030-03-04" and "09:30" as "Monday, 4 March 2030 at 09:30".
func formatSlot(date, clock string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date + " " + clock
	}
	return d.Format("Monday, 2 January 2006") + " at " + clock
}

// formatAmount renders minor units, e.g. 50000 INR as "INR 500.00".
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100)
}
