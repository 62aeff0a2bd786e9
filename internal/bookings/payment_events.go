package bookings

import (
	"context"
	"errors"

	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// PaymentEvents applies gateway webhooks to bookings. Outcomes that can never
// apply (unknown booking, terminal status, mismatched payment) are logged and
// acknowledged so the gateway stops retrying; anything else is returned.
type PaymentEvents struct {
	service *Service
	logger  *logging.Logger
}

var _ payments.BookingPayments = (*PaymentEvents)(nil)

func NewPaymentEvents(service *Service, logger *logging.Logger) *PaymentEvents {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentEvents{service: service, logger: logger}
}

func (p *PaymentEvents) MarkPaid(ctx context.Context, bookingID, orderID, paymentID string) error {
	_, err := p.service.MarkPaid(ctx, bookingID, orderID, paymentID)
	return p.settle(err, "payment captured", bookingID, "payment_id", paymentID)
}

func (p *PaymentEvents) MarkFailed(ctx context.Context, bookingID, reason string) error {
	_, err := p.service.MarkFailed(ctx, bookingID, reason)
	return p.settle(err, "payment failed", bookingID, "reason", reason)
}

func (p *PaymentEvents) RecordRefund(ctx context.Context, bookingID, paymentID, refundID string, amount int64) error {
	_, err := p.service.RecordRefund(ctx, bookingID, paymentID, refundID, amount)
	return p.settle(err, "refund processed", bookingID, "refund_id", refundID)
}

func (p *PaymentEvents) settle(err error, what, bookingID string, kv ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPaymentMismatch):
		args := append([]any{"error", err, "booking_id", bookingID}, kv...)
		p.logger.Warn("gateway event not applicable: "+what, args...)
		return nil
	default:
		return err
	}
}
