package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/audit"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("clinic.internal.bookings")

// AvailabilityChecker re-validates a slot right before it is reserved.
type AvailabilityChecker interface {
	IsBookable(ctx context.Context, doctorID, date, slot string) (bool, error)
}

// FeeLookup prices a consultation.
type FeeLookup interface {
	ConsultationFee(ctx context.Context, doctorID string) (int64, error)
}

// CouponLedger prices and redeems coupons.
type CouponLedger interface {
	Discount(ctx context.Context, code string, amount int64, date string) (int64, error)
	Redeem(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// PaymentGateway creates orders and refunds at the payment provider.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req payments.OrderRequest) (*payments.Order, error)
	Refund(ctx context.Context, req payments.RefundRequest) (*payments.Refund, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
}

// SlotNotifier is told when a booking takes or frees a slot.
type SlotNotifier interface {
	NotifySlotsChanged(ctx context.Context, doctorID, date, reason string)
}

// CheckoutVelocity caps how often one patient may start an online checkout.
type CheckoutVelocity interface {
	AllowCheckout(ctx context.Context, patient string) (bool, error)
}

// Checkout is returned once a slot is reserved. When OrderID is set the
// client opens the payment widget with it.
type Checkout struct {
	Booking  *Booking `json:"booking"`
	OrderID  string   `json:"orderId,omitempty"`
	KeyID    string   `json:"keyId,omitempty"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
}

// Service reserves slots and drives the booking lifecycle.
type Service struct {
	store        Store
	availability AvailabilityChecker
	fees         FeeLookup
	coupons      CouponLedger
	gateway      PaymentGateway
	velocity     CheckoutVelocity
	locker       SlotLocker
	publisher    events.Publisher
	notifier     SlotNotifier
	audit        audit.Recorder
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
	currency     string
	now          func() time.Time
}

type ServiceOption func(*Service)

func WithCoupons(c CouponLedger) ServiceOption {
	return func(s *Service) { s.coupons = c }
}

// WithGateway enables online payment. Without a gateway online bookings are
// confirmed straight away and paid at the clinic.
func WithGateway(g PaymentGateway) ServiceOption {
	return func(s *Service) { s.gateway = g }
}

func WithVelocity(v CheckoutVelocity) ServiceOption {
	return func(s *Service) { s.velocity = v }
}

func WithLocker(l SlotLocker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithNotifier(n SlotNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

func WithAudit(rec audit.Recorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithCurrency(currency string) ServiceOption {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, avail AvailabilityChecker, fees FeeLookup, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("bookings: store cannot be nil")
	}
	if avail == nil {
		panic("bookings: availability checker cannot be nil")
	}
	if fees == nil {
		panic("bookings: fee lookup cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:        store,
		availability: avail,
		fees:         fees,
		locker:       NewLocalLocker(),
		publisher:    events.NopPublisher{},
		audit:        audit.NopRecorder{},
		logger:       logger,
		currency:     "INR",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves a slot for a patient and, when payment is due, opens a
// gateway order for it.
func (s *Service) Book(ctx context.Context, req CreateRequest) (*Checkout, error) {
	return s.create(ctx, req, SourceOnline)
}

// CreateOffline records a walk-in or phone booking made by staff. It is
// confirmed immediately and paid at the clinic.
func (s *Service) CreateOffline(ctx context.Context, req CreateRequest) (*Booking, error) {
	checkout, err := s.create(ctx, req, SourceOffline)
	if err != nil {
		return nil, err
	}
	return checkout.Booking, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest, source Source) (*Checkout, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.book")
	defer span.End()

	if err := req.normalize(); err != nil {
		s.metrics.ObserveAttempt(string(source), "invalid")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.time", req.Time),
		attribute.String("clinic.source", string(source)),
	)

	if source == SourceOnline && s.velocity != nil {
		ok, err := s.velocity.AllowCheckout(ctx, patientKey(req.Patient))
		if err != nil {
			s.logger.Warn("checkout velocity check failed", "error", err)
		} else if !ok {
			s.metrics.ObserveAttempt(string(source), "throttled")
			return nil, ErrTooManyAttempts
		}
	}

	fee, err := s.fees.ConsultationFee(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, availability.ErrDoctorNotFound) {
			s.metrics.ObserveAttempt(string(source), "unavailable")
			return nil, fmt.Errorf("%w: unknown doctor", ErrSlotUnavailable)
		}
		s.fail(span, source, err)
		return nil, fmt.Errorf("bookings: consultation fee: %w", err)
	}

	var discount int64
	if req.CouponCode != "" {
		if s.coupons == nil {
			return nil, fmt.Errorf("%w: coupons are not enabled", ErrCouponRejected)
		}
		discount, err = s.coupons.Discount(ctx, req.CouponCode, fee, req.Date)
		if err != nil {
			s.metrics.ObserveAttempt(string(source), "coupon_rejected")
			return nil, fmt.Errorf("%w: %w", ErrCouponRejected, err)
		}
	}

	key := SlotKey(req.DoctorID, req.Date, req.Time)
	token, err := s.locker.TryLock(ctx, key)
	if err != nil {
		s.fail(span, source, err)
		return nil, err
	}
	if token == "" {
		s.metrics.ObserveAttempt(string(source), "busy")
		return nil, ErrSlotBusy
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("slot lock release failed", "error", err, "slot_key", key)
		}
	}()

	ok, err := s.availability.IsBookable(ctx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		s.fail(span, source, err)
		return nil, err
	}
	if !ok {
		s.metrics.ObserveAttempt(string(source), "unavailable")
		return nil, ErrSlotUnavailable
	}

	now := s.now().UTC()
	total := fee - discount
	if total < 0 {
		total = 0
	}
	b := &Booking{
		ID:         uuid.NewString(),
		DoctorID:   req.DoctorID,
		Date:       req.Date,
		Time:       req.Time,
		Status:     StatusPending,
		Source:     source,
		Patient:    req.Patient,
		Notes:      req.Notes,
		Amount:     fee,
		Discount:   discount,
		Total:      total,
		Currency:   s.currency,
		CouponCode: req.CouponCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	needsPayment := source == SourceOnline && total > 0 && s.gateway != nil
	if !needsPayment {
		b.Status = StatusConfirmed
	}

	if err := s.store.Create(ctx, b); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveAttempt(string(source), "conflict")
			return nil, err
		}
		s.fail(span, source, err)
		return nil, fmt.Errorf("bookings: create: %w", err)
	}

	if b.CouponCode != "" {
		if err := s.coupons.Redeem(ctx, b.CouponCode); err != nil {
			s.abandon(ctx, b, false)
			s.metrics.ObserveAttempt(string(source), "coupon_rejected")
			return nil, fmt.Errorf("%w: %w", ErrCouponRejected, err)
		}
	}

	checkout := &Checkout{Booking: b, Amount: b.Total, Currency: b.Currency}
	if needsPayment {
		order, err := s.gateway.CreateOrder(ctx, payments.OrderRequest{
			Amount:   b.Total,
			Currency: b.Currency,
			Receipt:  b.ID,
			Notes: map[string]string{
				"booking_id": b.ID,
				"doctor_id":  b.DoctorID,
				"slot":       b.Date + " " + b.Time,
			},
		})
		if err != nil {
			s.abandon(ctx, b, true)
			s.fail(span, source, err)
			return nil, fmt.Errorf("bookings: create payment order: %w", err)
		}
		b.Payment.OrderID = order.ID
		b.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, b, StatusPending); err != nil {
			s.fail(span, source, err)
			return nil, fmt.Errorf("bookings: attach order: %w", err)
		}
		checkout.OrderID = order.ID
		checkout.KeyID = s.gateway.KeyID()
	}

	s.publish(ctx, events.BookingCreatedV1{
		BookingID:    b.ID,
		DoctorID:     b.DoctorID,
		Date:         b.Date,
		Time:         b.Time,
		Status:       string(b.Status),
		Source:       string(b.Source),
		PatientName:  b.Patient.Name,
		PatientEmail: b.Patient.Email,
		PatientPhone: b.Patient.Phone,
		Total:        b.Total,
		Currency:     b.Currency,
		CreatedAt:    b.CreatedAt,
	}, b.ID)
	s.notifySlots(ctx, b, "booked")
	s.metrics.ObserveAttempt(string(source), "created")
	span.SetAttributes(attribute.String("clinic.booking_id", b.ID))
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"doctor_id", b.DoctorID,
		"date", b.Date,
		"time", b.Time,
		"status", b.Status,
		"source", b.Source,
	)
	return checkout, nil
}

// abandon fails a booking whose follow-up steps broke so its slot frees up.
func (s *Service) abandon(ctx context.Context, b *Booking, releaseCoupon bool) {
	ctx = context.WithoutCancel(ctx)
	from := b.Status
	b.Status = StatusFailed
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b, from); err != nil {
		s.logger.Error("failed to release abandoned booking", "error", err, "booking_id", b.ID)
		return
	}
	if releaseCoupon && b.CouponCode != "" {
		s.releaseCoupon(ctx, b)
	}
	s.metrics.ObserveTransition(string(from), string(StatusFailed))
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	return s.store.List(ctx, filter)
}

// BookedSlots feeds the slot resolver.
func (s *Service) BookedSlots(ctx context.Context, doctorID, date string) ([]availability.BookedSlot, error) {
	return NewSlotSource(s.store).BookedSlots(ctx, doctorID, date)
}

// Transition moves a booking along the lifecycle.
func (s *Service) Transition(ctx context.Context, id string, to Status, reason string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.transition")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id), attribute.String("clinic.to", string(to)))

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := checkTransition(from, to); err != nil {
		return nil, err
	}
	b.Status = to
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b, from); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.afterTransition(ctx, b, from, reason)
	return b, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	return s.Transition(ctx, id, StatusCancelled, "cancelled by patient")
}

func (s *Service) Complete(ctx context.Context, id string) (*Booking, error) {
	return s.Transition(ctx, id, StatusCompleted, "consultation completed")
}

// MarkPaid records a captured payment. Repeating it with the same payment is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id, orderID, paymentID string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Payment.OrderID != "" && orderID != "" && b.Payment.OrderID != orderID {
		return nil, ErrPaymentMismatch
	}
	if b.Status == StatusPaid || b.Status == StatusCompleted {
		if b.Payment.PaymentID == "" || paymentID == "" || b.Payment.PaymentID == paymentID {
			return b, nil
		}
		return nil, ErrPaymentMismatch
	}
	from := b.Status
	if err := checkTransition(from, StatusPaid); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	b.Status = StatusPaid
	if b.Payment.OrderID == "" {
		b.Payment.OrderID = orderID
	}
	b.Payment.PaymentID = paymentID
	b.Payment.PaidAt = &now
	b.UpdatedAt = now
	if err := s.store.Update(ctx, b, from); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, b, from, "payment captured")
	return b, nil
}

// VerifyPayment checks the checkout callback signature before marking the booking paid.
func (s *Service) VerifyPayment(ctx context.Context, id, orderID, paymentID, signature string) (*Booking, error) {
	if s.gateway == nil || !s.gateway.VerifyCheckoutSignature(orderID, paymentID, signature) {
		return nil, ErrPaymentMismatch
	}
	return s.MarkPaid(ctx, id, orderID, paymentID)
}

// MarkFailed fails a pending booking. Failures reported after the booking
// moved on are ignored.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		s.logger.Info("ignoring payment failure", "booking_id", id, "status", b.Status, "reason", reason)
		return b, nil
	}
	return s.Transition(ctx, id, StatusFailed, reason)
}

// Refund returns money for a paid booking. A zero amount refunds the
// remainder. Refunding a paid booking also cancels it.
func (s *Service) Refund(ctx context.Context, id string, amount int64, reason string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.refund")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id))

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil || b.Payment.PaymentID == "" {
		return nil, ErrNotRefundable
	}
	switch b.Status {
	case StatusPaid, StatusCancelled, StatusCompleted:
	default:
		return nil, ErrNotRefundable
	}
	remaining := b.Total - b.Payment.RefundedAmount
	if remaining <= 0 {
		return nil, ErrNotRefundable
	}
	if amount <= 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, fmt.Errorf("%w: refund exceeds remaining %d", ErrInvalid, remaining)
	}

	refund, err := s.gateway.Refund(ctx, payments.RefundRequest{
		PaymentID: b.Payment.PaymentID,
		Amount:    amount,
		Receipt:   "refund-" + b.ID,
		Notes:     map[string]string{"booking_id": b.ID, "reason": reason},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway refund failed")
		return nil, fmt.Errorf("bookings: refund: %w", err)
	}

	from := b.Status
	b.Payment.addRefund(refund.ID, amount)
	b.Payment.RefundReason = reason
	if from == StatusPaid {
		b.Status = StatusCancelled
	}
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b, from); err != nil {
		s.logger.Error("refund issued but booking update failed", "error", err, "booking_id", b.ID, "refund_id", refund.ID)
		return nil, err
	}
	if b.Status != from {
		s.afterTransition(ctx, b, from, "refunded")
	}
	s.refunded(ctx, b, amount)
	return b, nil
}

// RecordRefund stores a refund reported by the gateway. Refunds already
// counted, including ones issued through Refund, are ignored.
func (s *Service) RecordRefund(ctx context.Context, id, paymentID, refundID string, amount int64) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Payment.HasRefund(refundID) {
		return b, nil
	}
	if paymentID != "" && b.Payment.PaymentID != "" && b.Payment.PaymentID != paymentID {
		return nil, ErrPaymentMismatch
	}
	b.Payment.addRefund(refundID, amount)
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b, b.Status); err != nil {
		return nil, err
	}
	s.refunded(ctx, b, amount)
	return b, nil
}

func (s *Service) afterTransition(ctx context.Context, b *Booking, from Status, reason string) {
	s.metrics.ObserveTransition(string(from), string(b.Status))
	released := availability.IsOccupying(from) && !b.Occupying()
	if released && b.CouponCode != "" {
		s.releaseCoupon(ctx, b)
	}
	audit.Safe(ctx, s.audit, s.logger, audit.Event{
		Action:     audit.ActionBookingStatusChanged,
		EntityType: "booking",
		EntityID:   b.ID,
		Actor:      audit.ActorFromContext(ctx),
		Details:    audit.Details(map[string]string{"from": string(from), "to": string(b.Status), "reason": reason}),
	})
	s.publish(ctx, events.BookingStatusChangedV1{
		BookingID:    b.ID,
		DoctorID:     b.DoctorID,
		Date:         b.Date,
		Time:         b.Time,
		From:         string(from),
		To:           string(b.Status),
		PatientName:  b.Patient.Name,
		PatientEmail: b.Patient.Email,
		ChangedAt:    b.UpdatedAt,
	}, b.ID)
	if released {
		s.notifySlots(ctx, b, "released")
	}
	s.logger.Info("booking status changed", "booking_id", b.ID, "from", from, "to", b.Status, "reason", reason)
}

func (s *Service) refunded(ctx context.Context, b *Booking, amount int64) {
	audit.Safe(ctx, s.audit, s.logger, audit.Event{
		Action:     audit.ActionBookingRefunded,
		EntityType: "booking",
		EntityID:   b.ID,
		Actor:      audit.ActorFromContext(ctx),
		Details:    audit.Details(map[string]any{"refundId": b.Payment.RefundID, "amount": amount}),
	})
	s.publish(ctx, events.BookingRefundedV1{
		BookingID:    b.ID,
		PaymentID:    b.Payment.PaymentID,
		RefundID:     b.Payment.RefundID,
		Amount:       amount,
		Currency:     b.Currency,
		Reason:       b.Payment.RefundReason,
		PatientEmail: b.Patient.Email,
		RefundedAt:   b.UpdatedAt,
	}, b.ID)
}

func (s *Service) releaseCoupon(ctx context.Context, b *Booking) {
	if s.coupons == nil {
		return
	}
	if err := s.coupons.Release(ctx, b.CouponCode); err != nil {
		s.logger.Warn("coupon release failed", "error", err, "coupon", b.CouponCode, "booking_id", b.ID)
	}
}

// publish is best effort; the booking is already stored.
func (s *Service) publish(ctx context.Context, evt events.CanonicalEvent, bookingID string) {
	if err := s.publisher.Publish(ctx, events.BookingAggregate(bookingID), evt); err != nil {
		s.logger.Error("failed to publish booking event", "error", err, "type", evt.EventType(), "booking_id", bookingID)
	}
}

func (s *Service) notifySlots(ctx context.Context, b *Booking, reason string) {
	if s.notifier != nil {
		s.notifier.NotifySlotsChanged(ctx, b.DoctorID, b.Date, reason)
	}
}

func (s *Service) fail(span trace.Span, source Source, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.ObserveAttempt(string(source), "error")
}

// patientKey identifies a patient for throttling: phone when given, else email.
func patientKey(p Patient) string {
	if p.Phone != "" {
		return p.Phone
	}
	return p.Email
}
