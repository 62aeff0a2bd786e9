package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var availabilityTracer = otel.Tracer("clinic.internal.availability")

// ScheduleSource loads the weekly template of a doctor. Unknown or inactive
// doctors return ErrDoctorNotFound.
type ScheduleSource interface {
	DoctorSchedule(ctx context.Context, doctorID string) (*DoctorSchedule, error)
}

// OverrideSource lists every holiday and special day on a date.
type OverrideSource interface {
	OverridesForDate(ctx context.Context, date string) ([]HolidayOverride, error)
}

// BookingSource lists the bookings of a doctor on a date, any status.
type BookingSource interface {
	BookedSlots(ctx context.Context, doctorID, date string) ([]BookedSlot, error)
}

const maxCalendarDays = 31

// Service resolves slots from live repository reads. Nothing is cached, so
// every query sees the latest holidays and bookings.
type Service struct {
	schedules ScheduleSource
	overrides OverrideSource
	bookings  BookingSource
	logger    *logging.Logger
	metrics   *metrics.AvailabilityMetrics

	attempts  int
	baseDelay time.Duration
	now       func() time.Time
	location  *time.Location
}

// Option customises a Service.
type Option func(*Service)

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.AvailabilityMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetry sets how many times a failed read is attempted and the first backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if baseDelay >= 0 {
			s.baseDelay = baseDelay
		}
	}
}

// WithClock overrides time.Now, used to hide already-passed slots today.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the clinic time zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(schedules ScheduleSource, overrides OverrideSource, bookings BookingSource, opts ...Option) *Service {
	if schedules == nil || overrides == nil || bookings == nil {
		panic("availability: sources cannot be nil")
	}
	s := &Service{
		schedules: schedules,
		overrides: overrides,
		bookings:  bookings,
		logger:    logging.Default(),
		attempts:  3,
		baseDelay: 50 * time.Millisecond,
		now:       time.Now,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slots returns every slot of the doctor on date, booked ones included.
func (s *Service) Slots(ctx context.Context, doctorID, date string) ([]SlotView, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.slots")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID), attribute.String("clinic.date", date))

	started := time.Now()
	in, err := s.load(ctx, doctorID, date)
	if err != nil {
		s.fail(span, "admin", started, err)
		return nil, err
	}
	slots := ResolveSlots(in.doctor, date, in.overrides, in.bookings)
	s.metrics.ObserveQuery("admin", "ok", len(slots), time.Since(started).Seconds())
	return slots, nil
}

// GetAvailableSlots is the patient-facing list: open "HH:MM" labels in
// ascending order. For today, labels that already passed in the clinic time
// zone are dropped.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID), attribute.String("clinic.date", date))

	started := time.Now()
	in, err := s.load(ctx, doctorID, date)
	if err != nil {
		s.fail(span, "patient", started, err)
		return nil, err
	}
	times := s.dropPast(date, AvailableTimes(ResolveSlots(in.doctor, date, in.overrides, in.bookings)))
	span.SetAttributes(attribute.Int("clinic.slots", len(times)))
	s.metrics.ObserveQuery("patient", "ok", len(times), time.Since(started).Seconds())
	return times, nil
}

// IsBookable reports whether slot is currently open for the doctor on date.
func (s *Service) IsBookable(ctx context.Context, doctorID, date, slot string) (bool, error) {
	times, err := s.GetAvailableSlots(ctx, doctorID, date)
	if err != nil {
		return false, err
	}
	want := NormalizeClock(slot)
	for _, t := range times {
		if t == want {
			return true, nil
		}
	}
	return false, nil
}

// Preview renders one date for the admin calendar.
func (s *Service) Preview(ctx context.Context, doctorID, date string) (DayPreview, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.preview")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID), attribute.String("clinic.date", date))

	started := time.Now()
	in, err := s.load(ctx, doctorID, date)
	if err != nil {
		s.fail(span, "preview", started, err)
		return DayPreview{}, err
	}
	preview := Preview(in.doctor, date, in.overrides, in.bookings)
	if in.doctor == nil {
		preview.DoctorID = doctorID
	}
	s.metrics.ObserveQuery("preview", "ok", len(preview.Slots), time.Since(started).Seconds())
	return preview, nil
}

// Calendar previews days consecutive dates starting at from.
func (s *Service) Calendar(ctx context.Context, doctorID, from string, days int) ([]DayPreview, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	if days > maxCalendarDays {
		days = maxCalendarDays
	}
	out := make([]DayPreview, 0, days)
	for i := 0; i < days; i++ {
		preview, err := s.Preview(ctx, doctorID, FormatDate(start.AddDate(0, 0, i)))
		if err != nil {
			return nil, err
		}
		out = append(out, preview)
	}
	return out, nil
}

type resolverInput struct {
	doctor    *DoctorSchedule
	overrides []HolidayOverride
	bookings  []BookedSlot
}

func (s *Service) load(ctx context.Context, doctorID, date string) (resolverInput, error) {
	var in resolverInput
	if _, err := ParseDate(date); err != nil {
		return in, err
	}

	err := s.withRetry(ctx, "schedule", func(ctx context.Context) error {
		doctor, err := s.schedules.DoctorSchedule(ctx, doctorID)
		if err != nil {
			return err
		}
		in.doctor = doctor
		return nil
	})
	if errors.Is(err, ErrDoctorNotFound) {
		return resolverInput{}, nil
	}
	if err != nil {
		return in, fmt.Errorf("%w: load doctor: %w", ErrAvailabilityUnknown, err)
	}

	if err := s.withRetry(ctx, "overrides", func(ctx context.Context) error {
		overrides, err := s.overrides.OverridesForDate(ctx, date)
		in.overrides = overrides
		return err
	}); err != nil {
		return in, fmt.Errorf("%w: load holidays: %w", ErrAvailabilityUnknown, err)
	}

	if err := s.withRetry(ctx, "bookings", func(ctx context.Context) error {
		bookings, err := s.bookings.BookedSlots(ctx, doctorID, date)
		in.bookings = bookings
		return err
	}); err != nil {
		return in, fmt.Errorf("%w: load bookings: %w", ErrAvailabilityUnknown, err)
	}
	return in, nil
}

// withRetry runs fn up to s.attempts times with exponential backoff.
// ErrDoctorNotFound is a definitive answer and is never retried.
func (s *Service) withRetry(ctx context.Context, what string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			s.metrics.ObserveRetry()
			delay := s.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(delay):
			}
		}
		err = fn(ctx)
		if err == nil || errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		s.logger.Warn("availability read failed",
			"source", what,
			"attempt", attempt+1,
			"max_attempts", s.attempts,
			"error", err,
		)
	}
	return err
}

func (s *Service) dropPast(date string, times []string) []string {
	now := s.now().In(s.location)
	if FormatDate(now) != date {
		return times
	}
	current := now.Hour()*60 + now.Minute()
	out := make([]string, 0, len(times))
	for _, t := range times {
		if m, err := ParseClock(t); err == nil && m <= current {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Service) fail(span trace.Span, view string, started time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	result := "error"
	if errors.Is(err, ErrInvalidDate) {
		result = "invalid"
	}
	s.metrics.ObserveQuery(view, result, 0, time.Since(started).Seconds())
	if result == "error" {
		s.logger.Error("availability could not be determined", "view", view, "error", err)
	}
}
