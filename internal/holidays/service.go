package holidays

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/audit"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// SlotNotifier is told when a change may alter slots.
type SlotNotifier interface {
	NotifySlotsChanged(ctx context.Context, doctorID, date, reason string)
}

// DoctorLookup confirms a doctor exists before a doctor-scoped override is saved.
type DoctorLookup interface {
	DoctorSchedule(ctx context.Context, doctorID string) (*availability.DoctorSchedule, error)
}

// Service manages holiday and special-day overrides.
type Service struct {
	repo     Repository
	doctors  DoctorLookup
	audit    audit.Recorder
	notifier SlotNotifier
	logger   *logging.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithAudit(rec audit.Recorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

func WithNotifier(n SlotNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

func WithDoctorLookup(d DoctorLookup) ServiceOption {
	return func(s *Service) { s.doctors = d }
}

func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("holidays: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, audit: audit.NopRecorder{}, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OverridesForDate feeds the slot resolver.
func (s *Service) OverridesForDate(ctx context.Context, date string) ([]availability.HolidayOverride, error) {
	return s.repo.ListForDate(ctx, date)
}

func (s *Service) Get(ctx context.Context, id string) (*availability.HolidayOverride, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]availability.HolidayOverride, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Create(ctx context.Context, req Request) (*availability.HolidayOverride, error) {
	req = req.normalized()
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	o := apply(&availability.HolidayOverride{ID: uuid.NewString(), CreatedAt: now}, req)
	o.UpdatedAt = now
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("holidays: create: %w", err)
	}
	s.record(ctx, audit.ActionHolidayCreated, o)
	s.notify(ctx, o)
	s.logger.Info("override created", "override_id", o.ID, "date", o.Date, "type", o.Type, "applies_to", o.AppliesTo)
	return o, nil
}

func (s *Service) Update(ctx context.Context, id string, req Request) (*availability.HolidayOverride, error) {
	req = req.normalized()
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := *existing
	o := apply(existing, req)
	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, o); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionHolidayUpdated, o)
	s.notify(ctx, &previous)
	if previous.Date != o.Date || previous.DoctorID != o.DoctorID {
		s.notify(ctx, o)
	}
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionHolidayDeleted, existing)
	s.notify(ctx, existing)
	return nil
}

func (s *Service) check(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	if req.AppliesTo == availability.ScopeDoctor && s.doctors != nil {
		_, err := s.doctors.DoctorSchedule(ctx, req.DoctorID)
		if errors.Is(err, availability.ErrDoctorNotFound) {
			return fmt.Errorf("%w: unknown doctor %s", ErrInvalid, req.DoctorID)
		}
		if err != nil {
			return fmt.Errorf("holidays: look up doctor: %w", err)
		}
	}
	return nil
}

func apply(o *availability.HolidayOverride, req Request) *availability.HolidayOverride {
	o.Date = req.Date
	o.Name = strings.TrimSpace(req.Name)
	o.Type = req.Type
	o.AppliesTo = req.AppliesTo
	o.DoctorID = req.DoctorID
	o.IsFullDay = req.IsFullDay
	o.CustomSessions = req.CustomSessions
	o.CustomBreaks = req.CustomBreaks
	return o
}

func (s *Service) record(ctx context.Context, action audit.Action, o *availability.HolidayOverride) {
	audit.Safe(ctx, s.audit, s.logger, audit.Event{
		Action:     action,
		EntityType: "holiday",
		EntityID:   o.ID,
		Actor:      audit.ActorFromContext(ctx),
		Details: audit.Details(map[string]any{
			"date":      o.Date,
			"type":      o.Type,
			"appliesTo": o.AppliesTo,
			"doctorId":  o.DoctorID,
		}),
	})
}

func (s *Service) notify(ctx context.Context, o *availability.HolidayOverride) {
	if s.notifier == nil {
		return
	}
	doctorID := ""
	if o.AppliesTo == availability.ScopeDoctor {
		doctorID = o.DoctorID
	}
	s.notifier.NotifySlotsChanged(ctx, doctorID, o.Date, "holiday")
}
