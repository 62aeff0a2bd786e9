package doctors

import (
	"context"
	"errors"
	"fmt"
	"io"
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

// PhotoStore uploads profile photos and returns their public URL.
type PhotoStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Service manages doctor records and their weekly templates.
type Service struct {
	repo     Repository
	audit    audit.Recorder
	notifier SlotNotifier
	photos   PhotoStore
	logger   *logging.Logger
	now      func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithAudit(rec audit.Recorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

func WithNotifier(n SlotNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

func WithPhotoStore(p PhotoStore) ServiceOption {
	return func(s *Service) { s.photos = p }
}

func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("doctors: repository cannot be nil")
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

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Doctor, error) {
	now := s.now().UTC()
	doctor := &Doctor{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Specialization:  strings.TrimSpace(req.Specialization),
		Qualifications:  req.Qualifications,
		Bio:             req.Bio,
		ConsultationFee: req.ConsultationFee,
		Active:          true,
		Availability:    req.Availability,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Active != nil {
		doctor.Active = *req.Active
	}
	if doctor.Availability == nil {
		doctor.Availability = availability.WeeklyTemplate{}
	}
	if err := validate(doctor); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, fmt.Errorf("doctors: create: %w", err)
	}
	s.record(ctx, audit.ActionDoctorCreated, doctor.ID, nil)
	s.logger.Info("doctor created", "doctor_id", doctor.ID, "name", doctor.Name)
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var changed []string
	if req.Name != nil {
		doctor.Name = strings.TrimSpace(*req.Name)
		changed = append(changed, "name")
	}
	if req.Specialization != nil {
		doctor.Specialization = strings.TrimSpace(*req.Specialization)
		changed = append(changed, "specialization")
	}
	if req.Qualifications != nil {
		doctor.Qualifications = *req.Qualifications
		changed = append(changed, "qualifications")
	}
	if req.Bio != nil {
		doctor.Bio = *req.Bio
		changed = append(changed, "bio")
	}
	if req.ConsultationFee != nil {
		doctor.ConsultationFee = *req.ConsultationFee
		changed = append(changed, "consultationFee")
	}
	activeChanged := req.Active != nil && *req.Active != doctor.Active
	if req.Active != nil {
		doctor.Active = *req.Active
		changed = append(changed, "active")
	}
	if err := validate(doctor); err != nil {
		return nil, err
	}
	doctor.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, doctor); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionDoctorUpdated, id, changed)
	if activeChanged {
		s.notify(ctx, id, "schedule")
	}
	return doctor, nil
}

// UpdateAvailability replaces the weekly template as a whole.
func (s *Service) UpdateAvailability(ctx context.Context, id string, template availability.WeeklyTemplate) (*Doctor, error) {
	if template == nil {
		template = availability.WeeklyTemplate{}
	}
	if err := availability.ValidateTemplate(template); err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor.Availability = template
	doctor.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, doctor); err != nil {
		return nil, err
	}

	days := make([]string, 0, len(template))
	for _, day := range availability.Weekdays {
		if _, ok := template[day]; ok {
			days = append(days, "availability."+day)
		}
	}
	s.record(ctx, audit.ActionAvailabilityUpdated, id, days)
	s.notify(ctx, id, "schedule")
	s.logger.Info("doctor availability updated", "doctor_id", id, "days", len(template))
	return doctor, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDoctorDeleted, id, nil)
	s.notify(ctx, id, "schedule")
	return nil
}

// UploadPhoto stores a profile photo and saves its URL on the doctor.
func (s *Service) UploadPhoto(ctx context.Context, id, contentType string, body io.Reader) (*Doctor, error) {
	if s.photos == nil {
		return nil, errors.New("doctors: photo storage not configured")
	}
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.photos.Upload(ctx, photoKey(id, contentType), contentType, body)
	if err != nil {
		return nil, fmt.Errorf("doctors: upload photo: %w", err)
	}
	doctor.PhotoURL = url
	doctor.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, doctor); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionDoctorUpdated, id, []string{"photoUrl"})
	return doctor, nil
}

// DoctorSchedule feeds the slot resolver. Inactive doctors have no slots.
func (s *Service) DoctorSchedule(ctx context.Context, id string) (*availability.DoctorSchedule, error) {
	doctor, err := s.active(ctx, id)
	if err != nil {
		return nil, err
	}
	return doctor.Schedule(), nil
}

// ConsultationFee returns the fee of an active doctor. Unknown and inactive
// doctors report availability.ErrDoctorNotFound, like DoctorSchedule.
func (s *Service) ConsultationFee(ctx context.Context, id string) (int64, error) {
	doctor, err := s.active(ctx, id)
	if err != nil {
		return 0, err
	}
	return doctor.ConsultationFee, nil
}

// DoctorName is used by patient emails.
func (s *Service) DoctorName(ctx context.Context, id string) (string, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doctor.Name, nil
}

func (s *Service) active(ctx context.Context, id string) (*Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, availability.ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, availability.ErrDoctorNotFound
	}
	return doctor, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, id string, changed []string) {
	audit.Safe(ctx, s.audit, s.logger, audit.Event{
		Action:        action,
		EntityType:    "doctor",
		EntityID:      id,
		Actor:         audit.ActorFromContext(ctx),
		ChangedFields: changed,
	})
}

// notify signals a template change; the date is empty because every future day may differ.
func (s *Service) notify(ctx context.Context, id, reason string) {
	if s.notifier != nil {
		s.notifier.NotifySlotsChanged(ctx, id, "", reason)
	}
}

func photoKey(id, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	return "doctors/" + id + "/photo" + ext
}
