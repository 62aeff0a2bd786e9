package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking/internal/audit"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Service prices, redeems and manages coupons.
type Service struct {
	repo   Repository
	audit  audit.Recorder
	logger *logging.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

func WithAudit(rec audit.Recorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("coupons: repository cannot be nil")
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

// Quote prices amount with the coupon for a consultation on date. An empty
// date means today.
func (s *Service) Quote(ctx context.Context, code string, amount int64, date string) (Quote, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Quote{}, reject("no coupon provided")
	}
	if amount < 0 {
		return Quote{}, fmt.Errorf("%w: amount cannot be negative", ErrInvalid)
	}
	if date == "" {
		date = availability.FormatDate(s.now())
	}
	c, err := s.repo.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Quote{}, reject("coupon not found")
	}
	if err != nil {
		return Quote{}, err
	}
	return c.Apply(amount, date)
}

// Discount returns only the discount of a Quote.
func (s *Service) Discount(ctx context.Context, code string, amount int64, date string) (int64, error) {
	q, err := s.Quote(ctx, code, amount, date)
	if err != nil {
		return 0, err
	}
	return q.Discount, nil
}

// Redeem counts one use of the coupon.
func (s *Service) Redeem(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if err := s.repo.IncrementUsage(ctx, code); err != nil {
		if errors.Is(err, ErrExhausted) {
			return reject("coupon usage limit reached")
		}
		return err
	}
	s.logger.Info("coupon redeemed", "coupon", code)
	return nil
}

// Release gives back a use when the booking that redeemed it is cancelled or fails.
func (s *Service) Release(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if err := s.repo.DecrementUsage(ctx, code); err != nil {
		return err
	}
	s.logger.Info("coupon released", "coupon", code)
	return nil
}

func (s *Service) Get(ctx context.Context, code string) (*Coupon, error) {
	return s.repo.Get(ctx, NormalizeCode(code))
}

func (s *Service) List(ctx context.Context) ([]*Coupon, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, req Request) (*Coupon, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := req.apply(&Coupon{CreatedAt: now})
	c.UpdatedAt = now
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionCouponSaved, c)
	return c, nil
}

// Update replaces the terms of a coupon. The usage count is kept.
func (s *Service) Update(ctx context.Context, code string, req Request) (*Coupon, error) {
	req.Code = code
	if err := req.validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	c := req.apply(existing)
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, c); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionCouponSaved, c)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	existing, err := s.repo.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCouponDeleted, existing)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, c *Coupon) {
	audit.Safe(ctx, s.audit, s.logger, audit.Event{
		Action:     action,
		EntityType: "coupon",
		EntityID:   c.Code,
		Actor:      audit.ActorFromContext(ctx),
		Details: audit.Details(map[string]any{
			"discountType": c.DiscountType,
			"value":        c.Value,
			"usageLimit":   c.UsageLimit,
			"active":       c.Active,
		}),
	})
}
