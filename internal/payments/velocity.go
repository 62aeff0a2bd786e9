package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// VelocityChecker throttles repeated online checkouts by the same patient.
type VelocityChecker struct {
	redis  redis.Cmdable
	logger *logging.Logger
	config VelocityConfig
	now    func() time.Time
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	// Max checkout attempts per patient per window
	MaxCheckoutsPerPatient int
	CheckoutWindow         time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxCheckoutsPerPatient: 5,
		CheckoutWindow:         time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

func NewVelocityChecker(redisClient redis.Cmdable, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if redisClient == nil {
		panic("payments: velocity checker requires redis")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if config.MaxCheckoutsPerPatient <= 0 || config.CheckoutWindow <= 0 {
		config = DefaultVelocityConfig()
	}
	return &VelocityChecker{redis: redisClient, logger: logger, config: config, now: time.Now}
}

// CheckCheckout counts one attempt for patient and reports whether it is
// within the limit. Redis failures fail open.
func (v *VelocityChecker) CheckCheckout(ctx context.Context, patient string) (*VelocityResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_checkout")
	defer span.End()

	if patient == "" {
		return &VelocityResult{Allowed: true}, nil
	}

	key := checkoutKey(patient)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.CheckoutWindow)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err)
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxCheckoutsPerPatient,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxCheckoutsPerPatient,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d checkout attempts in %s", v.config.MaxCheckoutsPerPatient, v.config.CheckoutWindow)
		v.logger.Warn("checkout velocity exceeded", "count", count, "max", v.config.MaxCheckoutsPerPatient)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// AllowCheckout adapts CheckCheckout to the bookings service.
func (v *VelocityChecker) AllowCheckout(ctx context.Context, patient string) (bool, error) {
	res, err := v.CheckCheckout(ctx, patient)
	if err != nil {
		return true, err
	}
	return res.Allowed, nil
}

// ResetCheckout clears the counter for a patient (admin use).
func (v *VelocityChecker) ResetCheckout(ctx context.Context, patient string) error {
	return v.redis.Del(ctx, checkoutKey(patient)).Err()
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	// Expiry is set only on the first increment so the window is fixed.
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), v.now().Add(ttl), nil
}

func checkoutKey(patient string) string {
	return "velocity:checkout:" + patient
}
