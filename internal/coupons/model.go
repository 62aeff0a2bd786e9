package coupons

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

var (
	ErrNotFound  = errors.New("coupons: not found")
	ErrExists    = errors.New("coupons: code already exists")
	ErrInvalid   = errors.New("coupons: invalid coupon")
	ErrExhausted = errors.New("coupons: usage limit reached")

	// ErrRejected matches every RejectedError.
	ErrRejected = errors.New("coupons: rejected")
)

// RejectedError says why a coupon cannot be applied to an amount.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "coupon rejected: " + e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func reject(reason string) error { return &RejectedError{Reason: reason} }

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFlat    DiscountType = "flat"
)

// Coupon is keyed by its upper-case code. Amounts are in minor units; a
// percent coupon's Value is whole percent.
type Coupon struct {
	Code         string       `json:"code" bson:"_id"`
	Description  string       `json:"description,omitempty" bson:"description,omitempty"`
	DiscountType DiscountType `json:"discountType" bson:"discountType"`
	Value        int64        `json:"value" bson:"value"`
	MaxDiscount  int64        `json:"maxDiscount,omitempty" bson:"maxDiscount,omitempty"`
	MinAmount    int64        `json:"minAmount,omitempty" bson:"minAmount,omitempty"`
	// UsageLimit of zero means unlimited.
	UsageLimit int64     `json:"usageLimit" bson:"usageLimit"`
	UsedCount  int64     `json:"usedCount" bson:"usedCount"`
	ValidFrom  string    `json:"validFrom,omitempty" bson:"validFrom,omitempty"`
	ValidUntil string    `json:"validUntil,omitempty" bson:"validUntil,omitempty"`
	Active     bool      `json:"active" bson:"active"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Quote is the priced outcome of applying a coupon.
type Quote struct {
	Code     string `json:"code"`
	Amount   int64  `json:"amount"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// Exhausted reports whether the usage limit has been hit.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit
}

// Apply prices amount on date ("YYYY-MM-DD") or explains the rejection.
func (c *Coupon) Apply(amount int64, date string) (Quote, error) {
	switch {
	case !c.Active:
		return Quote{}, reject("coupon is inactive")
	case c.ValidFrom != "" && date < c.ValidFrom:
		return Quote{}, reject("coupon is not valid yet")
	case c.ValidUntil != "" && date > c.ValidUntil:
		return Quote{}, reject("coupon has expired")
	case c.Exhausted():
		return Quote{}, reject("coupon usage limit reached")
	case amount < c.MinAmount:
		return Quote{}, reject(fmt.Sprintf("minimum amount is %d", c.MinAmount))
	}

	var discount int64
	if c.DiscountType == DiscountPercent {
		discount = amount * c.Value / 100
		if c.MaxDiscount > 0 && discount > c.MaxDiscount {
			discount = c.MaxDiscount
		}
	} else {
		discount = c.Value
	}
	if discount > amount {
		discount = amount
	}
	return Quote{Code: c.Code, Amount: amount, Discount: discount, Total: amount - discount}, nil
}

// NormalizeCode trims and upper-cases a code as typed by a patient.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Request is the admin payload for creating or replacing a coupon.
type Request struct {
	Code         string       `json:"code"`
	Description  string       `json:"description,omitempty"`
	DiscountType DiscountType `json:"discountType"`
	Value        int64        `json:"value"`
	MaxDiscount  int64        `json:"maxDiscount,omitempty"`
	MinAmount    int64        `json:"minAmount,omitempty"`
	UsageLimit   int64        `json:"usageLimit"`
	ValidFrom    string       `json:"validFrom,omitempty"`
	ValidUntil   string       `json:"validUntil,omitempty"`
	Active       *bool        `json:"active,omitempty"`
}

func (r *Request) validate() error {
	r.Code = NormalizeCode(r.Code)
	if r.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalid)
	}
	switch r.DiscountType {
	case DiscountPercent:
		if r.Value <= 0 || r.Value > 100 {
			return fmt.Errorf("%w: percent value must be between 1 and 100", ErrInvalid)
		}
	case DiscountFlat:
		if r.Value <= 0 {
			return fmt.Errorf("%w: flat value must be positive", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: discountType must be percent or flat", ErrInvalid)
	}
	if r.MaxDiscount < 0 || r.MinAmount < 0 || r.UsageLimit < 0 {
		return fmt.Errorf("%w: limits cannot be negative", ErrInvalid)
	}
	for _, d := range []string{r.ValidFrom, r.ValidUntil} {
		if d == "" {
			continue
		}
		if _, err := availability.ParseDate(d); err != nil {
			return fmt.Errorf("%w: validity dates must be YYYY-MM-DD", ErrInvalid)
		}
	}
	if r.ValidFrom != "" && r.ValidUntil != "" && r.ValidFrom > r.ValidUntil {
		return fmt.Errorf("%w: validFrom is after validUntil", ErrInvalid)
	}
	return nil
}

func (r Request) apply(c *Coupon) *Coupon {
	c.Code = r.Code
	c.Description = strings.TrimSpace(r.Description)
	c.DiscountType = r.DiscountType
	c.Value = r.Value
	c.MaxDiscount = r.MaxDiscount
	c.MinAmount = r.MinAmount
	c.UsageLimit = r.UsageLimit
	c.ValidFrom = r.ValidFrom
	c.ValidUntil = r.ValidUntil
	c.Active = r.Active == nil || *r.Active
	return c
}
