package coupons

import (
	"context"
	"sort"
	"sync"
)

// Repository persists coupons. IncrementUsage must be atomic against the
// usage limit.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	Get(ctx context.Context, code string) (*Coupon, error)
	Replace(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]*Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
	DecrementUsage(ctx context.Context, code string) error
}

type InMemoryRepository struct {
	mu      sync.Mutex
	coupons map[string]Coupon
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{coupons: make(map[string]Coupon)}
}

func (r *InMemoryRepository) Create(_ context.Context, c *Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coupons[c.Code]; ok {
		return ErrExists
	}
	r.coupons[c.Code] = *c
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, code string) (*Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Replace keeps the stored usage count.
func (r *InMemoryRepository) Replace(_ context.Context, c *Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.coupons[c.Code]
	if !ok {
		return ErrNotFound
	}
	next := *c
	next.UsedCount = existing.UsedCount
	next.CreatedAt = existing.CreatedAt
	r.coupons[c.Code] = next
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coupons[code]; !ok {
		return ErrNotFound
	}
	delete(r.coupons, code)
	return nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]*Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Coupon, 0, len(r.coupons))
	for _, c := range r.coupons {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *InMemoryRepository) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return ErrNotFound
	}
	if !c.Active || c.Exhausted() {
		return ErrExhausted
	}
	c.UsedCount++
	r.coupons[code] = c
	return nil
}

func (r *InMemoryRepository) DecrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return ErrNotFound
	}
	if c.UsedCount > 0 {
		c.UsedCount--
		r.coupons[code] = c
	}
	return nil
}
