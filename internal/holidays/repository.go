package holidays

import (
	"context"
	"sort"
	"sync"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

// Repository persists holiday and special-day overrides.
type Repository interface {
	Create(ctx context.Context, o *availability.HolidayOverride) error
	Get(ctx context.Context, id string) (*availability.HolidayOverride, error)
	Replace(ctx context.Context, o *availability.HolidayOverride) error
	Delete(ctx context.Context, id string) error
	ListForDate(ctx context.Context, date string) ([]availability.HolidayOverride, error)
	List(ctx context.Context, filter ListFilter) ([]availability.HolidayOverride, error)
}

// InMemoryRepository keeps overrides in process memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	overrides map[string]availability.HolidayOverride
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{overrides: make(map[string]availability.HolidayOverride)}
}

func (r *InMemoryRepository) Create(_ context.Context, o *availability.HolidayOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[o.ID] = *o
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*availability.HolidayOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *InMemoryRepository) Replace(_ context.Context, o *availability.HolidayOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[o.ID]; !ok {
		return ErrNotFound
	}
	r.overrides[o.ID] = *o
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[id]; !ok {
		return ErrNotFound
	}
	delete(r.overrides, id)
	return nil
}

func (r *InMemoryRepository) ListForDate(ctx context.Context, date string) ([]availability.HolidayOverride, error) {
	return r.List(ctx, ListFilter{From: date, To: date})
}

func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]availability.HolidayOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []availability.HolidayOverride
	for _, o := range r.overrides {
		if filter.matches(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
