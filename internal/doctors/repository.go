package doctors

import (
	"context"
	"sort"
	"sync"
)

// Repository persists doctors.
type Repository interface {
	Create(ctx context.Context, doctor *Doctor) error
	Get(ctx context.Context, id string) (*Doctor, error)
	List(ctx context.Context, filter ListFilter) ([]*Doctor, error)
	// Replace overwrites the whole record; the last write wins.
	Replace(ctx context.Context, doctor *Doctor) error
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository keeps doctors in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{doctors: make(map[string]*Doctor)}
}

func (r *InMemoryRepository) Create(_ context.Context, doctor *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[doctor.ID] = clone(doctor)
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if filter.matches(d) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) Replace(_ context.Context, doctor *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[doctor.ID]; !ok {
		return ErrNotFound
	}
	r.doctors[doctor.ID] = clone(doctor)
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[id]; !ok {
		return ErrNotFound
	}
	delete(r.doctors, id)
	return nil
}
