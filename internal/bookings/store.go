package bookings

import (
	"context"
	"sort"
	"sync"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

// Store persists bookings. Create is a conditional write on the slot key:
// it fails with ErrSlotConflict while another occupying booking holds it.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	ListForDoctorDate(ctx context.Context, doctorID, date string) ([]*Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*Booking, error)
	// Update writes b only if the stored status still equals expected.
	// Moving to a non-occupying status releases the slot.
	Update(ctx context.Context, b *Booking, expected Status) error
}

// InMemoryStore keeps bookings in process memory.
type InMemoryStore struct {
	mu       sync.Mutex
	bookings map[string]*Booking
	// active maps slot keys to the occupying booking ID.
	active map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bookings: make(map[string]*Booking),
		active:   make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.SlotKey()
	if b.Occupying() {
		if _, taken := s.active[key]; taken {
			return ErrSlotConflict
		}
		s.active[key] = b.ID
	}
	s.bookings[b.ID] = b.clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (s *InMemoryStore) ListForDoctorDate(ctx context.Context, doctorID, date string) ([]*Booking, error) {
	return s.List(ctx, ListFilter{DoctorID: doctorID, Date: date, Limit: 500})
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Booking
	for _, b := range s.bookings {
		if filter.matches(b) {
			out = append(out, b.clone())
		}
	}
	sortBookings(out)
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, b *Booking, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected {
		return ErrConcurrentUpdate
	}
	if current.Occupying() && !b.Occupying() && s.active[current.SlotKey()] == b.ID {
		delete(s.active, current.SlotKey())
	}
	s.bookings[b.ID] = b.clone()
	return nil
}

func sortBookings(list []*Booking) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

// SlotSource exposes a Store to the slot resolver.
type SlotSource struct {
	store Store
}

func NewSlotSource(store Store) *SlotSource {
	if store == nil {
		panic("bookings: store cannot be nil")
	}
	return &SlotSource{store: store}
}

func (s *SlotSource) BookedSlots(ctx context.Context, doctorID, date string) ([]availability.BookedSlot, error) {
	list, err := s.store.ListForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	out := make([]availability.BookedSlot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Slot())
	}
	return out, nil
}
