package bookings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking(id, slot string, status Status) *Booking {
	return &Booking{ID: id, DoctorID: "d1", Date: "2025-03-03", Time: slot, Status: status}
}

func TestInMemoryStoreRejectsSecondActiveBooking(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleBooking("b1", "09:30", StatusPending)))
	err := store.Create(ctx, sampleBooking("b2", "09:30", StatusConfirmed))
	assert.ErrorIs(t, err, ErrSlotConflict)

	require.NoError(t, store.Create(ctx, sampleBooking("b3", "10:00", StatusConfirmed)))
}

func TestInMemoryStoreReleasesSlotOnCancel(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	b := sampleBooking("b1", "09:30", StatusConfirmed)
	require.NoError(t, store.Create(ctx, b))

	b.Status = StatusCancelled
	require.NoError(t, store.Update(ctx, b, StatusConfirmed))

	require.NoError(t, store.Create(ctx, sampleBooking("b2", "09:30", StatusPending)))

	list, err := store.ListForDoctorDate(ctx, "d1", "2025-03-03")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusCancelled, list[0].Status)
}

func TestInMemoryStoreUpdateChecksExpectedStatus(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	b := sampleBooking("b1", "09:30", StatusPending)
	require.NoError(t, store.Create(ctx, b))

	b.Status = StatusPaid
	assert.ErrorIs(t, store.Update(ctx, b, StatusConfirmed), ErrConcurrentUpdate)
	assert.ErrorIs(t, store.Update(ctx, sampleBooking("missing", "09:00", StatusPaid), StatusPending), ErrNotFound)
	require.NoError(t, store.Update(ctx, b, StatusPending))

	got, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
}

func TestInMemoryStoreConcurrentCreateHasOneWinner(t *testing.T) {
	store := NewInMemoryStore()
	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Create(context.Background(), sampleBooking(string(rune('a'+i)), "11:00", StatusPending))
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrSlotConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 19, conflicts)
}

func TestListFilter(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	for _, b := range []*Booking{
		{ID: "1", DoctorID: "d1", Date: "2025-03-01", Time: "09:00", Status: StatusPaid},
		{ID: "2", DoctorID: "d1", Date: "2025-03-02", Time: "09:00", Status: StatusCancelled},
		{ID: "3", DoctorID: "d2", Date: "2025-03-03", Time: "09:00", Status: StatusPaid},
	} {
		require.NoError(t, store.Create(ctx, b))
	}

	got, err := store.List(ctx, ListFilter{From: "2025-03-02", To: "2025-03-03"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.List(ctx, ListFilter{Status: StatusPaid, DoctorID: "d1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got, err = store.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
