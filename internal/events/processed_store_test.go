package events

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("razorpay", "evt").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "razorpay", "evt")
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("razorpay", "evt-miss").WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "razorpay", "evt-miss")
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("razorpay", "evt-new").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.MarkProcessed(context.Background(), "razorpay", "evt-new")
	if err != nil || !ok {
		t.Fatalf("expected mark processed success, got %v %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedisProcessedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisProcessedStore(client, 0)
	ctx := context.Background()

	seen, err := store.AlreadyProcessed(ctx, "razorpay", "evt_1")
	if err != nil || seen {
		t.Fatalf("expected unseen, got %v %v", seen, err)
	}
	first, err := store.MarkProcessed(ctx, "razorpay", "evt_1")
	if err != nil || !first {
		t.Fatalf("expected first mark to win, got %v %v", first, err)
	}
	again, err := store.MarkProcessed(ctx, "razorpay", "evt_1")
	if err != nil || again {
		t.Fatalf("expected duplicate mark to lose, got %v %v", again, err)
	}
	if ttl := mr.TTL(processedKey("razorpay", "evt_1")); ttl <= 0 {
		t.Fatalf("expected ttl on processed key, got %s", ttl)
	}
}

func TestMemoryProcessedStore(t *testing.T) {
	store := NewMemoryProcessedStore()
	ctx := context.Background()
	if ok, _ := store.MarkProcessed(ctx, "razorpay", "e"); !ok {
		t.Fatal("first mark should succeed")
	}
	if ok, _ := store.MarkProcessed(ctx, "razorpay", "e"); ok {
		t.Fatal("second mark should report duplicate")
	}
	if seen, _ := store.AlreadyProcessed(ctx, "razorpay", "e"); !seen {
		t.Fatal("expected processed")
	}
}
