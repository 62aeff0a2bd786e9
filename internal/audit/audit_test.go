package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func TestServiceRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db, logging.Discard())

	mock.ExpectExec("INSERT INTO admin_audit_events").
		WithArgs(sqlmock.AnyArg(), ActionAvailabilityUpdated, "doctor", "doc-1", "ops@clinic",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = service.Record(context.Background(), Event{
		Action:        ActionAvailabilityUpdated,
		EntityType:    "doctor",
		EntityID:      "doc-1",
		Actor:         "ops@clinic",
		ChangedFields: []string{"availability.monday"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO admin_audit_events").WillReturnError(errors.New("db down"))

	err = NewService(db, logging.Discard()).Record(context.Background(), Event{Action: ActionHolidayDeleted})
	assert.ErrorContains(t, err, "audit: insert event")
}

func TestServiceQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "action", "entity_type", "entity_id", "actor", "changed_fields", "details", "created_at"}).
		AddRow("evt-1", "holiday.created", "holiday", "h-1", nil, "{date,name}", []byte(`{"date":"2025-01-26"}`), created)
	mock.ExpectQuery("SELECT id, action, entity_type").
		WithArgs("holiday", ActionHolidayCreated).
		WillReturnRows(rows)

	events, err := NewService(db, logging.Discard()).Query(context.Background(), Filter{
		EntityType: "holiday",
		Action:     ActionHolidayCreated,
	})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"date", "name"}, events[0].ChangedFields)
	assert.Empty(t, events[0].Actor)
	assert.JSONEq(t, `{"date":"2025-01-26"}`, string(events[0].Details))
	require.NoError(t, mock.ExpectationsWereMet())
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, Event) error {
	f.calls++
	return errors.New("nope")
}

func TestSafeSwallowsErrors(t *testing.T) {
	rec := &failingRecorder{}
	Safe(context.Background(), rec, logging.Discard(), Event{Action: ActionCouponSaved})
	Safe(context.Background(), nil, logging.Discard(), Event{})
	assert.Equal(t, 1, rec.calls)
}

func TestActorMiddleware(t *testing.T) {
	var got string
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin-Actor", "reception")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "reception", got)
}

type stubQuerier struct{ filter Filter }

func (s *stubQuerier) Query(_ context.Context, f Filter) ([]Event, error) {
	s.filter = f
	return nil, nil
}

func TestHandlerList(t *testing.T) {
	store := &stubQuerier{}
	rec := httptest.NewRecorder()
	NewHandler(store, logging.Discard()).Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/?entity_type=doctor&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[],"count":0}`, rec.Body.String())
	assert.Equal(t, "doctor", store.filter.EntityType)
	assert.Equal(t, 5, store.filter.Limit)

	rec = httptest.NewRecorder()
	NewHandler(store, logging.Discard()).Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
