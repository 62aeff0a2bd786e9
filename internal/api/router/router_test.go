package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/coupons"
	"github.com/wolfman30/clinic-booking/internal/doctors"
	"github.com/wolfman30/clinic-booking/internal/holidays"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const monday = "2030-03-04"

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	logger := logging.Discard()

	doctorSvc := doctors.NewService(doctors.NewInMemoryRepository(), logger)
	holidaySvc := holidays.NewService(holidays.NewInMemoryRepository(), logger, holidays.WithDoctorLookup(doctorSvc))
	store := bookings.NewInMemoryStore()
	resolver := availability.NewService(doctorSvc, holidaySvc, bookings.NewSlotSource(store), availability.WithLogger(logger))
	couponSvc := coupons.NewService(coupons.NewInMemoryRepository(), logger)
	bookingSvc := bookings.NewService(store, resolver, doctorSvc, logger, bookings.WithCoupons(couponSvc))

	return New(&Config{
		Logger:              logger,
		DoctorsHandler:      doctors.NewHandler(doctorSvc, logger),
		AvailabilityHandler: availability.NewHandler(resolver, logger),
		HolidaysHandler:     holidays.NewHandler(holidaySvc, logger),
		BookingsHandler:     bookings.NewHandler(bookingSvc, logger),
		CouponsHandler:      coupons.NewHandler(couponSvc, logger),
		HealthChecks:        checks,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
		"mongo": func(context.Context) error { return errors.New("no reachable servers") },
	})
	rec := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, "ok", resp["redis"])
	assert.Equal(t, "no reachable servers", resp["mongo"])
}

func TestRouterBookingFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodPost, "/admin/doctors", map[string]any{
		"name": "Dr. Mehta", "specialization": "Dermatology", "consultationFee": 50000,
		"availability": map[string]any{"monday": map[string]any{
			"isAvailable": true,
			"sessions": []map[string]any{
				{"id": "am", "start": "09:00", "end": "10:00", "slotDuration": 30, "isActive": true},
			},
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doctor struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doctor))

	slotsPath := "/api/doctors/" + doctor.ID + "/slots?date=" + monday
	rec = do(t, router, http.MethodGet, slotsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slots struct {
		Slots []string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Equal(t, []string{"09:00", "09:30"}, slots.Slots)

	rec = do(t, router, http.MethodPost, "/api/bookings", map[string]any{
		"doctorId": doctor.ID, "date": monday, "time": "09:00",
		"patient": map[string]any{"name": "Asha Rao", "email": "asha@example.com", "phone": "+919800000000"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, slotsPath, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Equal(t, []string{"09:30"}, slots.Slots)

	rec = do(t, router, http.MethodGet, "/admin/doctors/"+doctor.ID+"/preview?date="+monday, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
