package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type fakeResolver struct {
	slots    []string
	preview  DayPreview
	calendar []DayPreview
	err      error
	gotDays  int
}

func (f *fakeResolver) GetAvailableSlots(context.Context, string, string) ([]string, error) {
	return f.slots, f.err
}

func (f *fakeResolver) Preview(context.Context, string, string) (DayPreview, error) {
	return f.preview, f.err
}

func (f *fakeResolver) Calendar(_ context.Context, _ string, _ string, days int) ([]DayPreview, error) {
	f.gotDays = days
	return f.calendar, f.err
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/doctors", h.RegisterPublicRoutes)
	r.Route("/admin/doctors", h.RegisterAdminRoutes)
	return r
}

func TestHandlerGetSlots(t *testing.T) {
	h := NewHandler(&fakeResolver{slots: []string{"09:00", "10:00"}}, logging.Discard())
	req := httptest.NewRequest(http.MethodGet, "/api/doctors/d1/slots?date=2025-01-06", nil)
	rec := httptest.NewRecorder()

	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "d1", body.DoctorID)
	assert.Equal(t, []string{"09:00", "10:00"}, body.Slots)
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: %q", ErrInvalidDate, "x"), http.StatusBadRequest},
		{fmt.Errorf("%w: load holidays: boom", ErrAvailabilityUnknown), http.StatusServiceUnavailable},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewHandler(&fakeResolver{err: tc.err}, logging.Discard())
		rec := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/d1/slots?date=x", nil))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestHandlerPreviewAndCalendar(t *testing.T) {
	resolver := &fakeResolver{
		preview:  DayPreview{DoctorID: "d1", Date: monday, Closed: true, ClosureReason: "Holiday"},
		calendar: []DayPreview{{DoctorID: "d1", Date: monday}},
	}
	router := newRouter(NewHandler(resolver, logging.Discard()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/doctors/d1/preview?date=2025-01-06", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"closureReason":"Holiday"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/doctors/d1/calendar?from=2025-01-06&days=14", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, resolver.gotDays)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/doctors/d1/calendar?from=2025-01-06&days=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
