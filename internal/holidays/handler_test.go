package holidays

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func TestHandlerCRUD(t *testing.T) {
	svc, _, _ := newService(t)
	h := NewHandler(svc, logging.Discard())
	r := chi.NewRouter()
	r.Mount("/admin/holidays", h.AdminRoutes())
	r.Mount("/api/holidays", h.PublicRoutes())

	body, _ := json.Marshal(Request{Date: "2025-08-15", Name: "Independence Day", Type: availability.OverrideHoliday, AppliesTo: availability.ScopeAll})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/holidays", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created availability.HolidayOverride
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/holidays?from=2025-08-01&to=2025-08-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Independence Day")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/holidays?from=August", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad, _ := json.Marshal(Request{Date: "2025-08-15", Name: "x", Type: availability.OverrideHoliday, AppliesTo: availability.ScopeDoctor})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/holidays/"+created.ID, bytes.NewReader(bad)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/holidays/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/holidays/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
