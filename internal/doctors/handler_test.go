package doctors

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(svc, logging.Discard())
	r := chi.NewRouter()
	r.Route("/api/doctors", h.RegisterPublicRoutes)
	r.Route("/admin/doctors", h.RegisterAdminRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestHandlerCreateAndPublicList(t *testing.T) {
	svc, _, _ := newService(t)
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/admin/doctors", map[string]any{
		"name": "Dr. A", "specialization": "ENT", "consultationFee": 50000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Doctor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	inactive := false
	_, err := svc.Create(context.Background(), CreateRequest{Name: "Dr. Hidden", Active: &inactive})
	require.NoError(t, err)

	rec = do(t, router, http.MethodGet, "/api/doctors?specialization=ent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Doctors []Doctor `json:"doctors"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Doctors[0].ID)

	rec = do(t, router, http.MethodGet, "/admin/doctors", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
}

func TestHandlerPutAvailability(t *testing.T) {
	svc, _, _ := newService(t)
	doctor, err := svc.Create(context.Background(), CreateRequest{Name: "Dr. A"})
	require.NoError(t, err)
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPut, "/admin/doctors/"+doctor.ID+"/availability", mondayTemplate())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"monday"`)

	rec = do(t, router, http.MethodPut, "/admin/doctors/"+doctor.ID+"/availability", map[string]any{
		"monday": map[string]any{"sessions": []map[string]any{{"start": "x", "end": "10:00", "slotDuration": 15}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/admin/doctors/missing/availability", mondayTemplate())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerPublicHidesInactive(t *testing.T) {
	svc, _, _ := newService(t)
	inactive := false
	doctor, err := svc.Create(context.Background(), CreateRequest{Name: "Dr. Off", Active: &inactive})
	require.NoError(t, err)
	router := newTestRouter(svc)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/doctors/"+doctor.ID, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/admin/doctors/"+doctor.ID, nil).Code)
}

func TestHandlerPutPhoto(t *testing.T) {
	photos := &photoSpy{}
	svc := NewService(NewInMemoryRepository(), logging.Discard(), WithPhotoStore(photos))
	doctor, err := svc.Create(context.Background(), CreateRequest{Name: "Dr. A"})
	require.NoError(t, err)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/admin/doctors/"+doctor.ID+"/photo", strings.NewReader("jpeg"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doctors/"+doctor.ID+"/photo.jpg", photos.key)

	req = httptest.NewRequest(http.MethodPut, "/admin/doctors/"+doctor.ID+"/photo", strings.NewReader("text"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	svc, _, _ := newService(t)
	doctor, err := svc.Create(context.Background(), CreateRequest{Name: "Dr. A"})
	require.NoError(t, err)
	router := newTestRouter(svc)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/admin/doctors/"+doctor.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/admin/doctors/"+doctor.ID, nil).Code)
}
