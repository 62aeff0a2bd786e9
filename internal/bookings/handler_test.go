package bookings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBookReturnsCheckout(t *testing.T) {
	h := newHarness(t)
	routes := NewHandler(h.svc, nil).PublicRoutes()

	rec := serve(t, routes, http.MethodPost, "/", `{"doctorId":"d1","date":"2030-03-04","time":"09:00","patient":{"name":"Ravi","email":"ravi@example.com"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var checkout Checkout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkout))
	assert.Equal(t, StatusPending, checkout.Booking.Status)
	assert.NotEmpty(t, checkout.OrderID)
	assert.Equal(t, "INR", checkout.Currency)

	rec = serve(t, routes, http.MethodPost, "/", `{"doctorId":"d1","date":"2030-03-04","time":"09:00","patient":{"name":"Meera","phone":"+919811111111"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, routes, http.MethodGet, "/"+checkout.Booking.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerBookValidation(t *testing.T) {
	routes := NewHandler(newHarness(t).svc, nil).PublicRoutes()

	rec := serve(t, routes, http.MethodPost, "/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, routes, http.MethodPost, "/", `{"doctorId":"d1","date":"04-03-2030","time":"09:00","patient":{"name":"Ravi","email":"ravi@example.com"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, routes, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCancelAndVerify(t *testing.T) {
	h := newHarness(t)
	routes := NewHandler(h.svc, nil).PublicRoutes()
	checkout, err := h.svc.Book(context.Background(), bookRequest("10:00"))
	require.NoError(t, err)
	id := checkout.Booking.ID

	rec := serve(t, routes, http.MethodPost, "/"+id+"/verify-payment", `{"orderId":"`+checkout.OrderID+`","paymentId":"pay_9","signature":"00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, routes, http.MethodPost, "/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var b Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, StatusCancelled, b.Status)

	rec = serve(t, routes, http.MethodPost, "/"+id+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAdminFlow(t *testing.T) {
	h := newHarness(t)
	routes := NewHandler(h.svc, nil).AdminRoutes()

	rec := serve(t, routes, http.MethodPost, "/", `{"doctorId":"d1","date":"2030-03-04","time":"11:30","patient":{"name":"Walk In","phone":"+919822222222"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, SourceOffline, b.Source)

	rec = serve(t, routes, http.MethodGet, "/?doctorId=d1&date=2030-03-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Bookings []*Booking `json:"bookings"`
		Count    int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	rec = serve(t, routes, http.MethodGet, "/?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(t, routes, http.MethodGet, "/?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, routes, http.MethodPatch, "/"+b.ID+"/status", `{"status":"completed","reason":"seen"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, routes, http.MethodPatch, "/"+b.ID+"/status", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, routes, http.MethodPost, "/"+b.ID+"/refund", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerBusySlotSetsRetryAfter(t *testing.T) {
	locker := NewLocalLocker()
	h := newHarness(t, WithLocker(locker))
	_, _ = locker.TryLock(context.Background(), SlotKey("d1", monday, "09:00"))
	routes := NewHandler(h.svc, nil).PublicRoutes()

	rec := serve(t, routes, http.MethodPost, "/", `{"doctorId":"d1","date":"2030-03-04","time":"09:00","patient":{"name":"Ravi","email":"ravi@example.com"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
