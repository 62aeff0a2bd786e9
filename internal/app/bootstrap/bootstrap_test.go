package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		StorageBackend:     "memory",
		ClinicName:         "Test Clinic",
		ClinicTimezone:     "UTC",
		Currency:           "INR",
		UseMemoryQueue:     true,
		EmailProvider:      "auto",
		SlotLockTTL:        time.Second,
		ReadRetryAttempts:  1,
		OutboxBatchSize:    10,
		OutboxPollInterval: time.Second,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logging.Discard(), true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestConnectPostgresEmptyURLReturnsNil(t *testing.T) {
	pool, db, err := ConnectPostgres(context.Background(), " ")
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Nil(t, db)
}

func TestBuildProcessedTrackerFallsBackToMemory(t *testing.T) {
	_, ok := BuildProcessedTracker(nil, nil).(*events.MemoryProcessedStore)
	assert.True(t, ok)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.Discard()

	cfg := memoryConfig()
	sender, err := BuildEmailSender(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "care@clinic.test"
	sender, err = BuildEmailSender(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, err = BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, nil, logger)
	assert.Error(t, err)

	_, err = BuildEmailSender(&appconfig.Config{EmailProvider: "pigeon"}, nil, logger)
	assert.Error(t, err)
}

func TestBuildGateway(t *testing.T) {
	logger := logging.Discard()

	gw, secret := buildGateway(&appconfig.Config{}, logger)
	assert.Nil(t, gw)
	assert.Empty(t, secret)

	gw, secret = buildGateway(&appconfig.Config{AllowFakePayments: true}, logger)
	assert.IsType(t, &payments.FakeGateway{}, gw)
	assert.Equal(t, payments.FakeSecret, secret)

	gw, secret = buildGateway(&appconfig.Config{
		RazorpayKeyID: "rzp_test_key", RazorpayKeySecret: "s3cret", RazorpayWebhookSecret: "whsec",
	}, logger)
	assert.IsType(t, &payments.Client{}, gw)
	assert.Equal(t, "whsec", secret)
}

func TestBuildAPIRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageBackend = "cassandra"
	_, err := BuildAPI(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestBuildAPIInMemoryServesBookings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := BuildAPI(ctx, memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Queue)

	call := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		app.Handler.ServeHTTP(rec, req)
		return rec
	}

	rec := call(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(http.MethodPost, "/admin/doctors", map[string]any{
		"name": "Dr. Iyer", "consultationFee": 0,
		"availability": map[string]any{"monday": map[string]any{
			"isAvailable": true,
			"sessions":    []map[string]any{{"id": "am", "start": "10:00", "end": "11:00", "slotDuration": 60, "isActive": true}},
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doctor struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doctor))

	rec = call(http.MethodPost, "/api/bookings", map[string]any{
		"doctorId": doctor.ID, "date": "2030-03-04", "time": "10:00",
		"patient": map[string]any{"name": "Ravi", "email": "ravi@example.com", "phone": "+919811111111"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Doctor and booking events flow to the in-process queue.
	msgs, err := app.Queue.Receive(ctx, 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, msgs)

	rec = call(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
