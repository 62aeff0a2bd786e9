package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
)

type recordedCall struct {
	kind      string
	bookingID string
	orderID   string
	paymentID string
	refundID  string
	amount    int64
	reason    string
}

type stubBookingPayments struct {
	calls []recordedCall
	err   error
}

func (s *stubBookingPayments) MarkPaid(_ context.Context, bookingID, orderID, paymentID string) error {
	s.calls = append(s.calls, recordedCall{kind: "paid", bookingID: bookingID, orderID: orderID, paymentID: paymentID})
	return s.err
}

func (s *stubBookingPayments) MarkFailed(_ context.Context, bookingID, reason string) error {
	s.calls = append(s.calls, recordedCall{kind: "failed", bookingID: bookingID, reason: reason})
	return s.err
}

func (s *stubBookingPayments) RecordRefund(_ context.Context, bookingID, paymentID, refundID string, amount int64) error {
	s.calls = append(s.calls, recordedCall{kind: "refund", bookingID: bookingID, paymentID: paymentID, refundID: refundID, amount: amount})
	return s.err
}

const webhookSecret = "whsec"

func newWebhookHandler(t *testing.T, bookings BookingPayments) *WebhookHandler {
	t.Helper()
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())
	return NewWebhookHandler(webhookSecret, bookings, events.NewMemoryProcessedStore(), m, nil)
}

func postWebhook(h *WebhookHandler, body, eventID, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/razorpay", strings.NewReader(body))
	if signature == "" {
		signature = Sign(webhookSecret, body)
	}
	req.Header.Set("X-Razorpay-Signature", signature)
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

const capturedBody = `{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":50000,"status":"captured","notes":{"booking_id":"b-1"}}}}}`

func TestWebhookPaymentCapturedMarksPaidOnce(t *testing.T) {
	stub := &stubBookingPayments{}
	h := newWebhookHandler(t, stub)

	rr := postWebhook(h, capturedBody, "evt_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = postWebhook(h, capturedBody, "evt_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rr.Code)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected one MarkPaid call, got %#v", stub.calls)
	}
	call := stub.calls[0]
	if call.kind != "paid" || call.bookingID != "b-1" || call.orderID != "order_1" || call.paymentID != "pay_1" {
		t.Fatalf("unexpected call: %#v", call)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	stub := &stubBookingPayments{}
	rr := postWebhook(newWebhookHandler(t, stub), capturedBody, "evt_1", "deadbeef")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if len(stub.calls) != 0 {
		t.Fatal("no booking update expected")
	}
}

func TestWebhookPaymentFailed(t *testing.T) {
	stub := &stubBookingPayments{}
	body := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","status":"failed","error_code":"BAD_REQUEST_ERROR","error_description":"Card declined","notes":{"booking_id":"b-2"}}}}}`
	rr := postWebhook(newWebhookHandler(t, stub), body, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(stub.calls) != 1 || stub.calls[0].kind != "failed" || stub.calls[0].reason != "Card declined" {
		t.Fatalf("unexpected calls: %#v", stub.calls)
	}
}

func TestWebhookRefundProcessed(t *testing.T) {
	stub := &stubBookingPayments{}
	body := `{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_1","amount":1000,"notes":[]}},"payment":{"entity":{"id":"pay_1","notes":{"booking_id":"b-3"}}}}}`
	rr := postWebhook(newWebhookHandler(t, stub), body, "evt_r", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("unexpected calls: %#v", stub.calls)
	}
	call := stub.calls[0]
	if call.kind != "refund" || call.bookingID != "b-3" || call.refundID != "rfnd_1" || call.amount != 1000 {
		t.Fatalf("unexpected call: %#v", call)
	}
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	stub := &stubBookingPayments{}
	body := `{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_9","notes":{"booking_id":"b-9"}}}}}`
	rr := postWebhook(newWebhookHandler(t, stub), body, "evt_9", "")
	if rr.Code != http.StatusOK || len(stub.calls) != 0 {
		t.Fatalf("expected ignored event, got %d %#v", rr.Code, stub.calls)
	}
}

func TestWebhookRetriesOnBookingError(t *testing.T) {
	stub := &stubBookingPayments{err: errors.New("store unavailable")}
	h := newWebhookHandler(t, stub)
	rr := postWebhook(h, capturedBody, "evt_1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	stub.err = nil
	rr = postWebhook(h, capturedBody, "evt_1", "")
	if rr.Code != http.StatusOK || len(stub.calls) != 2 {
		t.Fatalf("expected the retry to be applied, got %d %#v", rr.Code, stub.calls)
	}
}
