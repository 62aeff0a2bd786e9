package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// ProviderName identifies the gateway in the processed-events tracker.
const ProviderName = "razorpay"

// Webhook event types the handler acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"
)

// BookingPayments applies gateway outcomes to bookings. Returning an error
// makes the gateway retry the webhook, so implementations swallow outcomes
// that will never succeed.
type BookingPayments interface {
	MarkPaid(ctx context.Context, bookingID, orderID, paymentID string) error
	MarkFailed(ctx context.Context, bookingID, reason string) error
	RecordRefund(ctx context.Context, bookingID, paymentID, refundID string, amount int64) error
}

// WebhookHandler receives gateway callbacks.
type WebhookHandler struct {
	secret    string
	bookings  BookingPayments
	processed events.ProcessedTracker
	metrics   *metrics.PaymentMetrics
	logger    *logging.Logger
}

func NewWebhookHandler(secret string, bookings BookingPayments, processed events.ProcessedTracker, m *metrics.PaymentMetrics, logger *logging.Logger) *WebhookHandler {
	if bookings == nil {
		panic("payments: booking payments required")
	}
	if processed == nil {
		processed = events.NewMemoryProcessedStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: secret, bookings: bookings, processed: processed, metrics: m, logger: logger}
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/razorpay", h.Handle)
	return r
}

type webhookEvent struct {
	Entity    string `json:"entity"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity Order `json:"entity"`
		} `json:"order"`
		Refund *struct {
			Entity Refund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Notes            Notes  `json:"notes"`
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !VerifyWebhookSignature(h.secret, payload, r.Header.Get("X-Razorpay-Signature")) {
		h.metrics.ObserveWebhook("unknown", "unauthorized", time.Since(started).Seconds())
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode gateway event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	eventID := r.Header.Get("X-Razorpay-Event-Id")
	if eventID == "" {
		eventID = fallbackEventID(evt)
	}
	if eventID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if processed, err := h.processed.AlreadyProcessed(ctx, ProviderName, eventID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		h.metrics.ObserveWebhook(evt.Event, "duplicate", time.Since(started).Seconds())
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := h.apply(ctx, evt)
	if err != nil {
		h.logger.Error("gateway event failed", "error", err, "event", evt.Event, "event_id", eventID)
		h.metrics.ObserveWebhook(evt.Event, "error", time.Since(started).Seconds())
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if _, err := h.processed.MarkProcessed(ctx, ProviderName, eventID); err != nil {
		h.logger.Error("failed to record processed event", "error", err)
	}
	h.metrics.ObserveWebhook(evt.Event, status, time.Since(started).Seconds())
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) apply(ctx context.Context, evt webhookEvent) (string, error) {
	switch evt.Event {
	case EventPaymentCaptured:
		if evt.Payload.Payment == nil {
			return "ignored", nil
		}
		p := evt.Payload.Payment.Entity
		bookingID := p.Notes["booking_id"]
		if bookingID == "" && evt.Payload.Order != nil {
			bookingID = evt.Payload.Order.Entity.Notes["booking_id"]
		}
		if bookingID == "" {
			h.logger.Warn("captured payment without booking reference", "payment_id", p.ID, "order_id", p.OrderID)
			return "ignored", nil
		}
		return "applied", h.bookings.MarkPaid(ctx, bookingID, p.OrderID, p.ID)

	case EventOrderPaid:
		if evt.Payload.Order == nil {
			return "ignored", nil
		}
		o := evt.Payload.Order.Entity
		bookingID := o.Notes["booking_id"]
		if bookingID == "" {
			bookingID = o.Receipt
		}
		paymentID := ""
		if evt.Payload.Payment != nil {
			paymentID = evt.Payload.Payment.Entity.ID
		}
		if bookingID == "" {
			return "ignored", nil
		}
		return "applied", h.bookings.MarkPaid(ctx, bookingID, o.ID, paymentID)

	case EventPaymentFailed:
		if evt.Payload.Payment == nil {
			return "ignored", nil
		}
		p := evt.Payload.Payment.Entity
		bookingID := p.Notes["booking_id"]
		if bookingID == "" {
			return "ignored", nil
		}
		reason := p.ErrorDescription
		if reason == "" {
			reason = p.ErrorCode
		}
		return "applied", h.bookings.MarkFailed(ctx, bookingID, reason)

	case EventRefundProcessed:
		if evt.Payload.Refund == nil {
			return "ignored", nil
		}
		rf := evt.Payload.Refund.Entity
		bookingID := rf.Notes["booking_id"]
		if bookingID == "" && evt.Payload.Payment != nil {
			bookingID = evt.Payload.Payment.Entity.Notes["booking_id"]
		}
		if bookingID == "" {
			return "ignored", nil
		}
		return "applied", h.bookings.RecordRefund(ctx, bookingID, rf.PaymentID, rf.ID, rf.Amount)
	}
	return "ignored", nil
}

func fallbackEventID(evt webhookEvent) string {
	var entityID string
	switch {
	case evt.Payload.Refund != nil:
		entityID = evt.Payload.Refund.Entity.ID
	case evt.Payload.Payment != nil:
		entityID = evt.Payload.Payment.Entity.ID
	case evt.Payload.Order != nil:
		entityID = evt.Payload.Order.Entity.ID
	}
	if entityID == "" || evt.Event == "" {
		return ""
	}
	return evt.Event + ":" + entityID
}
