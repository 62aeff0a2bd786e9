package bookings

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Handler serves booking endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublicRoutes is mounted at /api/bookings.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Book)
	r.Get("/{bookingID}", h.Get)
	r.Post("/{bookingID}/cancel", h.Cancel)
	r.Post("/{bookingID}/verify-payment", h.VerifyPayment)
	return r
}

// AdminRoutes is mounted at /admin/bookings.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.CreateOffline)
	r.Get("/{bookingID}", h.Get)
	r.Patch("/{bookingID}/status", h.UpdateStatus)
	r.Post("/{bookingID}/refund", h.Refund)
	return r
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	checkout, err := h.service.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, checkout)
}

func (h *Handler) CreateOffline(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	booking, err := h.service.CreateOffline(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, booking)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, booking)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Cancel(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, booking)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// VerifyPayment handles the checkout widget's success callback.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := respond.Decode(r, &req); err != nil || req.OrderID == "" || req.PaymentID == "" {
		respond.Error(w, http.StatusBadRequest, "orderId, paymentId and signature are required")
		return
	}
	booking, err := h.service.VerifyPayment(r.Context(), chi.URLParam(r, "bookingID"), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, booking)
}

// List handles GET /admin/bookings?doctorId=&date=&from=&to=&status=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		DoctorID: q.Get("doctorId"),
		Date:     q.Get("date"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Status:   Status(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respond.Error(w, http.StatusBadRequest, "unknown status")
		return
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*Booking{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"bookings": list, "count": len(list)})
}

type statusRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil || req.Status == "" {
		respond.Error(w, http.StatusBadRequest, "status is required")
		return
	}
	booking, err := h.service.Transition(r.Context(), chi.URLParam(r, "bookingID"), req.Status, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, booking)
}

type refundRequest struct {
	Amount int64  `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	booking, err := h.service.Refund(r.Context(), chi.URLParam(r, "bookingID"), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, booking)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrInvalidTransition):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCouponRejected):
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConcurrentUpdate):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrSlotBusy):
		w.Header().Set("Retry-After", "1")
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrTooManyAttempts):
		respond.Error(w, http.StatusTooManyRequests, "too many booking attempts, try again later")
	case errors.Is(err, ErrPaymentMismatch):
		respond.Error(w, http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, ErrNotRefundable):
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, availability.ErrAvailabilityUnknown):
		respond.Error(w, http.StatusServiceUnavailable, "availability temporarily unknown, retry shortly")
	default:
		h.logger.Error("booking request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
