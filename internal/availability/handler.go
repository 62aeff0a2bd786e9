package availability

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Resolver is the read side the HTTP handler needs.
type Resolver interface {
	GetAvailableSlots(ctx context.Context, doctorID, date string) ([]string, error)
	Preview(ctx context.Context, doctorID, date string) (DayPreview, error)
	Calendar(ctx context.Context, doctorID, from string, days int) ([]DayPreview, error)
}

// Handler serves slot queries.
type Handler struct {
	resolver Resolver
	logger   *logging.Logger
}

func NewHandler(resolver Resolver, logger *logging.Logger) *Handler {
	if resolver == nil {
		panic("availability: resolver cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{resolver: resolver, logger: logger}
}

// SlotsResponse is returned by GET /doctors/{doctorID}/slots.
type SlotsResponse struct {
	DoctorID string   `json:"doctorId"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// RegisterPublicRoutes adds slot routes to the public doctors router.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/{doctorID}/slots", h.GetSlots)
}

// RegisterAdminRoutes adds preview routes to the admin doctors router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/{doctorID}/preview", h.GetPreview)
	r.Get("/{doctorID}/calendar", h.GetCalendar)
}

// GetSlots handles GET /doctors/{doctorID}/slots?date=YYYY-MM-DD.
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	date := r.URL.Query().Get("date")

	slots, err := h.resolver.GetAvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.writeError(w, err, doctorID, date)
		return
	}
	respond.JSON(w, http.StatusOK, SlotsResponse{DoctorID: doctorID, Date: date, Slots: slots})
}

// GetPreview handles GET /admin/doctors/{doctorID}/preview?date=YYYY-MM-DD.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	date := r.URL.Query().Get("date")

	preview, err := h.resolver.Preview(r.Context(), doctorID, date)
	if err != nil {
		h.writeError(w, err, doctorID, date)
		return
	}
	respond.JSON(w, http.StatusOK, preview)
}

// GetCalendar handles GET /admin/doctors/{doctorID}/calendar?from=YYYY-MM-DD&days=7.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	from := r.URL.Query().Get("from")
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	calendar, err := h.resolver.Calendar(r.Context(), doctorID, from, days)
	if err != nil {
		h.writeError(w, err, doctorID, from)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"doctorId": doctorID, "days": calendar})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, doctorID, date string) {
	switch {
	case errors.Is(err, ErrInvalidDate):
		respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
	case errors.Is(err, ErrAvailabilityUnknown):
		respond.Error(w, http.StatusServiceUnavailable, "could not determine availability, please retry")
	default:
		h.logger.Error("slot query failed", "doctor_id", doctorID, "date", date, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
