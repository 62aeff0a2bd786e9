package holidays

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Handler serves override endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("holidays: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublicRoutes lists closures for calendar shading: GET /api/holidays?from=&to=&doctorId=.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// AdminRoutes mounts CRUD under /admin/holidays.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{holidayID}", h.Get)
	r.Put("/{holidayID}", h.Update)
	r.Delete("/{holidayID}", h.Delete)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{From: q.Get("from"), To: q.Get("to"), DoctorID: q.Get("doctorId")}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := availability.ParseDate(d); err != nil {
			respond.Error(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
			return
		}
	}
	overrides, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list holidays", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list holidays")
		return
	}
	if overrides == nil {
		overrides = []availability.HolidayOverride{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"holidays": overrides, "count": len(overrides)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "holidayID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, o)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.service.Update(r.Context(), chi.URLParam(r, "holidayID"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "holidayID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "holiday not found")
	case errors.Is(err, ErrInvalid):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("holiday request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
