package doctors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const maxPhotoBytes = 5 << 20

// Handler serves doctor endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("doctors: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterPublicRoutes adds patient-facing routes under /api/doctors.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.ListPublic)
	r.Get("/{doctorID}", h.GetPublic)
}

// RegisterAdminRoutes adds back-office routes under /admin/doctors.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.ListAll)
	r.Post("/", h.Create)
	r.Get("/{doctorID}", h.Get)
	r.Patch("/{doctorID}", h.Update)
	r.Delete("/{doctorID}", h.Delete)
	r.Put("/{doctorID}/availability", h.PutAvailability)
	r.Put("/{doctorID}/photo", h.PutPhoto)
}

// ListPublic handles GET /api/doctors?specialization=.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ListFilter{ActiveOnly: true, Specialization: r.URL.Query().Get("specialization")})
}

// ListAll handles GET /admin/doctors.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ListFilter{
		ActiveOnly:     r.URL.Query().Get("active") == "true",
		Specialization: r.URL.Query().Get("specialization"),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter ListFilter) {
	doctors, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list doctors")
		return
	}
	if doctors == nil {
		doctors = []*Doctor{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"doctors": doctors, "count": len(doctors)})
}

// GetPublic hides inactive doctors.
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.Get(r.Context(), chi.URLParam(r, "doctorID"))
	if err == nil && !doctor.Active {
		err = ErrNotFound
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doctor)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.Get(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doctor)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doctor, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, doctor)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doctor, err := h.service.Update(r.Context(), chi.URLParam(r, "doctorID"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doctor)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "doctorID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutAvailability handles PUT /admin/doctors/{doctorID}/availability with a
// weekly template body keyed by lowercase weekday.
func (h *Handler) PutAvailability(w http.ResponseWriter, r *http.Request) {
	var template availability.WeeklyTemplate
	if err := respond.Decode(r, &template); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doctor, err := h.service.UpdateAvailability(r.Context(), chi.URLParam(r, "doctorID"), template)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doctor)
}

// PutPhoto handles PUT /admin/doctors/{doctorID}/photo with a raw image body.
func (h *Handler) PutPhoto(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respond.Error(w, http.StatusUnsupportedMediaType, "photo must be an image")
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	doctor, err := h.service.UploadPhoto(r.Context(), chi.URLParam(r, "doctorID"), contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, doctor)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "doctor not found")
	case errors.Is(err, ErrInvalid):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("doctor request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
