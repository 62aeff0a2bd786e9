package coupons

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("coupons: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublicRoutes is mounted at /api/coupons.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/validate", h.Validate)
	return r
}

// AdminRoutes is mounted at /admin/coupons.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{code}", h.Get)
	r.Put("/{code}", h.Update)
	r.Delete("/{code}", h.Delete)
	return r
}

type validateRequest struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
	Date   string `json:"date,omitempty"`
}

type validateResponse struct {
	Valid    bool   `json:"valid"`
	Code     string `json:"code,omitempty"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
	Message  string `json:"message"`
}

// Validate previews a coupon on the booking page. Rejections are a 200 with
// valid=false so the page can show the reason.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := h.service.Quote(r.Context(), req.Code, req.Amount, req.Date)
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		respond.JSON(w, http.StatusOK, validateResponse{Valid: false, Total: req.Amount, Message: rejected.Reason})
	case err != nil:
		h.writeError(w, err)
	default:
		respond.JSON(w, http.StatusOK, validateResponse{
			Valid:    true,
			Code:     q.Code,
			Discount: q.Discount,
			Total:    q.Total,
			Message:  "coupon applied",
		})
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*Coupon{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"coupons": list, "count": len(list)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.service.Update(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, ErrExists):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("coupon request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
