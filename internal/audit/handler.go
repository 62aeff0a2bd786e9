package audit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Querier reads audit events.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// Handler exposes the audit trail to the back-office.
type Handler struct {
	store  Querier
	logger *logging.Logger
}

func NewHandler(store Querier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// List handles GET /admin/audit?entity_type=&entity_id=&action=&since=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Action:     Action(q.Get("action")),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to query audit events")
		return
	}
	if events == nil {
		events = []Event{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// ActorMiddleware copies the X-Admin-Actor header into the request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get("X-Admin-Actor"); actor != "" {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
