// Package audit records admin mutations of clinic data.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Action names what an admin changed.
type Action string

const (
	ActionDoctorCreated        Action = "doctor.created"
	ActionDoctorUpdated        Action = "doctor.updated"
	ActionDoctorDeleted        Action = "doctor.deleted"
	ActionAvailabilityUpdated  Action = "doctor.availability_updated"
	ActionHolidayCreated       Action = "holiday.created"
	ActionHolidayUpdated       Action = "holiday.updated"
	ActionHolidayDeleted       Action = "holiday.deleted"
	ActionCouponSaved          Action = "coupon.saved"
	ActionCouponDeleted        Action = "coupon.deleted"
	ActionBookingStatusChanged Action = "booking.status_changed"
	ActionBookingRefunded      Action = "booking.refunded"
)

// Event is an immutable audit record.
type Event struct {
	ID            string          `json:"id"`
	Action        Action          `json:"action"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Actor         string          `json:"actor,omitempty"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Recorder is implemented by anything that stores audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NopRecorder discards events. Used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }

// Service stores audit events in Postgres.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if db == nil {
		panic("audit: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// Record inserts event, filling ID and CreatedAt when empty.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO admin_audit_events (
			id, action, entity_type, entity_id, actor, changed_fields, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		event.EntityType,
		event.EntityID,
		nullString(event.Actor),
		pq.Array(event.ChangedFields),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Filter narrows Query results.
type Filter struct {
	EntityType string
	EntityID   string
	Action     Action
	Since      time.Time
	Limit      int
}

// Query returns matching events, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, action, entity_type, entity_id, actor, changed_fields, details, created_at
		FROM admin_audit_events
		WHERE 1=1
	`
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if filter.EntityType != "" {
		add("entity_type =", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id =", filter.EntityID)
	}
	if filter.Action != "" {
		add("action =", filter.Action)
	}
	if !filter.Since.IsZero() {
		add("created_at >=", filter.Since)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			actor   sql.NullString
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &actor,
			pq.Array(&e.ChangedFields), &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Actor = actor.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

// Details marshals v for Event.Details, returning nil on failure.
func Details(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// Safe records event and logs instead of failing the caller. Admin writes
// have already been committed when they are audited.
func Safe(ctx context.Context, rec Recorder, logger *logging.Logger, event Event) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, event); err != nil && logger != nil {
		logger.Error("audit event not recorded",
			"action", event.Action,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}

type actorKey struct{}

// WithActor stores the acting admin on ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting admin, if known.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
