package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
)

// Publisher records domain events for asynchronous consumers.
type Publisher interface {
	Publish(ctx context.Context, aggregate string, evt CanonicalEvent) error
}

type appender interface {
	Append(ctx context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error)
}

// OutboxPublisher writes events to the Postgres outbox; a Deliverer ships them.
type OutboxPublisher struct {
	store appender
}

func NewOutboxPublisher(store *OutboxStore) *OutboxPublisher {
	if store == nil {
		panic("events: outbox store required")
	}
	return &OutboxPublisher{store: store}
}

func (p *OutboxPublisher) Publish(ctx context.Context, aggregate string, evt CanonicalEvent) error {
	_, err := p.store.Append(ctx, aggregate, evt, WithCorrelationID(middleware.GetReqID(ctx)))
	return err
}

// DirectPublisher sends envelopes straight to a queue, skipping the outbox.
type DirectPublisher struct {
	queue Queue
}

func NewDirectPublisher(queue Queue) *DirectPublisher {
	if queue == nil {
		panic("events: queue required")
	}
	return &DirectPublisher{queue: queue}
}

func (p *DirectPublisher) Publish(ctx context.Context, aggregate string, evt CanonicalEvent) error {
	env, err := NewEnvelope(aggregate, evt, WithCorrelationID(middleware.GetReqID(ctx)))
	if err != nil {
		return err
	}
	return sendEnvelope(ctx, p.queue, env)
}

// QueueForwarder is the DeliveryHandler that moves outbox entries to a queue.
type QueueForwarder struct {
	queue Queue
}

func NewQueueForwarder(queue Queue) *QueueForwarder {
	if queue == nil {
		panic("events: queue required")
	}
	return &QueueForwarder{queue: queue}
}

func (f *QueueForwarder) Handle(ctx context.Context, entry OutboxEntry) error {
	return sendEnvelope(ctx, f.queue, entry.Envelope)
}

func sendEnvelope(ctx context.Context, queue Queue, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	return queue.Send(ctx, string(body))
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, CanonicalEvent) error { return nil }
