package notificationworker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// processedProvider namespaces notification deliveries in the processed tracker.
const processedProvider = "notify"

// EnvelopeHandler reacts to one queued event.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env events.Envelope) error
}

// Consumer drains the events queue into a handler. A message is deleted only
// after the handler succeeds, so failures are retried once the queue makes
// the message visible again. Undecodable messages are dropped.
type Consumer struct {
	queue     events.Queue
	handler   EnvelopeHandler
	processed events.ProcessedTracker
	logger    *logging.Logger
	batch     int
	wait      int
	backoff   time.Duration
}

func NewConsumer(queue events.Queue, handler EnvelopeHandler, processed events.ProcessedTracker, logger *logging.Logger) *Consumer {
	if queue == nil || handler == nil {
		panic("notificationworker: queue and handler are required")
	}
	if processed == nil {
		processed = events.NewMemoryProcessedStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{
		queue:     queue,
		handler:   handler,
		processed: processed,
		logger:    logger,
		batch:     10,
		wait:      20,
		backoff:   time.Second,
	}
}

func (c *Consumer) WithBatchSize(n int) *Consumer {
	if n > 0 && n <= 10 {
		c.batch = n
	}
	return c
}

func (c *Consumer) WithWaitSeconds(n int) *Consumer {
	if n >= 0 {
		c.wait = n
	}
	return c
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("notification consumer started", "batch", c.batch)
	for {
		if ctx.Err() != nil {
			c.logger.Info("notification consumer stopped")
			return
		}
		if _, err := c.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("notification poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

// Poll receives one batch and returns how many messages were handled.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	messages, err := c.queue.Receive(ctx, c.batch, c.wait)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, msg := range messages {
		if c.process(ctx, msg) {
			handled++
		}
	}
	return handled, nil
}

func (c *Consumer) process(ctx context.Context, msg events.Message) bool {
	var env events.Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil || env.EventType == "" {
		c.logger.Error("dropping undecodable queue message", "error", err, "message_id", msg.ID)
		c.ack(ctx, msg)
		return false
	}
	eventID := env.EventID.String()

	done, err := c.processed.AlreadyProcessed(ctx, processedProvider, eventID)
	if err != nil {
		c.logger.Warn("processed lookup failed, handling anyway", "error", err, "event_id", eventID)
	}
	if done {
		c.logger.Debug("skipping duplicate event", "event_id", eventID, "type", env.EventType)
		c.ack(ctx, msg)
		return false
	}

	if err := c.handler.HandleEnvelope(ctx, env); err != nil {
		c.logger.Error("event handling failed; will retry", "error", err, "event_id", eventID, "type", env.EventType)
		return false
	}
	if _, err := c.processed.MarkProcessed(ctx, processedProvider, eventID); err != nil {
		c.logger.Warn("failed to mark event processed", "error", err, "event_id", eventID)
	}
	c.ack(ctx, msg)
	return true
}

func (c *Consumer) ack(ctx context.Context, msg events.Message) {
	if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		c.logger.Warn("failed to delete queue message", "error", err, "message_id", msg.ID)
	}
}
