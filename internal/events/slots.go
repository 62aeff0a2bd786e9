package events

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// SlotNotifier is the live side of a slot change, such as the websocket hub.
type SlotNotifier interface {
	NotifySlotsChanged(ctx context.Context, doctorID, date, reason string)
}

// SlotChangePublisher tells live subscribers that slots moved and records a
// SlotsChangedV1 event for everything downstream.
type SlotChangePublisher struct {
	publisher Publisher
	live      []SlotNotifier
	logger    *logging.Logger
	now       func() time.Time
}

func NewSlotChangePublisher(publisher Publisher, logger *logging.Logger, live ...SlotNotifier) *SlotChangePublisher {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotChangePublisher{publisher: publisher, live: live, logger: logger, now: time.Now}
}

func (p *SlotChangePublisher) NotifySlotsChanged(ctx context.Context, doctorID, date, reason string) {
	for _, n := range p.live {
		n.NotifySlotsChanged(ctx, doctorID, date, reason)
	}
	evt := SlotsChangedV1{DoctorID: doctorID, Date: date, Reason: reason, ChangedAt: p.now().UTC()}
	if err := p.publisher.Publish(ctx, DoctorAggregate(doctorID), evt); err != nil {
		p.logger.Warn("failed to publish slot change", "error", err, "doctor_id", doctorID, "date", date)
	}
}
