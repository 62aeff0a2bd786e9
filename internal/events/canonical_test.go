package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope(BookingAggregate("b-9"), BookingStatusChangedV1{
		BookingID: "b-9",
		From:      "pending",
		To:        "paid",
	}, WithEventID(id), WithCorrelationID(" req-1 "))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if env.TimestampMicros != fixedNow.UnixMicro() {
		t.Fatalf("unexpected timestamp: %d", env.TimestampMicros)
	}
	if env.EventType != TypeBookingStatusChanged {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "booking:b-9" || env.CorrelationID != "req-1" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	var decoded BookingStatusChangedV1
	if err := env.Decode(&decoded); err != nil || decoded.To != "paid" {
		t.Fatalf("decode = %#v, %v", decoded, err)
	}
}

func TestNewEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope(" ", SlotsChangedV1{}); err != errMissingAggregate {
		t.Fatalf("expected missing aggregate error, got %v", err)
	}
	if _, err := NewEnvelope("doctor:1", nil); err != errNilEvent {
		t.Fatalf("expected nil event error, got %v", err)
	}
	if _, err := NewEnvelope("doctor:1", badEvent{}); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestDoctorAggregate(t *testing.T) {
	if got := DoctorAggregate(""); got != "doctor:*" {
		t.Fatalf("got %q", got)
	}
	if got := DoctorAggregate("d1"); got != "doctor:d1" {
		t.Fatalf("got %q", got)
	}
}
