package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

// fakeProducer records what would have gone to kafka.
type fakeProducer struct {
	keys   []string
	values []interface{}
	err    error
}

func (f *fakeProducer) Publish(ctx context.Context, key string, value interface{}) error {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

type fakeQueue struct {
	declared []string
	bodies   map[string][][]byte
	errQueue error
	errPub   error
}

func (f *fakeQueue) CreateQueue(name string) error {
	f.declared = append(f.declared, name)
	return f.errQueue
}

func (f *fakeQueue) Publish(ctx context.Context, queue string, body []byte) error {
	if f.errPub != nil {
		return f.errPub
	}
	if f.bodies == nil {
		f.bodies = make(map[string][][]byte)
	}
	f.bodies[queue] = append(f.bodies[queue], body)
	return nil
}

func TestEventPublisher_RoundTrip(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewEventPublisher(prod)

	event := invoice.StatusChangedEvent{
		InvoiceID:      uuid.New(),
		DocumentNumber: "INV-2025-0001",
		Type:           invoice.TypeInvoice,
		PreviousStatus: invoice.StatusPending,
		NewStatus:      invoice.StatusPaid,
		Actor:          "alice",
		Version:        3,
		OccurredAt:     time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := pub.PublishStatusChanged(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if len(prod.keys) != 1 || prod.keys[0] != event.InvoiceID.String() {
		t.Fatalf("expected message keyed by invoice id, got %v", prod.keys)
	}

	raw, err := json.Marshal(prod.values[0])
	if err != nil {
		t.Fatal(err)
	}
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != EventStatusChanged {
		t.Errorf("type = %s", env.Type)
	}
	if env.Payload.InvoiceID != event.InvoiceID || env.Payload.NewStatus != invoice.StatusPaid || env.Payload.Version != 3 {
		t.Errorf("payload mismatch: %+v", env.Payload)
	}
	if !env.Payload.OccurredAt.Equal(event.OccurredAt) {
		t.Errorf("occurred_at %v", env.Payload.OccurredAt)
	}
}

func TestEventPublisher_WrapsProducerError(t *testing.T) {
	boom := errors.New("leader not available")
	pub := NewEventPublisher(&fakeProducer{err: boom})
	err := pub.PublishStatusChanged(context.Background(), invoice.StatusChangedEvent{DocumentNumber: "INV-2025-0001"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestReminderQueue(t *testing.T) {
	q := &fakeQueue{}
	rq, err := NewReminderQueue(q, "invoice-reminders")
	if err != nil {
		t.Fatal(err)
	}
	if len(q.declared) != 1 || q.declared[0] != "invoice-reminders" {
		t.Fatalf("queue not declared: %v", q.declared)
	}

	job := invoice.ReminderJob{
		InvoiceID:      uuid.New(),
		DocumentNumber: "INV-2025-0001",
		CustomerEmail:  "accounts@acme.test",
		AmountDue:      "125.00",
		Currency:       "AUD",
		DueDate:        "2025-01-29",
		ReminderCount:  2,
	}
	if err := rq.EnqueueReminder(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	bodies := q.bodies["invoice-reminders"]
	if len(bodies) != 1 {
		t.Fatalf("expected one message, got %d", len(bodies))
	}
	var got invoice.ReminderJob
	if err := json.Unmarshal(bodies[0], &got); err != nil {
		t.Fatal(err)
	}
	if got != job {
		t.Errorf("got %+v, want %+v", got, job)
	}

	q.errPub = errors.New("channel closed")
	if err := rq.EnqueueReminder(context.Background(), job); err == nil {
		t.Error("expected publish error")
	}
}

func TestReminderQueue_DeclareFailure(t *testing.T) {
	if _, err := NewReminderQueue(&fakeQueue{errQueue: errors.New("access refused")}, "q"); err == nil {
		t.Fatal("expected declare error")
	}
}
