// services/finance-service/internal/notify/events.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/kafka"
)

const EventStatusChanged = "invoice.status_changed"

// Envelope wraps every event on the lifecycle topic.
type Envelope struct {
	Type    string                     `json:"type"`
	Payload invoice.StatusChangedEvent `json:"payload"`
}

// EventPublisher puts lifecycle events on kafka keyed by document id, so all
// events of one document stay in order on one partition.
type EventPublisher struct {
	producer kafka.Publisher
}

func NewEventPublisher(producer kafka.Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) PublishStatusChanged(ctx context.Context, event invoice.StatusChangedEvent) error {
	env := Envelope{Type: EventStatusChanged, Payload: event}
	if err := p.producer.Publish(ctx, event.InvoiceID.String(), env); err != nil {
		return fmt.Errorf("publish %s for %s: %w", EventStatusChanged, event.DocumentNumber, err)
	}
	return nil
}

// DecodeEnvelope parses a message produced by EventPublisher.
func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode lifecycle event: %w", err)
	}
	return env, nil
}
