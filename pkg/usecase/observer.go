package usecase

import (
	"context"

	"github.com/ona79/facturation-app/pkg/domain"
)

// EventObserver follows invoice events from a subscriber.
type EventObserver struct {
	sub domain.EventSubscriber
}

// NewEventObserver creates a new EventObserver.
func NewEventObserver(sub domain.EventSubscriber) *EventObserver {
	return &EventObserver{sub: sub}
}

// Start begins observing events matching the routing key.
func (o *EventObserver) Start(ctx context.Context, routingKey string, handler func(domain.InvoiceEvent) error) error {
	if routingKey == "" {
		routingKey = "invoice.#"
	}
	return o.sub.Subscribe(ctx, routingKey, handler)
}
