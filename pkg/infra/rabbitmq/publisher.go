package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ona79/facturation-app/pkg/domain"
)

type publisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewPublisher creates an EventPublisher backed by a RabbitMQ topic exchange.
func NewPublisher(ch *amqp.Channel, exchange string) domain.EventPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &publisher{ch: ch, exchange: exchange}
}

func (p *publisher) Publish(ctx context.Context, event domain.InvoiceEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	// Routing Key: the event type (e.g., invoice.issued)
	return p.ch.PublishWithContext(ctx,
		p.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.InvoiceID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.InvoiceEvent) error { return nil }
