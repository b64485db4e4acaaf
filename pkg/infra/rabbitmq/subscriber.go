package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/domain"
)

type subscriber struct {
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewSubscriber creates an EventSubscriber using RabbitMQ.
func NewSubscriber(ch *amqp.Channel, exchange string, logger *zap.Logger) domain.EventSubscriber {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &subscriber{ch: ch, exchange: exchange, logger: logger}
}

func (s *subscriber) Subscribe(ctx context.Context, routingKey string, handler func(domain.InvoiceEvent) error) error {
	// 1. Declare a temporary queue (exclusive to this consumer)
	q, err := s.ch.QueueDeclare(
		"",    // random name
		false, // non-durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare queue: %w", err)
	}

	// 2. Bind the queue to the exchange with the routing key
	if err := s.ch.QueueBind(q.Name, routingKey, s.exchange, false, nil); err != nil {
		return fmt.Errorf("could not bind queue: %w", err)
	}

	// 3. Start consuming
	msgs, err := s.ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				event, err := decodeEvent(d.Body)
				if err != nil {
					s.logger.Warn("dropping undecodable event", zap.String("routing_key", d.RoutingKey), zap.Error(err))
					continue
				}
				if err := handler(event); err != nil {
					s.logger.Warn("event handler failed", zap.String("invoice_number", event.Number), zap.Error(err))
				}
			}
		}
	}()

	return nil
}

func decodeEvent(body []byte) (domain.InvoiceEvent, error) {
	var event domain.InvoiceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("could not unmarshal event: %w", err)
	}
	if event.Type == "" || event.InvoiceID == "" {
		return event, errors.New("event missing type or invoice id")
	}
	return event, nil
}
