package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "facturation"
	ExchangeType    = "topic"

	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// SetupConn dials the broker and declares the invoice events exchange.
func SetupConn(url, exchange string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var conn *amqp.Connection
	var err error

	// Simple retry logic for container startup
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to RabbitMQ", zap.Int("attempt", i+1), zap.Error(err))
		if i < dialAttempts-1 {
			time.Sleep(dialBackoff)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
