package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes typed messages.
type Publisher interface {
	// Push publishes body as a message of type msgType and blocks until the server
	// confirms it.
	Push(ctx context.Context, msgType string, body []byte) error
}

// ClientInterface defines the message queue operations used by the services.
type ClientInterface interface {
	Publisher

	// UnsafePush publishes without waiting for a confirmation.
	UnsafePush(ctx context.Context, msgType string, body []byte) error

	// Consume delivers queue messages until the channel closes. Deliveries must be
	// acknowledged or rejected by the caller.
	Consume() (<-chan amqp.Delivery, error)

	// Ready reports whether the client is connected.
	Ready() bool

	// Close shuts down the channel and connection.
	Close() error
}

var _ ClientInterface = (*Client)(nil)
