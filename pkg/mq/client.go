// Package mq provides a RabbitMQ client with automatic reconnection, publisher confirms and
// typed messages.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// ContentType is set on every published message.
const ContentType = "application/x-protobuf"

// Config holds the configuration for a Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.MQMetrics // Optional
	URL     string
	Queue   string
	// Prefetch is the consumer prefetch count; defaults to 1.
	Prefetch int
}

// Client is a RabbitMQ client bound to one durable queue. It reconnects in the background
// and publishes with confirmations.
type Client struct {
	m               sync.Mutex
	pushMu          sync.Mutex
	closeOnce       sync.Once
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	metrics         *metrics.MQMetrics
	queueName       string
	prefetch        int
	isReady         bool
}

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	errNack               = errors.New("message not acknowledged by the server")
)

// New creates a client and starts connecting to the server in the background.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("mq config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Queue == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url cannot be empty")
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	client := &Client{
		logger:    cfg.Logger.With(slog.String("queue", cfg.Queue)),
		metrics:   cfg.Metrics,
		queueName: cfg.Queue,
		prefetch:  prefetch,
		done:      make(chan struct{}),
	}
	go client.handleReconnect(cfg.URL)
	return client, nil
}

// Queue returns the name of the queue the client is bound to.
func (client *Client) Queue() string {
	return client.queueName
}

// Ready reports whether the client currently holds an open channel.
func (client *Client) Ready() bool {
	client.m.Lock()
	defer client.m.Unlock()
	return client.isReady
}

func (client *Client) setReady(ready bool) {
	client.m.Lock()
	client.isReady = ready
	client.m.Unlock()

	if client.metrics != nil {
		if ready {
			client.metrics.ConnectionStatus.Set(1)
		} else {
			client.metrics.ConnectionStatus.Set(0)
		}
	}
}

// handleReconnect waits for a connection error on notifyConnClose and then keeps
// reconnecting until the client is closed.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect")

		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err, "delay", reconnectDelay)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			return
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, err
	}

	client.changeConnection(conn)
	client.logger.Info("connected")
	return conn, nil
}

// handleReInit waits for a channel error and re-initializes the channel. It returns true
// when the client is shutting down and false when the connection has to be re-dialed.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirming channel and declares the durable queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		client.queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	); err != nil {
		return err
	}

	client.changeChannel(ch)
	client.setReady(true)
	client.logger.Info("client init done")
	return nil
}

func (client *Client) changeConnection(connection *amqp.Connection) {
	client.m.Lock()
	defer client.m.Unlock()
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

func (client *Client) changeChannel(channel *amqp.Channel) {
	client.m.Lock()
	defer client.m.Unlock()
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

// Push publishes body with the given message type and waits for the server to confirm it.
// While the client is disconnected or the publish is refused it retries with exponential
// backoff and gives up after maxRetryAttempts.
func (client *Client) Push(ctx context.Context, msgType string, body []byte) error {
	if client.metrics != nil {
		timer := prometheus.NewTimer(client.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	// Confirmations arrive in publish order on a single channel, so pushes are serialized.
	client.pushMu.Lock()
	defer client.pushMu.Unlock()

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if attempt >= maxRetryAttempts {
			client.logger.Error("maximum retry attempts exceeded",
				"retry_count", attempt,
				"max_attempts", maxRetryAttempts,
			)
			client.pushFailed("max_retries_exceeded")
			return errMaxRetriesExceeded
		}

		err := client.publishConfirmed(ctx, msgType, body)
		switch {
		case err == nil:
			if client.metrics != nil {
				client.metrics.MessagesPushed.WithLabelValues(client.queueName, msgType).Inc()
			}
			client.logger.Debug("push confirmed", "type", msgType, "retry_count", attempt)
			return nil
		case ctx.Err() != nil:
			client.pushFailed("context_canceled")
			return ctx.Err()
		case errors.Is(err, errNotConnected):
			client.logger.Info("not connected, waiting for reconnection",
				"backoff", backoff,
				"retry_count", attempt,
			)
		default:
			client.logger.Warn("push failed, retrying with backoff",
				"error", err,
				"backoff", backoff,
				"retry_count", attempt,
			)
		}

		select {
		case <-ctx.Done():
			client.pushFailed("context_canceled")
			return ctx.Err()
		case <-client.done:
			return errShutdown
		case <-time.After(backoff):
		}

		backoff *= backoffMultiplier
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (client *Client) publishConfirmed(ctx context.Context, msgType string, body []byte) error {
	if err := client.UnsafePush(ctx, msgType, body); err != nil {
		return err
	}

	client.m.Lock()
	confirms := client.notifyConfirm
	client.m.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.done:
		return errShutdown
	case confirm := <-confirms:
		if !confirm.Ack {
			return errNack
		}
		return nil
	}
}

func (client *Client) pushFailed(reason string) {
	if client.metrics != nil {
		client.metrics.PushFailures.WithLabelValues(client.queueName, reason).Inc()
	}
}

// UnsafePush publishes body without waiting for a confirmation. It fails when the client
// is not connected; no delivery guarantee is given otherwise.
func (client *Client) UnsafePush(ctx context.Context, msgType string, body []byte) error {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return errNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	return ch.PublishWithContext(
		ctx,
		"",               // Exchange
		client.queueName, // Routing key
		false,            // Mandatory
		false,            // Immediate
		amqp.Publishing{
			ContentType:  ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Type:         msgType,
			Body:         body,
		},
	)
}

// Consume starts delivering queue messages on the returned channel. Every delivery must be
// acknowledged or rejected by the caller.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return nil, errNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	if err := ch.Qos(client.prefetch, 0, false); err != nil {
		return nil, err
	}

	return ch.Consume(
		client.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close stops reconnecting and shuts down the channel and connection. Closing a client
// that never connected, or closing twice, returns an error.
func (client *Client) Close() error {
	first := false
	client.closeOnce.Do(func() {
		first = true
		close(client.done)
	})

	client.m.Lock()
	defer client.m.Unlock()

	if !first || !client.isReady {
		return errAlreadyClosed
	}
	client.isReady = false

	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}

	if err := client.channel.Close(); err != nil {
		return err
	}
	return client.connection.Close()
}
