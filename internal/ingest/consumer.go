// Package ingest moves upstream records from the message queue into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
	"github.com/Smehapavi/AgriNex/pkg/mq"
	"github.com/Smehapavi/AgriNex/pkg/wire"
)

const (
	defaultReadyTimeout = 30 * time.Second
	resubscribeDelay    = time.Second
)

// Recorder stores the upstream record kinds. *store.Gateway implements it.
type Recorder interface {
	AppendSensorReading(ctx context.Context, r domain.SensorReading) (domain.SensorReading, error)
	AppendPrediction(ctx context.Context, p domain.Prediction) (domain.Prediction, error)
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	Recorder Recorder
	MQ       mq.ClientInterface
	Metrics  *metrics.IngestMetrics // Optional
	// ReadyTimeout bounds the wait for the queue connection in Start.
	ReadyTimeout time.Duration
}

// Consumer reads sensor readings and predictions from the queue and appends them to the
// store. Malformed or invalid messages are acknowledged and dropped; store failures are
// requeued.
type Consumer struct {
	logger       *slog.Logger
	recorder     Recorder
	mqClient     mq.ClientInterface
	metrics      *metrics.IngestMetrics
	readyTimeout time.Duration
	done         chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once
	mu           sync.Mutex
	started      bool
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Recorder == nil {
		return nil, errors.New("recorder cannot be nil")
	}

	if cfg.MQ == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}

	return &Consumer{
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		mqClient:     cfg.MQ,
		metrics:      cfg.Metrics,
		readyTimeout: timeout,
		done:         make(chan struct{}),
		stop:         make(chan struct{}),
	}, nil
}

// Start waits for the queue connection and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer")

	if err := c.waitReady(ctx); err != nil {
		return err
	}

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.mu.Lock()
	if !c.started {
		c.started = true
		if c.metrics != nil {
			c.metrics.ActiveConsumers.Inc()
		}
		go c.processMessages(ctx, deliveries)
	}
	c.mu.Unlock()

	c.logger.Info("consumer started, waiting for messages")
	return nil
}

func (c *Consumer) waitReady(ctx context.Context) error {
	if c.mqClient.Ready() {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(c.readyTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return errStopped
		case <-deadline:
			return fmt.Errorf("mq client not ready after %s", c.readyTimeout)
		case <-ticker.C:
			if c.mqClient.Ready() {
				return nil
			}
		}
	}
}

func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	defer func() {
		if c.metrics != nil {
			c.metrics.ActiveConsumers.Dec()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			return

		case <-c.stop:
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed, resubscribing")
				if deliveries, ok = c.resubscribe(ctx); !ok {
					return
				}
				continue
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// resubscribe waits for the client to reconnect and consumes again. It returns false once
// ctx is canceled or the consumer is stopped.
func (c *Consumer) resubscribe(ctx context.Context) (<-chan amqp.Delivery, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-c.stop:
			return nil, false
		default:
		}

		if err := c.waitReady(ctx); err != nil {
			c.logger.Warn("mq client still not ready", "error", err)
		} else if deliveries, err := c.mqClient.Consume(); err != nil {
			c.logger.Warn("failed to resume consuming", "error", err)
		} else {
			c.logger.Info("consumer resubscribed")
			return deliveries, true
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-c.stop:
			return nil, false
		case <-time.After(resubscribeDelay):
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()
	msgType := delivery.Type

	err := c.store(ctx, delivery)

	if c.metrics != nil {
		c.metrics.ProcessingDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
		c.metrics.MessagesTotal.WithLabelValues(msgType, metrics.StatusLabel(err)).Inc()
	}

	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	errType := classify(err)
	if c.metrics != nil {
		c.metrics.MessageErrors.WithLabelValues(msgType, errType).Inc()
	}

	if errType == "store" {
		c.logger.Error("failed to store message, requeueing",
			"type", msgType,
			"message_id", delivery.MessageId,
			"error", err,
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	// Redelivering a message that cannot be parsed or validated would fail again.
	c.logger.Warn("dropping message",
		"type", msgType,
		"message_id", delivery.MessageId,
		"error_type", errType,
		"error", err,
	)
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack message", "error", ackErr)
	}
}

var (
	errStopped     = errors.New("consumer stopped")
	errUnknownType = errors.New("unsupported message type")
	errDecode      = errors.New("malformed message body")
)

func (c *Consumer) store(ctx context.Context, delivery amqp.Delivery) error {
	kind, err := domain.ParseKind(delivery.Type)
	if err != nil {
		return fmt.Errorf("%w: %q", errUnknownType, delivery.Type)
	}

	switch kind {
	case domain.KindSensor:
		var reading domain.SensorReading
		if err := decode(delivery.Body, &reading); err != nil {
			return err
		}
		stored, err := c.recorder.AppendSensorReading(ctx, reading)
		if err != nil {
			return err
		}
		c.logger.Debug("sensor reading stored", "id", stored.ID, "zone", stored.Location.Zone)
		return nil

	case domain.KindPrediction:
		var prediction domain.Prediction
		if err := decode(delivery.Body, &prediction); err != nil {
			return err
		}
		stored, err := c.recorder.AppendPrediction(ctx, prediction)
		if err != nil {
			return err
		}
		c.logger.Debug("prediction stored", "id", stored.ID, "disease", stored.DiseaseName)
		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownType, delivery.Type)
	}
}

func decode(body []byte, v any) error {
	if err := wire.Decode(body, v); err != nil {
		if domain.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, errUnknownType):
		return "unknown_type"
	case errors.Is(err, errDecode):
		return "decode"
	case domain.IsValidation(err):
		return "validation"
	default:
		return "store"
	}
}

// Stop closes the queue client and waits for in-flight processing to finish.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	c.stopOnce.Do(func() { close(c.stop) })

	var closeErr error
	if err := c.mqClient.Close(); err != nil {
		closeErr = fmt.Errorf("failed to close mq client: %w", err)
	}

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}

	if closeErr != nil {
		return closeErr
	}
	c.logger.Info("consumer stopped")
	return nil
}
