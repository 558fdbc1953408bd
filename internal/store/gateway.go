package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// GatewayConfig holds the configuration for the Gateway.
type GatewayConfig struct {
	Logger  *slog.Logger
	Backend Backend
	Metrics *metrics.StoreMetrics // Optional
	// Clock overrides time.Now; used by tests.
	Clock func() time.Time
}

// Gateway is the single entry point for record persistence. It validates every record,
// assigns its id and timestamp, and delegates storage to a Backend.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.StoreMetrics
	clock   func() time.Time
	last    time.Time
	mu      sync.Mutex
}

// NewGateway creates a new Gateway.
func NewGateway(cfg *GatewayConfig) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("gateway config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Gateway{
		backend: cfg.Backend,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clock:   clock,
	}, nil
}

// stamp returns a fresh id and a timestamp strictly later than any previously issued by
// this gateway. Timestamps are truncated to microseconds so that they survive a round
// trip through PostgreSQL unchanged.
func (g *Gateway) stamp() (string, time.Time, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate record id: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC().Truncate(time.Microsecond)
	if !now.After(g.last) {
		now = g.last.Add(time.Microsecond)
	}
	g.last = now

	return id.String(), now, nil
}

// AppendSensorReading validates r, assigns its id and timestamp and stores it.
func (g *Gateway) AppendSensorReading(ctx context.Context, r domain.SensorReading) (out domain.SensorReading, err error) {
	defer g.track("append", domain.KindSensor)(&err)

	if err := g.validate(domain.KindSensor, r.Validate()); err != nil {
		return domain.SensorReading{}, err
	}

	if r.ID, r.Timestamp, err = g.stamp(); err != nil {
		return domain.SensorReading{}, err
	}

	if err := g.backend.InsertSensorReading(ctx, &r); err != nil {
		return domain.SensorReading{}, err
	}

	g.logger.Debug("sensor reading stored", "id", r.ID, "zone", r.Location.Zone)
	return r, nil
}

// AppendPrediction validates p, assigns its id and timestamp and stores it.
func (g *Gateway) AppendPrediction(ctx context.Context, p domain.Prediction) (out domain.Prediction, err error) {
	defer g.track("append", domain.KindPrediction)(&err)

	if err := g.validate(domain.KindPrediction, p.Validate()); err != nil {
		return domain.Prediction{}, err
	}

	if p.ID, p.Timestamp, err = g.stamp(); err != nil {
		return domain.Prediction{}, err
	}

	if err := g.backend.InsertPrediction(ctx, &p); err != nil {
		return domain.Prediction{}, err
	}

	g.logger.Debug("prediction stored", "id", p.ID, "disease", p.DiseaseName, "severity", p.Severity.String())
	return p, nil
}

// AppendSprayLog applies the spray defaults, validates s, assigns its id and timestamp and
// stores it.
func (g *Gateway) AppendSprayLog(ctx context.Context, s domain.SprayLog) (out domain.SprayLog, err error) {
	defer g.track("append", domain.KindSpray)(&err)

	s.ApplyDefaults()
	if err := g.validate(domain.KindSpray, s.Validate()); err != nil {
		return domain.SprayLog{}, err
	}

	if s.ID, s.Timestamp, err = g.stamp(); err != nil {
		return domain.SprayLog{}, err
	}

	if err := g.backend.InsertSprayLog(ctx, &s); err != nil {
		return domain.SprayLog{}, err
	}

	g.logger.Debug("spray log stored", "id", s.ID, "nozzle_id", s.NozzleID, "status", s.Status.String())
	return s, nil
}

// LatestSensorReadings returns up to n readings, newest first.
func (g *Gateway) LatestSensorReadings(ctx context.Context, n int) ([]domain.SensorReading, error) {
	if n <= 0 {
		return []domain.SensorReading{}, nil
	}
	return g.QuerySensorReadings(ctx, Query{Limit: n})
}

// LatestPredictions returns up to n predictions, newest first.
func (g *Gateway) LatestPredictions(ctx context.Context, n int) ([]domain.Prediction, error) {
	if n <= 0 {
		return []domain.Prediction{}, nil
	}
	return g.QueryPredictions(ctx, Query{Limit: n})
}

// LatestSprayLogs returns up to n spray logs, newest first.
func (g *Gateway) LatestSprayLogs(ctx context.Context, n int) ([]domain.SprayLog, error) {
	if n <= 0 {
		return []domain.SprayLog{}, nil
	}
	return g.QuerySprayLogs(ctx, Query{Limit: n})
}

// LatestSensorReading returns the current sensor snapshot, or nil when none was recorded.
func (g *Gateway) LatestSensorReading(ctx context.Context) (*domain.SensorReading, error) {
	readings, err := g.LatestSensorReadings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// QuerySensorReadings returns readings matching q, newest first.
func (g *Gateway) QuerySensorReadings(ctx context.Context, q Query) (out []domain.SensorReading, err error) {
	defer g.track("query", domain.KindSensor)(&err)
	return g.backend.SensorReadings(ctx, q)
}

// QueryPredictions returns predictions matching q, newest first.
func (g *Gateway) QueryPredictions(ctx context.Context, q Query) (out []domain.Prediction, err error) {
	defer g.track("query", domain.KindPrediction)(&err)
	return g.backend.Predictions(ctx, q)
}

// QuerySprayLogs returns spray logs matching q, newest first.
func (g *Gateway) QuerySprayLogs(ctx context.Context, q Query) (out []domain.SprayLog, err error) {
	defer g.track("query", domain.KindSpray)(&err)
	return g.backend.SprayLogs(ctx, q)
}

// Clear deletes every record of one kind. It exists for maintenance and tests.
func (g *Gateway) Clear(ctx context.Context, kind domain.Kind) (err error) {
	defer g.track("clear", kind)(&err)

	if err := g.backend.Clear(ctx, kind); err != nil {
		return err
	}

	g.logger.Info("records cleared", "kind", kind.String())
	return nil
}

// Ping checks that the backend is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.backend.Ping(ctx)
}

// Close releases the backend.
func (g *Gateway) Close() error {
	return g.backend.Close()
}

func (g *Gateway) validate(kind domain.Kind, err error) error {
	if err == nil {
		return nil
	}

	var ve *domain.ValidationError
	if g.metrics != nil && errors.As(err, &ve) {
		g.metrics.ValidationErrors.WithLabelValues(kind.String(), ve.Field).Inc()
	}

	g.logger.Debug("record rejected", "kind", kind.String(), "error", err)
	return err
}

// track records the duration and outcome of one operation. The returned function must be
// deferred with a pointer to the operation's named error result.
func (g *Gateway) track(op string, kind domain.Kind) func(*error) {
	start := time.Now()
	return func(errp *error) {
		if g.metrics == nil {
			return
		}

		g.metrics.OperationDuration.WithLabelValues(op, kind.String()).Observe(time.Since(start).Seconds())
		g.metrics.OperationsTotal.WithLabelValues(op, kind.String(), metrics.StatusLabel(*errp)).Inc()

		if op == "append" && *errp == nil {
			g.metrics.RecordsAppended.WithLabelValues(kind.String()).Inc()
		}
	}
}
