// Package history merges the prediction, sensor and spray streams into one newest-first
// feed.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// Defaults for the two read modes.
const (
	DefaultPerKind = 20
	DefaultLimit   = 50
)

// Source reads the newest records of each kind. *store.Gateway implements it.
type Source interface {
	LatestPredictions(ctx context.Context, n int) ([]domain.Prediction, error)
	LatestSensorReadings(ctx context.Context, n int) ([]domain.SensorReading, error)
	LatestSprayLogs(ctx context.Context, n int) ([]domain.SprayLog, error)
}

// AggregatorConfig holds the configuration for the Aggregator.
type AggregatorConfig struct {
	Logger  *slog.Logger
	Source  Source
	Metrics *metrics.CoreMetrics // Optional
	// FetchTimeout bounds the whole fan-out; zero leaves it to the caller's context.
	FetchTimeout time.Duration
}

// Aggregator builds the merged history feed.
type Aggregator struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.CoreMetrics
	timeout time.Duration
}

// NewAggregator creates a new Aggregator.
func NewAggregator(cfg *AggregatorConfig) (*Aggregator, error) {
	if cfg == nil {
		return nil, errors.New("aggregator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	return &Aggregator{
		source:  cfg.Source,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		timeout: cfg.FetchTimeout,
	}, nil
}

// Aggregate fetches up to perKind records of every kind concurrently and merges them
// newest first. The result is not truncated, so it holds up to 3*perKind entries. If any
// fetch fails the whole call fails and the remaining fetches are canceled.
func (a *Aggregator) Aggregate(ctx context.Context, perKind int) (entries []domain.HistoryEntry, err error) {
	if perKind <= 0 {
		perKind = DefaultPerKind
	}

	start := time.Now()
	defer func() {
		if a.metrics == nil {
			return
		}
		a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
		a.metrics.AggregationsTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
		if err == nil {
			a.metrics.AggregatedEntries.Observe(float64(len(entries)))
		}
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var predictions, sensors, sprays []domain.HistoryEntry

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := a.source.LatestPredictions(gctx, perKind)
		if err != nil {
			return fmt.Errorf("failed to fetch predictions: %w", err)
		}
		predictions = tag(recs, domain.PredictionEntry)
		return nil
	})

	g.Go(func() error {
		recs, err := a.source.LatestSensorReadings(gctx, perKind)
		if err != nil {
			return fmt.Errorf("failed to fetch sensor readings: %w", err)
		}
		sensors = tag(recs, domain.SensorEntry)
		return nil
	})

	g.Go(func() error {
		recs, err := a.source.LatestSprayLogs(gctx, perKind)
		if err != nil {
			return fmt.Errorf("failed to fetch spray logs: %w", err)
		}
		sprays = tag(recs, domain.SprayEntry)
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("history aggregation failed", "per_kind", perKind, "error", err)
		return nil, err
	}

	entries = Merge(predictions, sensors, sprays)

	a.logger.Debug("history aggregated",
		"per_kind", perKind,
		"predictions", len(predictions),
		"sensors", len(sensors),
		"sprays", len(sprays),
	)

	return entries, nil
}

// AggregateKind returns up to limit entries of a single kind, newest first.
func (a *Aggregator) AggregateKind(ctx context.Context, kind domain.Kind, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	switch kind {
	case domain.KindPrediction:
		recs, err := a.source.LatestPredictions(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch predictions: %w", err)
		}
		return tag(recs, domain.PredictionEntry), nil
	case domain.KindSensor:
		recs, err := a.source.LatestSensorReadings(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch sensor readings: %w", err)
		}
		return tag(recs, domain.SensorEntry), nil
	case domain.KindSpray:
		recs, err := a.source.LatestSprayLogs(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch spray logs: %w", err)
		}
		return tag(recs, domain.SprayEntry), nil
	default:
		return nil, &domain.ValidationError{Field: "type", Reason: "must be one of predictions, sensors, sprays"}
	}
}

func tag[T any](recs []T, wrap func(T) domain.HistoryEntry) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(recs))
	for i, r := range recs {
		out[i] = wrap(r)
	}
	return out
}
