// Package poller simulates the field hardware: a set of stations is polled on an interval
// and every reading, plus the occasional disease prediction, is published to the queue.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/generator"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
	"github.com/Smehapavi/AgriNex/pkg/mq"
	"github.com/Smehapavi/AgriNex/pkg/wire"
)

// Config holds the configuration for the Poller.
type Config struct {
	Logger    *slog.Logger
	Publisher mq.Publisher
	Metrics   *metrics.PollerMetrics // Optional
	// Stations is the number of simulated field stations.
	Stations int
	// Interval is the time between polls.
	Interval time.Duration
	// PredictionRate is the chance, per station and poll, that a prediction is published
	// alongside the reading.
	PredictionRate float64
}

// Poller publishes simulated station data.
type Poller struct {
	logger         *slog.Logger
	publisher      mq.Publisher
	metrics        *metrics.PollerMetrics
	stations       []*generator.FieldDataGenerator
	interval       time.Duration
	predictionRate float64
	mu             sync.Mutex
}

var (
	errInvalidStationCount = errors.New("station count must be greater than 0")
	errInvalidInterval     = errors.New("interval must be greater than 0")
	errInvalidRate         = errors.New("prediction rate must be between 0 and 1")
)

// New creates a Poller with cfg.Stations freshly generated stations.
func New(cfg *Config) (*Poller, error) {
	if cfg == nil {
		return nil, errors.New("poller config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}

	if cfg.Stations <= 0 {
		return nil, errInvalidStationCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.PredictionRate < 0 || cfg.PredictionRate > 1 {
		return nil, errInvalidRate
	}

	p := &Poller{
		logger:         cfg.Logger,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		stations:       make([]*generator.FieldDataGenerator, 0, cfg.Stations),
		interval:       cfg.Interval,
		predictionRate: cfg.PredictionRate,
	}

	for i := 0; i < cfg.Stations; i++ {
		station := generator.NewFieldStation()
		if station == nil {
			return nil, fmt.Errorf("failed to generate station %d", i)
		}
		p.stations = append(p.stations, generator.NewFieldGenerator(station))

		p.logger.Info("created field station",
			"station_id", station.StationID,
			"zone", station.Zone,
		)
	}

	if p.metrics != nil {
		p.metrics.ActiveStations.Set(float64(len(p.stations)))
	}

	return p, nil
}

// Stations returns the simulated stations.
func (p *Poller) Stations() []*generator.FieldStation {
	out := make([]*generator.FieldStation, len(p.stations))
	for i, g := range p.stations {
		out[i] = g.Station()
	}
	return out
}

// Run polls on the configured interval until ctx is canceled. A failed poll is logged and
// the loop continues.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("poller started",
		"stations", len(p.stations),
		"interval", p.interval,
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shutting down")
			return nil

		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
				continue
			}
			p.logger.Debug("poll published")
		}
	}
}

// Poll publishes one reading per station and, with the configured probability, one
// prediction. Every station is attempted; the returned error joins all failures.
func (p *Poller) Poll(ctx context.Context) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.PollDuration)
		defer timer.ObserveDuration()
	}

	// Generators keep per-station state.
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	now := time.Now().UTC()
	for _, g := range p.stations {
		if err := p.publish(ctx, domain.KindSensor, g.GenerateReading(now)); err != nil {
			errs = append(errs, err)
		}

		if p.predictionRate > 0 && rand.Float64() < p.predictionRate { // #nosec G404 - simulation only
			if err := p.publish(ctx, domain.KindPrediction, g.GeneratePrediction()); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (p *Poller) publish(ctx context.Context, kind domain.Kind, record any) error {
	msgType := kind.String()

	body, err := wire.Encode(record)
	if err != nil {
		p.failed(msgType, "marshal_error")
		return fmt.Errorf("failed to encode %s: %w", msgType, err)
	}

	if err := p.publisher.Push(ctx, msgType, body); err != nil {
		p.failed(msgType, "push_error")
		return fmt.Errorf("failed to publish %s: %w", msgType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordsPublished.WithLabelValues(msgType).Inc()
	}
	return nil
}

func (p *Poller) failed(msgType, reason string) {
	if p.metrics != nil {
		p.metrics.PublishFailures.WithLabelValues(msgType, reason).Inc()
	}
}
