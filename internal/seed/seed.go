// Package seed fills a store with sample field data for demos and local development.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/generator"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Default record counts written by a seed run. The fixtures are cycled to reach them.
const (
	DefaultPredictions = 20
	DefaultSensors     = 15
	DefaultSprays      = 10
)

// Fixtures is the set of sample records a seed run cycles through.
type Fixtures struct {
	Predictions []domain.Prediction    `yaml:"predictions"`
	Sensors     []domain.SensorReading `yaml:"sensors"`
	Sprays      []domain.SprayLog      `yaml:"sprays"`
}

// LoadFixtures parses the embedded sample data.
func LoadFixtures() (*Fixtures, error) {
	return ParseFixtures(fixturesYAML)
}

// ParseFixtures parses fixtures from YAML and validates every record.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	for i := range f.Predictions {
		if err := f.Predictions[i].Validate(); err != nil {
			return nil, fmt.Errorf("prediction fixture %d: %w", i, err)
		}
	}
	for i := range f.Sensors {
		if err := f.Sensors[i].Validate(); err != nil {
			return nil, fmt.Errorf("sensor fixture %d: %w", i, err)
		}
	}
	for i := range f.Sprays {
		if err := f.Sprays[i].Validate(); err != nil {
			return nil, fmt.Errorf("spray fixture %d: %w", i, err)
		}
	}
	return &f, nil
}

// Store is the write side of the record store. *store.Gateway implements it.
type Store interface {
	AppendSensorReading(ctx context.Context, r domain.SensorReading) (domain.SensorReading, error)
	AppendPrediction(ctx context.Context, p domain.Prediction) (domain.Prediction, error)
	AppendSprayLog(ctx context.Context, s domain.SprayLog) (domain.SprayLog, error)
	Clear(ctx context.Context, kind domain.Kind) error
}

// SeederConfig holds the configuration for the Seeder.
type SeederConfig struct {
	Logger   *slog.Logger
	Store    Store
	Fixtures *Fixtures // Optional, defaults to the embedded fixtures
}

// Options controls a single seed run.
type Options struct {
	// Clear removes all existing records before seeding.
	Clear       bool
	Predictions int
	Sensors     int
	Sprays      int
	// Stations adds one generated reading and prediction per simulated station on top of
	// the fixtures.
	Stations int
}

// DefaultOptions returns the record counts used by the seed command.
func DefaultOptions() Options {
	return Options{
		Clear:       true,
		Predictions: DefaultPredictions,
		Sensors:     DefaultSensors,
		Sprays:      DefaultSprays,
	}
}

// Result reports how many records a run wrote.
type Result struct {
	Predictions int
	Sensors     int
	Sprays      int
}

// Seeder writes sample records through the store.
type Seeder struct {
	logger   *slog.Logger
	store    Store
	fixtures *Fixtures
}

// NewSeeder creates a new Seeder.
func NewSeeder(cfg *SeederConfig) (*Seeder, error) {
	if cfg == nil {
		return nil, errors.New("seeder config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	fixtures := cfg.Fixtures
	if fixtures == nil {
		var err error
		if fixtures, err = LoadFixtures(); err != nil {
			return nil, err
		}
	}

	return &Seeder{
		logger:   cfg.Logger,
		store:    cfg.Store,
		fixtures: fixtures,
	}, nil
}

// Run seeds the store. It stops at the first failed write and returns what was written
// so far.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	if opts.Clear {
		for _, kind := range domain.AllKinds {
			if err := s.store.Clear(ctx, kind); err != nil {
				return res, fmt.Errorf("failed to clear %s records: %w", kind, err)
			}
		}
		s.logger.Info("cleared existing records")
	}

	if err := cycle(ctx, s.fixtures.Predictions, opts.Predictions, func(p domain.Prediction) error {
		_, err := s.store.AppendPrediction(ctx, p)
		return err
	}, &res.Predictions); err != nil {
		return res, fmt.Errorf("failed to seed predictions: %w", err)
	}

	if err := cycle(ctx, s.fixtures.Sensors, opts.Sensors, func(r domain.SensorReading) error {
		_, err := s.store.AppendSensorReading(ctx, r)
		return err
	}, &res.Sensors); err != nil {
		return res, fmt.Errorf("failed to seed sensor readings: %w", err)
	}

	if err := cycle(ctx, s.fixtures.Sprays, opts.Sprays, func(l domain.SprayLog) error {
		_, err := s.store.AppendSprayLog(ctx, l)
		return err
	}, &res.Sprays); err != nil {
		return res, fmt.Errorf("failed to seed spray logs: %w", err)
	}

	for i := 0; i < opts.Stations; i++ {
		gen := generator.NewFieldGenerator(generator.NewFieldStation())
		if _, err := s.store.AppendSensorReading(ctx, gen.GenerateReading(time.Now())); err != nil {
			return res, fmt.Errorf("failed to seed station reading: %w", err)
		}
		res.Sensors++
		if _, err := s.store.AppendPrediction(ctx, gen.GeneratePrediction()); err != nil {
			return res, fmt.Errorf("failed to seed station prediction: %w", err)
		}
		res.Predictions++
	}

	s.logger.Info("seed complete",
		"predictions", res.Predictions,
		"sensors", res.Sensors,
		"sprays", res.Sprays,
	)
	return res, nil
}

func cycle[T any](ctx context.Context, samples []T, n int, write func(T) error, written *int) error {
	if len(samples) == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := write(samples[i%len(samples)]); err != nil {
			return err
		}
		*written++
	}
	return nil
}
