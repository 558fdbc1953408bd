// Package store provides the data store gateway for sensor readings, disease predictions and
// spray logs, with an in-memory backend and a gorm-backed SQL backend.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// Supported values for Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Query filters a read. Fields that do not apply to the queried kind are ignored:
// NozzleID only filters spray logs and MinSeverity only filters predictions.
// A Limit of zero or less returns every match.
type Query struct {
	Since       time.Time
	Zone        string
	NozzleID    string
	MinSeverity domain.Severity
	Limit       int
}

// Backend persists records. Results are ordered newest first with ties broken by id
// descending.
type Backend interface {
	InsertSensorReading(ctx context.Context, r *domain.SensorReading) error
	InsertPrediction(ctx context.Context, p *domain.Prediction) error
	InsertSprayLog(ctx context.Context, s *domain.SprayLog) error
	SensorReadings(ctx context.Context, q Query) ([]domain.SensorReading, error)
	Predictions(ctx context.Context, q Query) ([]domain.Prediction, error)
	SprayLogs(ctx context.Context, q Query) ([]domain.SprayLog, error)
	Clear(ctx context.Context, kind domain.Kind) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Logger *slog.Logger
	Driver string
	DSN    string
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg *Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}

	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverPostgres, DriverMySQL, DriverSQLite:
		return NewSQL(ctx, &SQLConfig{
			Logger: cfg.Logger,
			Driver: cfg.Driver,
			DSN:    cfg.DSN,
		})
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
