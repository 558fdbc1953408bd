package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// DefaultPredictionWindow is how many recent predictions feed one evaluation.
const DefaultPredictionWindow = 10

// Source provides the snapshot inputs. *store.Gateway implements it.
type Source interface {
	LatestSensorReading(ctx context.Context) (*domain.SensorReading, error)
	LatestPredictions(ctx context.Context, n int) ([]domain.Prediction, error)
}

// Snapshot is the set of inputs of one evaluation together with its result.
type Snapshot struct {
	EvaluatedAt    time.Time             `json:"evaluatedAt"`
	Sensor         *domain.SensorReading `json:"sensor"`
	Predictions    []domain.Prediction   `json:"predictions"`
	Recommendation Recommendation        `json:"recommendation"`
}

// AdvisorConfig holds the configuration for the Advisor.
type AdvisorConfig struct {
	Logger           *slog.Logger
	Source           Source
	Metrics          *metrics.CoreMetrics // Optional
	PredictionWindow int                  // Defaults to DefaultPredictionWindow
}

// Advisor evaluates a freshly read snapshot on every call.
type Advisor struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.CoreMetrics
	window  int
}

// NewAdvisor creates a new Advisor.
func NewAdvisor(cfg *AdvisorConfig) (*Advisor, error) {
	if cfg == nil {
		return nil, errors.New("advisor config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	window := cfg.PredictionWindow
	if window <= 0 {
		window = DefaultPredictionWindow
	}

	return &Advisor{
		source:  cfg.Source,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		window:  window,
	}, nil
}

// Recommend reads the latest sensor reading and the newest predictions and evaluates them.
func (a *Advisor) Recommend(ctx context.Context) (Snapshot, error) {
	sensor, err := a.source.LatestSensorReading(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read sensor snapshot: %w", err)
	}

	predictions, err := a.source.LatestPredictions(ctx, a.window)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read recent predictions: %w", err)
	}

	rec := Evaluate(sensor, predictions)

	if a.metrics != nil {
		a.metrics.RecommendationsTotal.WithLabelValues(strconv.FormatBool(rec.ShouldSpray), rec.Urgency.String()).Inc()
	}

	a.logger.Debug("recommendation evaluated",
		"should_spray", rec.ShouldSpray,
		"urgency", rec.Urgency.String(),
		"reason", rec.Reason,
		"prediction_count", len(predictions),
		"has_sensor", sensor != nil,
	)

	return Snapshot{
		EvaluatedAt:    time.Now().UTC(),
		Sensor:         sensor,
		Predictions:    predictions,
		Recommendation: rec,
	}, nil
}
