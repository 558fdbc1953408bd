// Package spray validates spray commands, hands them to an executor and records the outcome
// as a spray log.
package spray

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// ErrExecutionFailed wraps every error reported by an Executor.
var ErrExecutionFailed = errors.New("spray execution failed")

// Command asks a nozzle to spray. Duration and volume fall back to the defaults when zero.
type Command struct {
	TargetPlant     *domain.TargetPlant   `json:"targetPlant,omitempty"`
	Location        *domain.SprayLocation `json:"location,omitempty"`
	NozzleID        string                `json:"nozzleId"`
	DurationSeconds float64               `json:"duration,omitempty"`
	VolumeML        float64               `json:"volume,omitempty"`
	PesticideType   domain.PesticideType  `json:"pesticideType"`
	Mode            domain.SprayMode      `json:"mode"`
}

// Validate checks the nozzle id and enums and rejects negative duration or volume.
func (c *Command) Validate() error {
	if c.NozzleID == "" {
		return &domain.ValidationError{Field: "nozzleId", Reason: "is required"}
	}
	if !c.PesticideType.Valid() {
		return &domain.ValidationError{Field: "pesticideType", Reason: "is required"}
	}
	if !c.Mode.Valid() {
		return &domain.ValidationError{Field: "mode", Reason: "is required"}
	}
	if c.DurationSeconds < 0 {
		return &domain.ValidationError{Field: "duration", Reason: "must be greater than 0"}
	}
	if c.VolumeML < 0 {
		return &domain.ValidationError{Field: "volume", Reason: "must be greater than 0"}
	}
	return nil
}

func (c *Command) duration() float64 {
	if c.DurationSeconds > 0 {
		return c.DurationSeconds
	}
	return domain.DefaultSprayDurationSeconds
}

func (c *Command) volume() float64 {
	if c.VolumeML > 0 {
		return c.VolumeML
	}
	return domain.DefaultSprayVolumeML
}

// Recorder appends spray logs. *store.Gateway implements it.
type Recorder interface {
	AppendSprayLog(ctx context.Context, s domain.SprayLog) (domain.SprayLog, error)
}

// HandlerConfig holds the configuration for the Handler.
type HandlerConfig struct {
	Logger   *slog.Logger
	Recorder Recorder
	Executor Executor             // Optional, defaults to SimulatedExecutor
	Metrics  *metrics.CoreMetrics // Optional
}

// Handler executes spray commands and records them.
type Handler struct {
	recorder Recorder
	executor Executor
	logger   *slog.Logger
	metrics  *metrics.CoreMetrics
}

// NewHandler creates a new Handler.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg == nil {
		return nil, errors.New("handler config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Recorder == nil {
		return nil, errors.New("recorder cannot be nil")
	}

	executor := cfg.Executor
	if executor == nil {
		executor = &SimulatedExecutor{}
	}

	return &Handler{
		recorder: cfg.Recorder,
		executor: executor,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Execute validates cmd, runs it on the executor and appends the resulting spray log.
// When the executor fails a log with status failed is still appended and the returned error
// wraps ErrExecutionFailed.
func (h *Handler) Execute(ctx context.Context, cmd Command) (domain.SprayLog, error) {
	if err := cmd.Validate(); err != nil {
		return domain.SprayLog{}, err
	}

	entry := domain.SprayLog{
		NozzleID:        cmd.NozzleID,
		PesticideType:   cmd.PesticideType,
		Mode:            cmd.Mode,
		DurationSeconds: cmd.duration(),
		VolumeML:        cmd.volume(),
		TargetPlant:     cmd.TargetPlant,
		Location:        cmd.Location,
	}

	result, execErr := h.executor.Run(ctx, cmd)
	if execErr != nil {
		entry.Status = domain.SprayStatusFailed
	} else {
		entry.Status = result.Status
		if result.DurationSeconds > 0 {
			entry.DurationSeconds = result.DurationSeconds
		}
		if result.VolumeML > 0 {
			entry.VolumeML = result.VolumeML
		}
	}

	stored, err := h.recorder.AppendSprayLog(ctx, entry)
	h.observe(cmd, entry.Status, errors.Join(execErr, err))

	if execErr != nil {
		h.logger.Error("spray execution failed",
			"nozzle_id", cmd.NozzleID,
			"pesticide_type", cmd.PesticideType.String(),
			"mode", cmd.Mode.String(),
			"error", execErr,
		)
		wrapped := fmt.Errorf("%w: nozzle %s: %w", ErrExecutionFailed, cmd.NozzleID, execErr)
		if err != nil {
			return domain.SprayLog{}, errors.Join(wrapped, fmt.Errorf("failed to record failed spray: %w", err))
		}
		return stored, wrapped
	}

	if err != nil {
		return domain.SprayLog{}, fmt.Errorf("failed to record spray: %w", err)
	}

	h.logger.Info("spray executed",
		"id", stored.ID,
		"nozzle_id", stored.NozzleID,
		"pesticide_type", stored.PesticideType.String(),
		"mode", stored.Mode.String(),
		"duration_seconds", stored.DurationSeconds,
		"volume_ml", stored.VolumeML,
	)

	return stored, nil
}

func (h *Handler) observe(cmd Command, status domain.SprayStatus, err error) {
	if h.metrics == nil {
		return
	}

	label := status.String()
	if err != nil && status != domain.SprayStatusFailed {
		label = "error"
	}
	h.metrics.SpraysTotal.WithLabelValues(cmd.Mode.String(), cmd.PesticideType.String(), label).Inc()
}
