package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/internal/store"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// Sprayer executes spray commands. *spray.Handler implements it.
type Sprayer interface {
	Execute(ctx context.Context, cmd spray.Command) (domain.SprayLog, error)
}

// SprayHistory looks up earlier sprays. *store.Gateway implements it.
type SprayHistory interface {
	QuerySprayLogs(ctx context.Context, q store.Query) ([]domain.SprayLog, error)
}

// Act runs rec on nozzleID in auto mode. It returns a nil log when rec does not call for
// spraying.
func Act(ctx context.Context, sprayer Sprayer, rec Recommendation, nozzleID string) (*domain.SprayLog, error) {
	if !rec.ShouldSpray {
		return nil, nil
	}

	log, err := sprayer.Execute(ctx, spray.Command{
		NozzleID:      nozzleID,
		PesticideType: rec.RecommendedPesticide,
		Mode:          domain.SprayModeAuto,
		TargetPlant:   rec.TargetPlant,
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// Autopilot outcomes, also used as metric label values.
const (
	OutcomeSprayed  = "sprayed"
	OutcomeSkipped  = "skipped"
	OutcomeCooldown = "cooldown"
	OutcomeError    = "error"
)

// AutopilotConfig holds the configuration for the Autopilot.
type AutopilotConfig struct {
	Logger   *slog.Logger
	Advisor  *Advisor
	Sprayer  Sprayer
	History  SprayHistory
	Metrics  *metrics.CoreMetrics // Optional
	Clock    func() time.Time     // Optional, defaults to time.Now
	NozzleID string
	Interval time.Duration
	Cooldown time.Duration
}

// Autopilot periodically evaluates the field and sprays in auto mode when the
// recommendation calls for it and the nozzle has not sprayed within the cooldown.
type Autopilot struct {
	advisor  *Advisor
	sprayer  Sprayer
	history  SprayHistory
	logger   *slog.Logger
	metrics  *metrics.CoreMetrics
	clock    func() time.Time
	nozzleID string
	interval time.Duration
	cooldown time.Duration
}

var (
	errAdvisorRequired  = errors.New("advisor is required")
	errSprayerRequired  = errors.New("sprayer is required")
	errHistoryRequired  = errors.New("spray history is required")
	errNozzleRequired   = errors.New("nozzle id is required")
	errInvalidInterval  = errors.New("interval must be greater than 0")
	errNegativeCooldown = errors.New("cooldown cannot be negative")
)

// NewAutopilot creates a new Autopilot.
func NewAutopilot(cfg *AutopilotConfig) (*Autopilot, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("autopilot config cannot be nil")
	case cfg.Logger == nil:
		return nil, errors.New("logger cannot be nil")
	case cfg.Advisor == nil:
		return nil, errAdvisorRequired
	case cfg.Sprayer == nil:
		return nil, errSprayerRequired
	case cfg.History == nil:
		return nil, errHistoryRequired
	case cfg.NozzleID == "":
		return nil, errNozzleRequired
	case cfg.Interval <= 0:
		return nil, errInvalidInterval
	case cfg.Cooldown < 0:
		return nil, errNegativeCooldown
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Autopilot{
		advisor:  cfg.Advisor,
		sprayer:  cfg.Sprayer,
		history:  cfg.History,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		clock:    clock,
		nozzleID: cfg.NozzleID,
		interval: cfg.Interval,
		cooldown: cfg.Cooldown,
	}, nil
}

// Run evaluates on every tick until ctx is done. Failed evaluations are logged and the loop
// continues.
func (a *Autopilot) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("autopilot started",
		"nozzle_id", a.nozzleID,
		"interval", a.interval,
		"cooldown", a.cooldown,
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("autopilot shutting down")
			return nil

		case <-ticker.C:
			if _, err := a.Tick(ctx); err != nil {
				a.logger.Error("autopilot evaluation failed", "error", err)
				continue
			}
		}
	}
}

// Tick performs a single evaluation and reports its outcome.
func (a *Autopilot) Tick(ctx context.Context) (outcome string, err error) {
	defer func() {
		if err != nil {
			outcome = OutcomeError
		}
		if a.metrics != nil {
			a.metrics.AutopilotRuns.WithLabelValues(outcome).Inc()
		}
	}()

	snap, err := a.advisor.Recommend(ctx)
	if err != nil {
		return OutcomeError, err
	}

	if !snap.Recommendation.ShouldSpray {
		a.logger.Debug("autopilot idle", "reason", snap.Recommendation.Reason)
		return OutcomeSkipped, nil
	}

	if a.cooldown > 0 {
		recent, err := a.history.QuerySprayLogs(ctx, store.Query{
			NozzleID: a.nozzleID,
			Since:    a.clock().Add(-a.cooldown),
			Limit:    1,
		})
		if err != nil {
			return OutcomeError, fmt.Errorf("failed to read recent sprays: %w", err)
		}
		if len(recent) > 0 {
			a.logger.Debug("autopilot in cooldown",
				"nozzle_id", a.nozzleID,
				"last_spray", recent[0].Timestamp,
			)
			return OutcomeCooldown, nil
		}
	}

	log, err := Act(ctx, a.sprayer, snap.Recommendation, a.nozzleID)
	if err != nil {
		return OutcomeError, fmt.Errorf("failed to execute recommendation: %w", err)
	}

	a.logger.Info("autopilot sprayed",
		"nozzle_id", a.nozzleID,
		"spray_id", log.ID,
		"reason", snap.Recommendation.Reason,
	)
	return OutcomeSprayed, nil
}
