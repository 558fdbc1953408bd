package spray

import (
	"context"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// Result is what an executor reports back for one command.
type Result struct {
	Status          domain.SprayStatus
	DurationSeconds float64
	VolumeML        float64
}

// Executor drives the spraying hardware.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// SimulatedExecutor stands in for real nozzles. It always reports completion with the
// requested duration and volume, so the recorded log reflects intent rather than a
// verified physical outcome.
type SimulatedExecutor struct{}

var _ Executor = (*SimulatedExecutor)(nil)

// Run reports the command as completed unless ctx is already done.
func (*SimulatedExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{
		Status:          domain.SprayStatusCompleted,
		DurationSeconds: cmd.duration(),
		VolumeML:        cmd.volume(),
	}, nil
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd Command) (Result, error)

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}
