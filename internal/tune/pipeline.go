package tune

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beamphys/beamtune/internal/opt"
	"github.com/beamphys/beamtune/internal/sim"
)

// Result holds the output of a tuning run
type Result struct {
	Goal         Goal                  `json:"goal"`
	Active       []int                 `json:"active"`
	BestSettings [sim.NumQuads]float64 `json:"bestSettings"`
	BestVector   []float64             `json:"bestVector"`
	BestValue    float64               `json:"bestValue"`
	InitialValue float64               `json:"initialValue"`
	Evaluations  int                   `json:"evaluations"`
}

// EvalObserver is called after every successful objective evaluation. Used
// for trace persistence and progress reporting; may be nil.
type EvalObserver func(eval int, candidate []float64, value float64)

// Run tunes the active quads against the goal. It evaluates the nominal
// settings first for the initial objective value, then hands the objective
// and the per-quad bounds to the optimizer.
func Run(ctx context.Context, exp *Experiment, goal Goal, active []int, optimizer opt.Optimizer, obs EvalObserver) (*Result, error) {
	active, err := normalizeActive(active)
	if err != nil {
		return nil, err
	}

	objective, err := exp.Objective(ctx, goal, active)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting tuning run",
		"goal", goal,
		"active_quads", len(active),
		"particles", exp.Particles,
		"rigidity", exp.Params.Rigidity,
	)

	initial := make([]float64, len(active))
	for i, idx := range active {
		initial[i] = exp.Nominal[idx]
	}
	initialValue, err := objective(initial)
	if err != nil {
		return nil, fmt.Errorf("nominal settings failed to evaluate: %w", err)
	}

	evals := 1
	wrapped := func(candidate []float64) (float64, error) {
		value, err := objective(candidate)
		if err != nil {
			return 0, err
		}
		evals++
		if obs != nil {
			obs(evals, candidate, value)
		}
		return value, nil
	}

	lower := make([]float64, len(active))
	upper := make([]float64, len(active))
	for i := range active {
		lower[i] = exp.LowerBound
		upper[i] = exp.UpperBound
	}

	bestVector, bestValue, err := optimizer.Run(wrapped, lower, upper, len(active))
	if err != nil {
		return nil, fmt.Errorf("optimizer failed: %w", err)
	}

	settings := exp.Nominal
	for i, idx := range active {
		settings[idx] = bestVector[i]
	}

	slog.Info("Tuning run complete",
		"initial_value", initialValue,
		"best_value", bestValue,
		"evaluations", evals,
	)

	return &Result{
		Goal:         goal,
		Active:       active,
		BestSettings: settings,
		BestVector:   bestVector,
		BestValue:    bestValue,
		InitialValue: initialValue,
		Evaluations:  evals,
	}, nil
}

// Sweep evaluates the goal over an evenly spaced scan of a single quad while
// all others stay at nominal. Returns the scanned values and the objective
// at each point.
func Sweep(ctx context.Context, exp *Experiment, goal Goal, quad, points int) ([]float64, []float64, error) {
	if quad < 0 || quad >= sim.NumQuads {
		return nil, nil, fmt.Errorf("%w: quad index %d out of range [0, %d)", ErrInvalidSettings, quad, sim.NumQuads)
	}
	if points < 2 {
		return nil, nil, fmt.Errorf("%w: sweep needs at least 2 points, got %d", ErrInvalidSettings, points)
	}

	objective, err := exp.Objective(ctx, goal, []int{quad})
	if err != nil {
		return nil, nil, err
	}

	xs := make([]float64, points)
	ys := make([]float64, points)
	step := (exp.UpperBound - exp.LowerBound) / float64(points-1)
	for i := 0; i < points; i++ {
		xs[i] = exp.LowerBound + float64(i)*step
		ys[i], err = objective([]float64{xs[i]})
		if err != nil {
			return nil, nil, fmt.Errorf("sweep point %d (Q%d=%g): %w", i, quad+1, xs[i], err)
		}
	}

	return xs, ys, nil
}
