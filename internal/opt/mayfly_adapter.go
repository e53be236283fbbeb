package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our
// Optimizer interface. Failed evaluations are reported to the library as
// +Inf so the swarm moves away from them.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Run(eval Objective, lower, upper []float64, dim int) ([]float64, float64, error) {
	if dim < 1 {
		return nil, 0, fmt.Errorf("dimension must be >= 1, got %d", dim)
	}
	if len(lower) < dim || len(upper) < dim {
		return nil, 0, fmt.Errorf("bounds shorter than dimension %d", dim)
	}
	for i := 0; i < dim; i++ {
		if lower[i] >= upper[i] {
			return nil, 0, fmt.Errorf("invalid bounds for parameter %d: [%g, %g]", i, lower[i], upper[i])
		}
	}

	var succeeded int
	var lastErr error

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		v, err := eval(x)
		if err != nil {
			lastErr = err
			return math.Inf(1)
		}
		succeeded++
		return v
	}
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// External library uses scalar bounds shared by all dimensions; the quad
	// search interval is uniform, so the first dimension stands for all.
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	if succeeded == 0 {
		if lastErr != nil {
			return nil, 0, fmt.Errorf("%w: last error: %v", ErrAllEvaluationsFailed, lastErr)
		}
		return nil, 0, ErrAllEvaluationsFailed
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost, nil
}
