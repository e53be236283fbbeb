package opt

import "errors"

// ErrAllEvaluationsFailed is returned when no candidate produced a valid
// objective value over the whole run.
var ErrAllEvaluationsFailed = errors.New("opt: all evaluations failed")

// Objective evaluates one candidate settings vector. A non-nil error marks
// the evaluation failed; the optimizer treats that candidate as having no
// valid value.
type Objective func(candidate []float64) (float64, error)

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best objective value
	Run(eval Objective, lower, upper []float64, dim int) ([]float64, float64, error)
}
