package tune

import (
	"context"
	"errors"
	"testing"

	"github.com/beamphys/beamtune/internal/opt"
)

// fixedOptimizer returns a preset vector after evaluating it once.
type fixedOptimizer struct {
	vector []float64
}

func (f *fixedOptimizer) Run(eval opt.Objective, lower, upper []float64, dim int) ([]float64, float64, error) {
	if len(f.vector) != dim {
		return nil, 0, errors.New("fixture dimension mismatch")
	}
	value, err := eval(f.vector)
	if err != nil {
		return nil, 0, err
	}
	return f.vector, value, nil
}

func TestRunAppliesBestVector(t *testing.T) {
	exp, _ := stubExperiment(t)

	optimizer := &fixedOptimizer{vector: []float64{3.3, 0.7}}

	var observed int
	result, err := Run(context.Background(), exp, GoalWidthFP1, []int{0, 5}, optimizer,
		func(eval int, candidate []float64, value float64) { observed++ })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := testNominal
	want[0] = 3.3
	want[5] = 0.7
	if result.BestSettings != want {
		t.Errorf("BestSettings = %v, want %v", result.BestSettings, want)
	}
	if result.InitialValue == 0 {
		t.Error("InitialValue not computed")
	}
	if result.Evaluations != 2 {
		t.Errorf("Evaluations = %d, want 2 (nominal + optimizer)", result.Evaluations)
	}
	if observed != 1 {
		t.Errorf("observer called %d times, want 1", observed)
	}
	if result.Goal != GoalWidthFP1 {
		t.Errorf("Goal = %q, want %q", result.Goal, GoalWidthFP1)
	}
}

func TestRunFailsWhenNominalFails(t *testing.T) {
	exp, stub := stubExperiment(t)
	stub.fail = errors.New("magnet trip")

	_, err := Run(context.Background(), exp, GoalWidthFP1, nil, &fixedOptimizer{vector: make([]float64, 8)}, nil)
	if err == nil {
		t.Fatal("expected error when nominal settings cannot be evaluated")
	}
}

func TestRunRejectsBadActive(t *testing.T) {
	exp, _ := stubExperiment(t)

	_, err := Run(context.Background(), exp, GoalWidthFP1, []int{11}, &fixedOptimizer{vector: []float64{1}}, nil)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	exp, _ := stubExperiment(t)

	xs, ys, err := Sweep(context.Background(), exp, GoalWidthFP1, 2, 11)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if len(xs) != 11 || len(ys) != 11 {
		t.Fatalf("expected 11 points, got %d/%d", len(xs), len(ys))
	}
	if xs[0] != exp.LowerBound || xs[len(xs)-1] != exp.UpperBound {
		t.Errorf("sweep endpoints %g..%g, want %g..%g", xs[0], xs[len(xs)-1], exp.LowerBound, exp.UpperBound)
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			t.Fatalf("sweep values not increasing at %d: %g <= %g", i, xs[i], xs[i-1])
		}
	}
}

func TestSweepBadArguments(t *testing.T) {
	exp, _ := stubExperiment(t)

	if _, _, err := Sweep(context.Background(), exp, GoalWidthFP1, 9, 5); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings for bad quad, got %v", err)
	}
	if _, _, err := Sweep(context.Background(), exp, GoalWidthFP1, 0, 1); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings for one point, got %v", err)
	}
}
