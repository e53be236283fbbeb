package tune

import (
	"context"
	"fmt"

	"github.com/beamphys/beamtune/internal/measure"
)

// ObjectiveFunc evaluates one candidate settings vector. A non-nil error
// means the evaluation failed and no valid scalar exists for this candidate;
// simulator and measurement failures propagate unchanged.
type ObjectiveFunc func(candidate []float64) (float64, error)

// Objective returns the evaluation closure for the given goal over the
// active subset of quads. Each call runs the simulator twice, once for the
// reaction product at zero offsets and once for the unreacted beam at the
// experiment's fixed kinematic offsets, then reduces the measurements to the
// goal scalar. The closure keeps no state between calls.
func (e *Experiment) Objective(ctx context.Context, goal Goal, active []int) (ObjectiveFunc, error) {
	if _, err := ParseGoal(string(goal)); err != nil {
		return nil, err
	}
	active, err := normalizeActive(active)
	if err != nil {
		return nil, err
	}
	if e.Sim == nil {
		return nil, fmt.Errorf("experiment has no simulator")
	}

	return func(candidate []float64) (float64, error) {
		if len(candidate) != len(active) {
			return 0, fmt.Errorf("%w: got %d values for %d active quads",
				ErrInvalidSettings, len(candidate), len(active))
		}

		quads := e.Nominal
		for i, idx := range active {
			quads[idx] = candidate[i]
		}

		product, err := e.Sim.Transport(ctx, e.request(quads, 0, 0))
		if err != nil {
			return 0, err
		}
		beam, err := e.Sim.Transport(ctx, e.request(quads, e.MassOffset, e.EnergyOffset))
		if err != nil {
			return 0, err
		}

		w1, w2, err := measure.Widths(product)
		if err != nil {
			return 0, err
		}
		r1, _, err := measure.ResolvingPower(product, beam)
		if err != nil {
			return 0, err
		}

		switch goal {
		case GoalWidthFP1:
			return w1, nil
		case GoalWidthFP2:
			return w2, nil
		case GoalResolving:
			return -r1, nil
		case GoalComposite:
			return w1 - e.CompositeWeight*r1, nil
		}
		return 0, fmt.Errorf("unknown goal: %q", goal)
	}, nil
}
