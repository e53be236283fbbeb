package tune

import (
	"context"
	"errors"
	"fmt"

	"github.com/beamphys/beamtune/internal/beam"
	"github.com/beamphys/beamtune/internal/sim"
)

// ErrInvalidSettings indicates a candidate settings vector the objective
// cannot accept.
var ErrInvalidSettings = errors.New("tune: invalid settings")

// Simulator is the transport collaborator the objective delegates to.
// The production implementation is sim.Engine.
type Simulator interface {
	Transport(ctx context.Context, req sim.Request) (*sim.Result, error)
}

// Goal selects the scalar the optimizer minimizes. Resolving power is
// negated so that all goals minimize.
type Goal string

const (
	GoalWidthFP1  Goal = "width-fp1"
	GoalWidthFP2  Goal = "width-fp2"
	GoalResolving Goal = "resolving-power"
	GoalComposite Goal = "composite"
)

// ParseGoal validates a goal name from configuration or flags.
func ParseGoal(s string) (Goal, error) {
	switch Goal(s) {
	case GoalWidthFP1, GoalWidthFP2, GoalResolving, GoalComposite:
		return Goal(s), nil
	}
	return "", fmt.Errorf("unknown goal: %q", s)
}

// Experiment is the immutable configuration of one tuning run: the particle,
// its derived beam parameters, the nominal magnet settings, the kinematic
// offsets of the unreacted beam, and the simulator settings. Replaces what
// the interactive workflow kept in ambient globals.
type Experiment struct {
	Particle beam.Particle
	Params   beam.Parameters

	// Nominal quad settings; quads not under optimization stay at these.
	Nominal [sim.NumQuads]float64

	// Kinematics of the unreacted beam relative to the reference species.
	// The reaction product runs at zero offsets.
	MassOffset   float64
	EnergyOffset float64

	// Uniform search interval per quad.
	LowerBound float64
	UpperBound float64

	// Composite goal trade-off: meters of width forgiven per unit of
	// resolving power.
	CompositeWeight float64

	Particles int
	Seed      int64
	Spread    sim.SourceSpread

	Sim Simulator
}

// Default experiment knobs, matching the observed spectrometer setup.
const (
	DefaultLowerBound      = 0.0
	DefaultUpperBound      = 5.0
	DefaultParticles       = 2000
	DefaultCompositeWeight = 0.005
)

// NewExperiment derives beam parameters from the particle and fills in
// defaults for everything not supplied.
func NewExperiment(p beam.Particle, nominal [sim.NumQuads]float64, massOffset, energyOffset float64) (*Experiment, error) {
	params, err := beam.Derive(p)
	if err != nil {
		return nil, err
	}

	return &Experiment{
		Particle:        p,
		Params:          params,
		Nominal:         nominal,
		MassOffset:      massOffset,
		EnergyOffset:    energyOffset,
		LowerBound:      DefaultLowerBound,
		UpperBound:      DefaultUpperBound,
		CompositeWeight: DefaultCompositeWeight,
		Particles:       DefaultParticles,
		Seed:            1,
		Spread:          sim.DefaultSpread,
		Sim:             sim.NewEngine(),
	}, nil
}

// request builds the transport request for one species.
func (e *Experiment) request(quads [sim.NumQuads]float64, massOffset, energyOffset float64) sim.Request {
	return sim.Request{
		Rigidity:     e.Params.Rigidity,
		Gamma:        e.Params.Gamma,
		MassOffset:   massOffset,
		EnergyOffset: energyOffset,
		Quads:        quads,
		Particles:    e.Particles,
		Seed:         e.Seed,
		Spread:       e.Spread,
	}
}

// normalizeActive resolves and validates the set of quad indices under
// optimization. Nil or empty means all quads.
func normalizeActive(active []int) ([]int, error) {
	if len(active) == 0 {
		all := make([]int, sim.NumQuads)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool, len(active))
	out := make([]int, 0, len(active))
	for _, idx := range active {
		if idx < 0 || idx >= sim.NumQuads {
			return nil, fmt.Errorf("%w: quad index %d out of range [0, %d)", ErrInvalidSettings, idx, sim.NumQuads)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: duplicate quad index %d", ErrInvalidSettings, idx)
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out, nil
}
