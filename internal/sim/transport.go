package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// Beamline geometry. Quadrupoles Q1-Q4 focus onto the first focal plane
// behind the first dipole, Q5-Q8 onto the second behind the second dipole.
const (
	driftLen         = 0.6    // drift between elements, m
	quadLen          = 0.3    // quadrupole effective length, m
	bendAngle        = 0.5236 // dipole bend angle, rad
	driftToPlane     = 1.2    // dipole exit to focal plane, m
	defaultAperture  = 0.15   // half-aperture of the vacuum chamber, m
	cancelCheckEvery = 1024   // particles between context checks
)

// Engine is the Monte Carlo transport simulator. The zero value is not
// usable; construct with NewEngine.
type Engine struct {
	Aperture float64 // half-aperture, m
}

// NewEngine returns an engine with the default beamline aperture.
func NewEngine() *Engine {
	return &Engine{Aperture: defaultAperture}
}

// Transport propagates a bunch of req.Particles ions through the beamline
// and records horizontal positions at both focal planes. The run is
// deterministic for a fixed req.Seed. Particles leaving the aperture are
// dropped at the element where they are lost.
func (e *Engine) Transport(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(req.Seed))
	delta0 := req.Delta()

	res := &Result{
		FP1:       make([]float64, 0, req.Particles),
		FP2:       make([]float64, 0, req.Particles),
		Requested: req.Particles,
	}

	for i := 0; i < req.Particles; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		x := rng.NormFloat64() * req.Spread.SizeMM * 1e-3
		xp := rng.NormFloat64() * req.Spread.DivergenceMRad * 1e-3
		delta := delta0 + rng.NormFloat64()*req.Spread.MomentumSpread

		atFP1, ok, err := e.halfLine(&x, &xp, delta, req, 0)
		if err != nil {
			return nil, &SimulationError{Particle: i, Wrapped: err}
		}
		if !ok {
			continue
		}
		res.FP1 = append(res.FP1, atFP1)

		atFP2, ok, err := e.halfLine(&x, &xp, delta, req, 4)
		if err != nil {
			return nil, &SimulationError{Particle: i, Wrapped: err}
		}
		if !ok {
			continue
		}
		res.FP2 = append(res.FP2, atFP2)
		res.Transmitted++
	}

	if len(res.FP1) == 0 || len(res.FP2) == 0 {
		return nil, &SimulationError{Wrapped: fmt.Errorf("%w: %d/%d reached FP1, %d reached FP2",
			ErrNoTransmission, len(res.FP1), req.Particles, len(res.FP2))}
	}

	return res, nil
}

// halfLine propagates through four quadrupoles starting at index firstQuad,
// then the dipole and the drift to the focal plane. Returns the position at
// the plane and whether the particle survived the aperture.
func (e *Engine) halfLine(x, xp *float64, delta float64, req Request, firstQuad int) (float64, bool, error) {
	sign := 1.0
	for q := firstQuad; q < firstQuad+4; q++ {
		drift(x, *xp, driftLen)
		if !e.inside(*x) {
			return 0, false, nil
		}

		// Thin-lens kick. Focusing strength scales with gradient over
		// rigidity; off-momentum particles see a chromatically weakened lens.
		k := req.Quads[q] / req.Rigidity
		*xp -= sign * k * quadLen * *x / (1 + delta)
		sign = -sign

		if math.IsNaN(*x) || math.IsNaN(*xp) {
			return 0, false, fmt.Errorf("state diverged at Q%d", q+1)
		}
	}

	drift(x, *xp, driftLen)
	if !e.inside(*x) {
		return 0, false, nil
	}

	// Sector dipole: off-momentum species pick up a dispersive kick.
	*xp += bendAngle * delta

	drift(x, *xp, driftToPlane)
	if !e.inside(*x) {
		return 0, false, nil
	}

	return *x, true, nil
}

func drift(x *float64, xp, length float64) {
	*x += xp * length
}

func (e *Engine) inside(x float64) bool {
	return math.Abs(x) <= e.Aperture
}
