package sim

import (
	"errors"
	"fmt"
)

// NumQuads is the number of quadrupoles in the beamline.
const NumQuads = 8

// QuadLimit is the hardware limit on a single quadrupole field gradient in
// T/m. Optimization bounds are typically well inside this.
const QuadLimit = 10.0

// ErrBadRequest indicates a transport request outside the simulator's domain.
var ErrBadRequest = errors.New("sim: bad request")

// ErrNoTransmission indicates that no particle survived to a focal plane.
var ErrNoTransmission = errors.New("sim: no particles transmitted")

// SourceSpread describes the phase-space distribution of the particle source.
// All sigmas are one standard deviation.
type SourceSpread struct {
	SizeMM         float64 `yaml:"size_mm" json:"sizeMM"`                 // horizontal spot size, mm
	DivergenceMRad float64 `yaml:"divergence_mrad" json:"divergenceMRad"` // horizontal divergence, mrad
	MomentumSpread float64 `yaml:"momentum_spread" json:"momentumSpread"` // relative dp/p
}

// DefaultSpread is a typical recoil source at the target position.
var DefaultSpread = SourceSpread{
	SizeMM:         1.5,
	DivergenceMRad: 6.0,
	MomentumSpread: 5e-4,
}

// Request carries everything the simulator needs for one species: the beam
// parameters, the kinematic offsets of the species relative to the reference
// momentum, the magnet settings, and the Monte Carlo sample size.
type Request struct {
	Rigidity     float64            // reference magnetic rigidity, T*m
	Gamma        float64            // reference Lorentz factor
	MassOffset   float64            // relative mass deviation dm/m
	EnergyOffset float64            // relative kinetic energy deviation dE/E
	Quads        [NumQuads]float64  // quadrupole field gradients, T/m
	Particles    int                // Monte Carlo sample size
	Seed         int64              // source RNG seed
	Spread       SourceSpread
}

// Validate checks the request against the simulator's domain.
func (r Request) Validate() error {
	if r.Rigidity <= 0 {
		return fmt.Errorf("%w: rigidity must be positive, got %g", ErrBadRequest, r.Rigidity)
	}
	if r.Gamma < 1 {
		return fmt.Errorf("%w: gamma must be >= 1, got %g", ErrBadRequest, r.Gamma)
	}
	if r.Particles < 1 {
		return fmt.Errorf("%w: particle count must be >= 1, got %d", ErrBadRequest, r.Particles)
	}
	for i, q := range r.Quads {
		if q < 0 || q > QuadLimit {
			return fmt.Errorf("%w: quad Q%d = %g outside [0, %g]", ErrBadRequest, i+1, q, QuadLimit)
		}
	}
	if r.Spread.SizeMM < 0 || r.Spread.DivergenceMRad < 0 || r.Spread.MomentumSpread < 0 {
		return fmt.Errorf("%w: source spread sigmas must not be negative", ErrBadRequest)
	}
	return nil
}

// Delta returns the relative momentum deviation of the species against the
// reference momentum. A mass deviation at fixed velocity maps directly onto
// dp/p; a kinetic energy deviation scales by gamma/(gamma+1).
func (r Request) Delta() float64 {
	return r.MassOffset + r.EnergyOffset*r.Gamma/(r.Gamma+1)
}

// Result holds per-particle horizontal positions at the two focal planes.
// Callers consume it through the measure package.
type Result struct {
	FP1         []float64 // positions at focal plane 1, m
	FP2         []float64 // positions at focal plane 2, m
	Requested   int
	Transmitted int // particles that reached FP2
}

// SimulationError wraps a mid-flight transport failure with context.
type SimulationError struct {
	Particle int
	Wrapped  error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("sim: particle %d: %v", e.Particle, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
