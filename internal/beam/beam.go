package beam

import (
	"errors"
	"fmt"
	"math"
)

// Physical constants used by the calculator.
const (
	// RestMassPerAMU is the rest-mass energy per atomic mass unit in MeV/u.
	RestMassPerAMU = 931.494

	// SpeedOfLight in the unit system used here converts momentum per charge
	// (MeV/c per elementary charge) into magnetic rigidity in T*m.
	SpeedOfLight = 299.792458
)

// ErrInvalidParameter indicates a particle field outside its physical domain.
// Use errors.Is(err, ErrInvalidParameter) to check for this error.
var ErrInvalidParameter = errors.New("beam: invalid parameter")

// Particle describes the ion species under study. Values are immutable for
// the duration of an experiment run.
type Particle struct {
	Mass   float64 `yaml:"mass" json:"mass"`     // atomic mass units
	Charge float64 `yaml:"charge" json:"charge"` // elementary charges
	Energy float64 `yaml:"energy" json:"energy"` // kinetic energy per nucleon, MeV/u
}

// Parameters holds the quantities derived from a Particle. Both fields are
// deterministic pure functions of the particle and must be recomputed
// whenever the particle changes.
type Parameters struct {
	Rigidity float64 `json:"rigidity"` // magnetic rigidity, T*m
	Gamma    float64 `json:"gamma"`    // Lorentz factor
}

// Derive computes magnetic rigidity and Lorentz factor from relativistic
// kinematics:
//
//	Rigidity = Mass * sqrt((Energy+m0)^2 - m0^2) / (Charge * c)
//	Gamma    = (Energy + m0) / m0
//
// with m0 = RestMassPerAMU and energies per nucleon. A zero or negative
// charge must fail rather than silently produce an infinite or negative
// rigidity.
func Derive(p Particle) (Parameters, error) {
	if p.Mass <= 0 {
		return Parameters{}, fmt.Errorf("%w: mass must be positive, got %g", ErrInvalidParameter, p.Mass)
	}
	if p.Charge <= 0 {
		return Parameters{}, fmt.Errorf("%w: charge must be positive, got %g", ErrInvalidParameter, p.Charge)
	}
	if p.Energy < 0 {
		return Parameters{}, fmt.Errorf("%w: energy must not be negative, got %g", ErrInvalidParameter, p.Energy)
	}

	total := p.Energy + RestMassPerAMU
	// Momentum per nucleon in MeV/c.
	momentum := math.Sqrt(total*total - RestMassPerAMU*RestMassPerAMU)

	return Parameters{
		Rigidity: p.Mass * momentum / (p.Charge * SpeedOfLight),
		Gamma:    total / RestMassPerAMU,
	}, nil
}

// Beta returns v/c for the derived Lorentz factor.
func (p Parameters) Beta() float64 {
	return math.Sqrt(1 - 1/(p.Gamma*p.Gamma))
}
