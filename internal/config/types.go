package config

import (
	"github.com/beamphys/beamtune/internal/beam"
	"github.com/beamphys/beamtune/internal/sim"
)

// Config represents one experiment file: the species under study, the recoil
// kinematics of the unreacted beam, the magnet setup, and the optimizer and
// simulator settings.
type Config struct {
	Particle  beam.Particle `yaml:"particle"`
	Recoil    Recoil        `yaml:"recoil"`
	Quads     Quads         `yaml:"quads"`
	Goal      string        `yaml:"goal"`
	Optimizer Optimizer     `yaml:"optimizer,omitempty"`
	Simulator Simulator     `yaml:"simulator,omitempty"`
}

// Recoil holds the fixed kinematic offsets of the unreacted beam relative to
// the reaction product.
type Recoil struct {
	MassOffset   float64 `yaml:"mass_offset"`
	EnergyOffset float64 `yaml:"energy_offset"`
}

// Quads holds the magnet setup. Active lists 1-based quad numbers (Q1..Q8)
// under optimization; empty means all eight.
type Quads struct {
	Nominal []float64 `yaml:"nominal"`
	Lower   float64   `yaml:"lower"`
	Upper   float64   `yaml:"upper"`
	Active  []int     `yaml:"active,omitempty"`
}

// Optimizer holds the search settings handed to the mayfly adapter.
type Optimizer struct {
	Iterations int   `yaml:"iterations"`
	Population int   `yaml:"population"`
	Seed       int64 `yaml:"seed"`
}

// Simulator holds the Monte Carlo settings.
type Simulator struct {
	Particles int              `yaml:"particles"`
	Seed      int64            `yaml:"seed"`
	Spread    sim.SourceSpread `yaml:"spread,omitempty"`
}
