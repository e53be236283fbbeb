package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/beamphys/beamtune/internal/sim"
	"github.com/beamphys/beamtune/internal/tune"
)

// Defaults applied for omitted optimizer and simulator blocks.
const (
	DefaultIterations = 100
	DefaultPopulation = 30
)

// Load reads and parses an experiment file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates an experiment document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Quads.Lower == 0 && cfg.Quads.Upper == 0 {
		cfg.Quads.Lower = tune.DefaultLowerBound
		cfg.Quads.Upper = tune.DefaultUpperBound
	}
	if cfg.Goal == "" {
		cfg.Goal = string(tune.GoalComposite)
	}
	if cfg.Optimizer.Iterations == 0 {
		cfg.Optimizer.Iterations = DefaultIterations
	}
	if cfg.Optimizer.Population == 0 {
		cfg.Optimizer.Population = DefaultPopulation
	}
	if cfg.Optimizer.Seed == 0 {
		cfg.Optimizer.Seed = 42
	}
	if cfg.Simulator.Particles == 0 {
		cfg.Simulator.Particles = tune.DefaultParticles
	}
	if cfg.Simulator.Seed == 0 {
		cfg.Simulator.Seed = 1
	}
	zero := sim.SourceSpread{}
	if cfg.Simulator.Spread == zero {
		cfg.Simulator.Spread = sim.DefaultSpread
	}
}

func validate(cfg *Config) error {
	if len(cfg.Quads.Nominal) != sim.NumQuads {
		return fmt.Errorf("quads.nominal must list %d values, got %d", sim.NumQuads, len(cfg.Quads.Nominal))
	}
	for i, q := range cfg.Quads.Nominal {
		if q < 0 || q > sim.QuadLimit {
			return fmt.Errorf("quads.nominal[%d] = %g outside [0, %g]", i, q, sim.QuadLimit)
		}
	}
	if cfg.Quads.Lower >= cfg.Quads.Upper {
		return fmt.Errorf("quads bounds invalid: lower %g >= upper %g", cfg.Quads.Lower, cfg.Quads.Upper)
	}

	seen := make(map[int]bool, len(cfg.Quads.Active))
	for _, q := range cfg.Quads.Active {
		if q < 1 || q > sim.NumQuads {
			return fmt.Errorf("quads.active contains Q%d, must be Q1..Q%d", q, sim.NumQuads)
		}
		if seen[q] {
			return fmt.Errorf("quads.active lists Q%d twice", q)
		}
		seen[q] = true
	}

	if _, err := tune.ParseGoal(cfg.Goal); err != nil {
		return fmt.Errorf("goal: %w", err)
	}

	if cfg.Optimizer.Iterations < 1 {
		return fmt.Errorf("optimizer.iterations must be positive, got %d", cfg.Optimizer.Iterations)
	}
	if cfg.Optimizer.Population < 1 {
		return fmt.Errorf("optimizer.population must be positive, got %d", cfg.Optimizer.Population)
	}
	if cfg.Simulator.Particles < 1 {
		return fmt.Errorf("simulator.particles must be positive, got %d", cfg.Simulator.Particles)
	}

	return nil
}

// ActiveIndices converts the 1-based quad numbers to 0-based indices.
func (c *Config) ActiveIndices() []int {
	if len(c.Quads.Active) == 0 {
		return nil
	}
	out := make([]int, len(c.Quads.Active))
	for i, q := range c.Quads.Active {
		out[i] = q - 1
	}
	return out
}

// GoalValue returns the validated goal.
func (c *Config) GoalValue() tune.Goal {
	g, _ := tune.ParseGoal(c.Goal)
	return g
}

// Experiment builds the immutable tuning configuration. Beam parameters are
// derived here; a particle outside the physical domain fails at this point.
func (c *Config) Experiment() (*tune.Experiment, error) {
	var nominal [sim.NumQuads]float64
	copy(nominal[:], c.Quads.Nominal)

	exp, err := tune.NewExperiment(c.Particle, nominal, c.Recoil.MassOffset, c.Recoil.EnergyOffset)
	if err != nil {
		return nil, err
	}

	exp.LowerBound = c.Quads.Lower
	exp.UpperBound = c.Quads.Upper
	exp.Particles = c.Simulator.Particles
	exp.Seed = c.Simulator.Seed
	exp.Spread = c.Simulator.Spread
	return exp, nil
}
