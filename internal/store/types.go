package store

import (
	"fmt"
	"math"
	"time"

	"github.com/beamphys/beamtune/internal/sim"
)

// JobConfig holds configuration for a tuning job (checkpoint copy).
// This avoids import cycles with the server package.
type JobConfig struct {
	ExperimentPath     string `json:"experimentPath"`
	Goal               string `json:"goal"`
	Active             []int  `json:"active,omitempty"` // 0-based quad indices; empty = all
	Iters              int    `json:"iters"`
	PopSize            int    `json:"popSize"`
	Seed               int64  `json:"seed"`
	CheckpointInterval int    `json:"checkpointInterval,omitempty"` // seconds, 0 = disabled
}

// Checkpoint represents a saved tuning state that can be resumed later.
//
// The checkpoint saves the best magnet settings found so far, not the
// optimizer's internal population. On resume the optimizer restarts with a
// fresh population; the best value never gets worse because the best
// settings are kept, but the continuation is not bit-identical to an
// uninterrupted run. Serializing mayfly's swarm state would tie the
// checkpoint format to one optimizer implementation, so it is deliberately
// not stored.
type Checkpoint struct {
	// JobID is the unique identifier for this tuning job
	JobID string `json:"jobId"`

	// BestSettings are the full eight quadrupole gradients that achieved
	// the best (lowest) objective value so far
	BestSettings []float64 `json:"bestSettings"`

	// BestValue is the objective value achieved by BestSettings. It may be
	// negative: resolving-power goals are minimized as negated values.
	BestValue float64 `json:"bestValue"`

	// InitialValue is the objective at the nominal settings, kept for
	// improvement tracking
	InitialValue float64 `json:"initialValue"`

	// Evaluations counts objective evaluations completed at checkpoint time
	Evaluations int `json:"evaluations"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during
	// resume. Resumed jobs must use compatible settings.
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full
// settings data. Used for listing checkpoints efficiently.
type CheckpointInfo struct {
	JobID          string    `json:"jobId"`
	BestValue      float64   `json:"bestValue"`
	Evaluations    int       `json:"evaluations"`
	Timestamp      time.Time `json:"timestamp"`
	Goal           string    `json:"goal"`
	ExperimentPath string    `json:"experimentPath"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, bestSettings []float64, bestValue, initialValue float64, evaluations int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:        jobID,
		BestSettings: bestSettings,
		BestValue:    bestValue,
		InitialValue: initialValue,
		Evaluations:  evaluations,
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:          c.JobID,
		BestValue:      c.BestValue,
		Evaluations:    c.Evaluations,
		Timestamp:      c.Timestamp,
		Goal:           c.Config.Goal,
		ExperimentPath: c.Config.ExperimentPath,
	}
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestSettings) != sim.NumQuads {
		return &ValidationError{
			Field:  "BestSettings",
			Reason: fmt.Sprintf("must hold %d quad settings, got %d", sim.NumQuads, len(c.BestSettings)),
		}
	}
	for i, q := range c.BestSettings {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return &ValidationError{Field: "BestSettings", Reason: fmt.Sprintf("Q%d is not finite", i+1)}
		}
	}
	if math.IsNaN(c.BestValue) || math.IsInf(c.BestValue, 0) {
		return &ValidationError{Field: "BestValue", Reason: "must be finite"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.ExperimentPath == "" {
		return &ValidationError{Field: "Config.ExperimentPath", Reason: "cannot be empty"}
	}
	if c.Config.Goal == "" {
		return &ValidationError{Field: "Config.Goal", Reason: "cannot be empty"}
	}
	if c.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	if c.Config.PopSize <= 0 {
		return &ValidationError{Field: "Config.PopSize", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given
// config. Returns an error if the configs are incompatible.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.ExperimentPath != config.ExperimentPath {
		return &CompatibilityError{
			Field:    "ExperimentPath",
			Expected: c.Config.ExperimentPath,
			Actual:   config.ExperimentPath,
		}
	}
	if c.Config.Goal != config.Goal {
		return &CompatibilityError{
			Field:    "Goal",
			Expected: c.Config.Goal,
			Actual:   config.Goal,
		}
	}
	if !equalActive(c.Config.Active, config.Active) {
		return &CompatibilityError{
			Field:    "Active",
			Expected: fmt.Sprintf("%v", c.Config.Active),
			Actual:   fmt.Sprintf("%v", config.Active),
		}
	}
	return nil
}

func equalActive(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
