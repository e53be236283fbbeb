package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/beamphys/beamtune/internal/config"
	"github.com/beamphys/beamtune/internal/opt"
	"github.com/beamphys/beamtune/internal/sim"
	"github.com/beamphys/beamtune/internal/store"
	"github.com/beamphys/beamtune/internal/tune"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir string
	resumeIters   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume tuning from a checkpoint",
	Long: `Continues a tuning job from its saved checkpoint. The optimizer restarts
with a fresh population seeded at the checkpointed best settings; the best
value never gets worse but the continuation is not bit-identical to an
uninterrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Additional iterations (default: checkpoint's setting)")
	rootCmd.AddCommand(resumeCmd)
}

// resumeRunConfig builds the effective configuration a resumed run would
// use, taking goal and active set from the experiment file as it exists now.
func resumeRunConfig(cp *store.Checkpoint, cfg *config.Config) store.JobConfig {
	runCfg := cp.Config
	runCfg.Goal = cfg.Goal
	runCfg.Active = cfg.ActiveIndices()
	return runCfg
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	cp, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	slog.Info("Resuming job", "jobID", jobID,
		"bestValue", cp.BestValue, "evaluations", cp.Evaluations,
		"saved", cp.Timestamp)

	cfg, err := config.Load(cp.Config.ExperimentPath)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}

	// The experiment file may have been edited since the checkpoint was
	// saved; a changed goal or active set makes the saved best meaningless.
	runCfg := resumeRunConfig(cp, cfg)
	if cmd.Flags().Changed("iters") {
		runCfg.Iters = resumeIters
	}
	if err := cp.IsCompatible(runCfg); err != nil {
		return fmt.Errorf("checkpoint incompatible with current experiment file: %w", err)
	}

	exp, err := cfg.Experiment()
	if err != nil {
		return fmt.Errorf("failed to build experiment: %w", err)
	}
	// Continue the search from the checkpointed best settings.
	var nominal [sim.NumQuads]float64
	copy(nominal[:], cp.BestSettings)
	exp.Nominal = nominal

	goal, err := tune.ParseGoal(runCfg.Goal)
	if err != nil {
		return fmt.Errorf("checkpoint has invalid goal: %w", err)
	}

	trace, err := store.NewTraceWriter(resumeDataDir, jobID, true)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer trace.Close()

	activeIdx := runCfg.Active
	if len(activeIdx) == 0 {
		activeIdx = []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
	base := cp.Evaluations
	observer := func(eval int, candidate []float64, value float64) {
		full := exp.Nominal
		for i, q := range activeIdx {
			if i < len(candidate) {
				full[q] = candidate[i]
			}
		}
		trace.Write(store.TraceEntry{
			Evaluation: base + eval,
			Value:      value,
			Timestamp:  time.Now(),
			Settings:   full[:],
		})
	}

	optimizer := opt.NewMayfly(runCfg.Iters, runCfg.PopSize, runCfg.Seed+int64(base))

	result, err := tune.Run(cmd.Context(), exp, goal, runCfg.Active, optimizer, observer)
	if err != nil {
		return fmt.Errorf("tuning failed: %w", err)
	}

	bestSettings := result.BestSettings[:]
	bestValue := result.BestValue
	if cp.BestValue < bestValue {
		// Keep the checkpointed optimum if the continuation did not
		// improve on it.
		bestSettings = cp.BestSettings
		bestValue = cp.BestValue
	}

	updated := store.NewCheckpoint(jobID, bestSettings, bestValue, cp.InitialValue,
		base+result.Evaluations, runCfg)
	if err := checkpointStore.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	fmt.Printf("Resumed job %s\n", jobID)
	fmt.Printf("Best value:  %.6g (was %.6g)\n", bestValue, cp.BestValue)
	fmt.Printf("Evaluations: %d (+%d)\n", base+result.Evaluations, result.Evaluations)
	for i, q := range bestSettings {
		fmt.Printf("  Q%d: %.6f\n", i+1, q)
	}
	return nil
}
