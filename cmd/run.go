package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/beamphys/beamtune/internal/config"
	"github.com/beamphys/beamtune/internal/opt"
	"github.com/beamphys/beamtune/internal/report"
	"github.com/beamphys/beamtune/internal/sim"
	"github.com/beamphys/beamtune/internal/store"
	"github.com/beamphys/beamtune/internal/tune"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runConfigPath string
	runGoal       string
	runIters      int
	runPopSize    int
	runSeed       int64
	runDataDir    string
	runReportPath string
	runXLSXPath   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot tuning",
	Long:  `Runs quadrupole tuning for one experiment file and prints the best settings found.`,
	RunE:  runTuning,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Experiment file (required)")
	runCmd.Flags().StringVar(&runGoal, "goal", "", "Override goal: width-fp1, width-fp2, resolving-power, composite")
	runCmd.Flags().IntVar(&runIters, "iters", 0, "Override max iterations")
	runCmd.Flags().IntVar(&runPopSize, "pop", 0, "Override population size")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Override optimizer seed")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Base directory for trace storage")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Write HTML report to this path")
	runCmd.Flags().StringVar(&runXLSXPath, "xlsx", "", "Write XLSX export to this path")

	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

func runTuning(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}

	goal := cfg.GoalValue()
	if cmd.Flags().Changed("goal") {
		goal, err = tune.ParseGoal(runGoal)
		if err != nil {
			return err
		}
	}
	iters := cfg.Optimizer.Iterations
	if cmd.Flags().Changed("iters") {
		iters = runIters
	}
	popSize := cfg.Optimizer.Population
	if cmd.Flags().Changed("pop") {
		popSize = runPopSize
	}
	seed := cfg.Optimizer.Seed
	if cmd.Flags().Changed("seed") {
		seed = runSeed
	}

	exp, err := cfg.Experiment()
	if err != nil {
		return fmt.Errorf("failed to build experiment: %w", err)
	}
	active := cfg.ActiveIndices()

	slog.Info("Starting tuning",
		"experiment", runConfigPath, "goal", goal,
		"iters", iters, "pop", popSize, "particles", exp.Particles)

	jobID := uuid.New().String()
	trace, err := store.NewTraceWriter(runDataDir, jobID, false)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer trace.Close()

	activeIdx := active
	if len(activeIdx) == 0 {
		activeIdx = []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
	observer := func(eval int, candidate []float64, value float64) {
		// The trace records the full gradient set, not just the tuned
		// subset.
		full := exp.Nominal
		for i, q := range activeIdx {
			if i < len(candidate) {
				full[q] = candidate[i]
			}
		}
		trace.Write(store.TraceEntry{
			Evaluation: eval,
			Value:      value,
			Timestamp:  time.Now(),
			Settings:   full[:],
		})
	}

	optimizer := opt.NewMayfly(iters, popSize, seed)

	start := time.Now()
	result, err := tune.Run(cmd.Context(), exp, goal, active, optimizer, observer)
	if err != nil {
		return fmt.Errorf("tuning failed: %w", err)
	}
	elapsed := time.Since(start)

	if err := trace.Flush(); err != nil {
		slog.Warn("Failed to flush trace", "error", err)
	}

	slog.Info("Tuning completed",
		"bestValue", result.BestValue,
		"initialValue", result.InitialValue,
		"evaluations", result.Evaluations,
		"elapsed", elapsed,
		"eps", float64(result.Evaluations)/elapsed.Seconds())

	fmt.Printf("Goal:          %s\n", result.Goal)
	fmt.Printf("Initial value: %.6g\n", result.InitialValue)
	fmt.Printf("Best value:    %.6g\n", result.BestValue)
	fmt.Printf("Evaluations:   %d\n", result.Evaluations)
	fmt.Printf("Settings:\n")
	for i, q := range result.BestSettings {
		marker := ""
		for _, a := range result.Active {
			if a == i {
				marker = " *"
			}
		}
		fmt.Printf("  Q%d: %.6f%s\n", i+1, q, marker)
	}
	fmt.Printf("Trace: %s\n", trace.Path())

	if runReportPath == "" && runXLSXPath == "" {
		return nil
	}

	var entries []store.TraceEntry
	if reader, err := store.NewTraceReader(runDataDir, jobID); err == nil {
		entries, _ = reader.ReadAll()
		reader.Close()
	}

	if runXLSXPath != "" {
		if err := report.WriteXLSX(runXLSXPath, result, entries); err != nil {
			return fmt.Errorf("failed to write XLSX: %w", err)
		}
		slog.Info("Wrote XLSX export", "path", runXLSXPath)
	}

	if runReportPath != "" {
		// Re-simulate both species at the best settings for the
		// focal plane histograms.
		engine := sim.NewEngine()
		req := sim.Request{
			Rigidity:  exp.Params.Rigidity,
			Gamma:     exp.Params.Gamma,
			Quads:     result.BestSettings,
			Particles: exp.Particles,
			Seed:      exp.Seed,
			Spread:    exp.Spread,
		}
		product, err := engine.Transport(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to simulate reaction product: %w", err)
		}
		req.MassOffset = exp.MassOffset
		req.EnergyOffset = exp.EnergyOffset
		beamRes, err := engine.Transport(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to simulate unreacted beam: %w", err)
		}

		if err := report.WriteHTML(runReportPath, product, beamRes, entries); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		slog.Info("Wrote HTML report", "path", runReportPath)
	}

	return nil
}
