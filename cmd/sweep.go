package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/beamphys/beamtune/internal/config"
	"github.com/beamphys/beamtune/internal/report"
	"github.com/beamphys/beamtune/internal/tune"
	"github.com/spf13/cobra"
)

var (
	sweepConfigPath string
	sweepGoal       string
	sweepQuad       int
	sweepPoints     int
	sweepOutPath    string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep one quad across the search interval",
	Long: `Evaluates the goal on a uniform grid of gradients for a single quad while
the others stay at their nominal settings. Useful to inspect the objective
landscape before committing to a full optimization.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", "", "Experiment file (required)")
	sweepCmd.Flags().StringVar(&sweepGoal, "goal", "", "Override goal")
	sweepCmd.Flags().IntVar(&sweepQuad, "quad", 1, "Quad to sweep (1-8)")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 21, "Number of grid points")
	sweepCmd.Flags().StringVar(&sweepOutPath, "out", "", "Write HTML chart to this path")

	sweepCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(sweepConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}

	goal := cfg.GoalValue()
	if cmd.Flags().Changed("goal") {
		goal, err = tune.ParseGoal(sweepGoal)
		if err != nil {
			return err
		}
	}

	exp, err := cfg.Experiment()
	if err != nil {
		return fmt.Errorf("failed to build experiment: %w", err)
	}

	settings, values, err := tune.Sweep(cmd.Context(), exp, goal, sweepQuad-1, sweepPoints)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Q%d\t%s\n", sweepQuad, goal)
	for i := range settings {
		fmt.Fprintf(w, "%.4f\t%.6g\n", settings[i], values[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if sweepOutPath != "" {
		title := fmt.Sprintf("Q%d sweep, %s", sweepQuad, goal)
		if err := report.WriteSweepHTML(sweepOutPath, title, settings, values); err != nil {
			return fmt.Errorf("failed to write sweep chart: %w", err)
		}
	}
	return nil
}
