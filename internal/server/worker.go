package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beamphys/beamtune/internal/config"
	"github.com/beamphys/beamtune/internal/opt"
	"github.com/beamphys/beamtune/internal/store"
	"github.com/beamphys/beamtune/internal/tune"
)

// runJob executes a tuning job in the background. Job state transitions
// and progress events are pushed through the JobManager.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, dataDir, jobID string) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		slog.Error("Job not found for execution", "jobID", jobID)
		return
	}

	slog.Info("Starting job", "jobID", jobID, "experiment", job.Config.ExperimentPath, "goal", job.Config.Goal)

	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})

	cfg, err := config.Load(job.Config.ExperimentPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("loading experiment: %w", err))
		return
	}

	exp, err := cfg.Experiment()
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("building experiment: %w", err))
		return
	}

	goal := tune.Goal(job.Config.Goal)
	active := job.Config.Active
	if active == nil {
		// Resolve the file's active set now so checkpoints record it
		// and resume can check compatibility against it.
		active = cfg.ActiveIndices()
		job.Config.Active = active
		jm.UpdateJob(jobID, func(j *Job) {
			j.Config.Active = active
		})
	}

	var trace *store.TraceWriter
	if dataDir != "" {
		trace, err = store.NewTraceWriter(dataDir, jobID, false)
		if err != nil {
			slog.Warn("Trace disabled", "jobID", jobID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	stopCheckpoints := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		interval := time.Duration(job.Config.CheckpointInterval) * time.Second
		go monitorCheckpoints(jm, checkpointStore, jobID, interval, stopCheckpoints)
	}

	activeIdx := active
	if len(activeIdx) == 0 {
		activeIdx = []int{0, 1, 2, 3, 4, 5, 6, 7}
	}

	startTime := time.Now()
	observer := func(eval int, candidate []float64, value float64) {
		// Candidates cover only the tuned magnets; checkpoints always
		// hold the full set of eight gradients.
		full := exp.Nominal
		for i, q := range activeIdx {
			if i < len(candidate) {
				full[q] = candidate[i]
			}
		}

		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations = eval
			if j.BestSettings == nil || value < j.BestValue {
				j.BestValue = value
				j.BestSettings = full[:]
			}
		})

		if trace != nil {
			trace.Write(store.TraceEntry{
				Evaluation: eval,
				Value:      value,
				Timestamp:  time.Now(),
				Settings:   full[:],
			})
		}

		elapsed := time.Since(startTime).Seconds()
		eps := float64(0)
		if elapsed > 0 {
			eps = float64(eval) / elapsed
		}
		if j, ok := jm.GetJob(jobID); ok {
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:       jobID,
				State:       j.State,
				Evaluations: eval,
				BestValue:   j.BestValue,
				EPS:         eps,
				Timestamp:   time.Now(),
			})
		}
	}

	optimizer := opt.NewMayfly(job.Config.Iters, job.Config.PopSize, job.Config.Seed)

	result, err := tune.Run(ctx, exp, goal, active, optimizer, observer)

	close(stopCheckpoints)

	if err != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return
		}
		markJobFailed(jm, jobID, err)
		return
	}

	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestSettings = result.BestSettings[:]
		j.BestValue = result.BestValue
		j.InitialValue = result.InitialValue
		j.Evaluations = result.Evaluations
		j.EndTime = &now
	})

	if checkpointStore != nil {
		cp := store.NewCheckpoint(jobID, result.BestSettings[:], result.BestValue, result.InitialValue, result.Evaluations, job.Config)
		if err := checkpointStore.SaveCheckpoint(jobID, cp); err != nil {
			slog.Warn("Failed to save final checkpoint", "jobID", jobID, "error", err)
		}
	}

	if j, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(ProgressEvent{
			JobID:       jobID,
			State:       StateCompleted,
			Evaluations: j.Evaluations,
			BestValue:   j.BestValue,
			Timestamp:   now,
		})
	}

	slog.Info("Job completed", "jobID", jobID,
		"bestValue", result.BestValue, "initialValue", result.InitialValue,
		"evaluations", result.Evaluations, "duration", time.Since(startTime))
}

// monitorCheckpoints periodically snapshots the current best of a
// running job until the stop channel closes.
func monitorCheckpoints(jm *JobManager, checkpointStore store.Store, jobID string, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists || job.State != StateRunning || job.BestSettings == nil {
				continue
			}

			cp := store.NewCheckpoint(jobID, job.BestSettings, job.BestValue, job.InitialValue, job.Evaluations, job.Config)
			if err := checkpointStore.SaveCheckpoint(jobID, cp); err != nil {
				slog.Warn("Failed to save checkpoint", "jobID", jobID, "error", err)
				continue
			}
			slog.Debug("Checkpoint saved", "jobID", jobID, "evaluations", job.Evaluations)
		}
	}
}

func markJobFailed(jm *JobManager, jobID string, err error) {
	slog.Error("Job failed", "jobID", jobID, "error", err)
	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &now
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateFailed,
		Timestamp: now,
	})
}

func markJobCancelled(jm *JobManager, jobID string) {
	slog.Info("Job cancelled", "jobID", jobID)
	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &now
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCancelled,
		Timestamp: now,
	})
}
