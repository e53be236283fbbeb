package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beamphys/beamtune/internal/store"
)

const testExperiment = `
particle:
  mass: 66
  charge: 21
  energy: 3.1212121212121211
recoil:
  mass_offset: -0.015151515151515152
  energy_offset: 0.0
quads:
  nominal: [1.0, 1.0, 1.0, 1.5, 3.0, 2.0, 2.3, 2.5]
  lower: 0.0
  upper: 5.0
  active: [5]
goal: width-fp1
simulator:
  particles: 200
  seed: 3
`

func writeExperiment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(testExperiment), 0644); err != nil {
		t.Fatalf("writing experiment: %v", err)
	}
	return path
}

func TestJobManagerCRUD(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{ExperimentPath: "exp.yaml", Goal: "composite"})
	if job.ID == "" {
		t.Fatal("expected non-empty job ID")
	}
	if job.State != StatePending {
		t.Errorf("new job state = %q, want %q", job.State, StatePending)
	}

	got, exists := jm.GetJob(job.ID)
	if !exists || got.ID != job.ID {
		t.Fatalf("GetJob returned %v, %v", got, exists)
	}

	if _, exists := jm.GetJob("no-such-job"); exists {
		t.Error("GetJob returned a job for an unknown ID")
	}

	if err := jm.UpdateJob(job.ID, func(j *Job) { j.State = StateRunning }); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	got, _ = jm.GetJob(job.ID)
	if got.State != StateRunning {
		t.Errorf("state after update = %q, want %q", got.State, StateRunning)
	}

	if err := jm.UpdateJob("no-such-job", func(j *Job) {}); err == nil {
		t.Error("expected error updating unknown job")
	}

	running := jm.GetRunningJobs()
	if len(running) != 1 || running[0].ID != job.ID {
		t.Errorf("GetRunningJobs = %v", running)
	}

	jm.CreateJob(JobConfig{ExperimentPath: "other.yaml"})
	if got := len(jm.ListJobs()); got != 2 {
		t.Errorf("ListJobs returned %d jobs, want 2", got)
	}
}

func TestCreateJobValidation(t *testing.T) {
	srv := NewServer(":0", t.TempDir(), nil)
	handler := srv.Handler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{not json", http.StatusBadRequest},
		{"missing experiment", `{"goal":"composite"}`, http.StatusBadRequest},
		{"unreadable experiment", `{"experimentPath":"/no/such/file.yaml"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCreateJobRunsToCompletion(t *testing.T) {
	dataDir := t.TempDir()
	fsStore, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	srv := NewServer(":0", dataDir, fsStore)
	handler := srv.Handler()

	body, _ := json.Marshal(JobConfig{
		ExperimentPath: writeExperiment(t),
		Goal:           "width-fp1",
		Iters:          3,
		PopSize:        20,
		Seed:           42,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created Job
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	deadline := time.Now().Add(60 * time.Second)
	for {
		job, exists := srv.jobManager.GetJob(created.ID)
		if !exists {
			t.Fatal("job disappeared")
		}
		if job.State == StateCompleted {
			if len(job.BestSettings) != 8 {
				t.Errorf("BestSettings has %d entries, want 8", len(job.BestSettings))
			}
			if job.Evaluations == 0 {
				t.Error("expected a positive evaluation count")
			}
			break
		}
		if job.State == StateFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %q after deadline", job.State)
		}
		time.Sleep(50 * time.Millisecond)
	}

	// The completed job leaves a checkpoint behind.
	cp, err := fsStore.LoadCheckpoint(created.ID)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if cp.JobID != created.ID {
		t.Errorf("checkpoint jobID = %q, want %q", cp.JobID, created.ID)
	}

	// Status endpoint reflects the terminal state.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID+"/status", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status["state"] != string(StateCompleted) {
		t.Errorf("reported state = %v", status["state"])
	}

	// Trace endpoint returns the recorded evaluations.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID+"/trace", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("trace endpoint = %d", rec.Code)
	}
	var entries []store.TraceEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding trace: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected trace entries")
	}
	// Every entry carries the full candidate gradient set.
	for i, e := range entries {
		if len(e.Settings) != 8 {
			t.Fatalf("entry %d has %d settings, want 8", i, len(e.Settings))
		}
	}
	// Only Q5 is active; the others stay at nominal.
	nominal := []float64{1.0, 1.0, 1.0, 1.5, 3.0, 2.0, 2.3, 2.5}
	for q, v := range entries[0].Settings {
		if q != 4 && v != nominal[q] {
			t.Errorf("entry 0 Q%d = %g, want nominal %g", q+1, v, nominal[q])
		}
	}
}

func TestJobStatusNotFound(t *testing.T) {
	srv := NewServer(":0", t.TempDir(), nil)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/deadbeef/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	srv := NewServer(":0", t.TempDir(), nil)
	srv.jobManager.CreateJob(JobConfig{ExperimentPath: "a.yaml"})
	srv.jobManager.CreateJob(JobConfig{ExperimentPath: "b.yaml"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var jobs []Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decoding jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(jobs))
	}
}

func TestBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	event := ProgressEvent{JobID: "job-1", State: "running", Evaluations: 10, BestValue: 0.5}
	eb.Broadcast(event)

	select {
	case got := <-ch:
		if got.Evaluations != 10 || got.BestValue != 0.5 {
			t.Errorf("received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	// Late subscribers see the last event immediately.
	late := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", late)
	select {
	case got := <-late:
		if got.Evaluations != 10 {
			t.Errorf("replayed event = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no replayed event for late subscriber")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer(":0", t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(":0", t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestGetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ExperimentPath: "exp.yaml"})

	jm.UpdateJob(job.ID, func(j *Job) {
		j.Evaluations = 1
		j.BestValue = 0.5
		j.BestSettings = []float64{1, 2, 3, 4, 5, 6, 7, 8}
	})

	snapshot, _ := jm.GetJob(job.ID)

	jm.UpdateJob(job.ID, func(j *Job) {
		j.Evaluations = 2
		j.BestValue = 0.1
		j.BestSettings[0] = 99
	})

	if snapshot.Evaluations != 1 || snapshot.BestValue != 0.5 {
		t.Errorf("snapshot changed after update: %+v", snapshot)
	}
	if snapshot.BestSettings[0] != 1 {
		t.Errorf("snapshot shares settings slice: %v", snapshot.BestSettings)
	}
}

func TestConcurrentJobAccess(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ExperimentPath: "exp.yaml"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Evaluations = i
				j.BestValue = float64(i)
				j.BestSettings = []float64{float64(i)}
			})
		}
	}()

	for i := 0; i < 1000; i++ {
		got, _ := jm.GetJob(job.ID)
		_ = got.Evaluations
		_ = got.BestValue
		if len(got.BestSettings) > 0 {
			_ = got.BestSettings[0]
		}
		jm.ListJobs()
	}
	<-done
}
