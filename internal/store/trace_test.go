package store

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestTraceWriteAndRead(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	entries := []TraceEntry{
		{Evaluation: 1, Value: 0.05, Timestamp: time.Now().UTC()},
		{Evaluation: 2, Value: 0.03, Timestamp: time.Now().UTC(), Settings: []float64{1, 1, 1, 1.5, 3, 2, 2.3, 2.5}},
		{Evaluation: 3, Value: 0.01, Timestamp: time.Now().UTC()},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(dir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Evaluation != e.Evaluation || got[i].Value != e.Value {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], e)
		}
	}
	if len(got[1].Settings) != 8 {
		t.Errorf("settings not round-tripped: %v", got[1].Settings)
	}
}

func TestTraceAppendMode(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-2", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Evaluation: 1, Value: 1.0, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tw, err = NewTraceWriter(dir, "job-2", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Evaluation: 2, Value: 0.5, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTraceReader(dir, "job-2")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("append mode kept %d entries, want 2", len(got))
	}
}

func TestTraceReaderEOF(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-3", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTraceReader(dir, "job-3")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("expected io.EOF on empty trace, got %v", err)
	}
}

func TestTraceReaderMissing(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTrace(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-4", false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Close()

	if err := DeleteTrace(dir, "job-4"); err != nil {
		t.Fatalf("DeleteTrace failed: %v", err)
	}
	// Deleting a missing trace is not an error.
	if err := DeleteTrace(dir, "job-4"); err != nil {
		t.Errorf("second DeleteTrace failed: %v", err)
	}
}
