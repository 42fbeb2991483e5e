package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "core-r1", OperationDeploy)

	if event.User != "alice" || event.Device != "core-r1" || event.Operation != OperationDeploy {
		t.Errorf("NewEvent() = %+v", event)
	}
	if event.ID == "" || event.ID == NewEvent("alice", "core-r1", OperationDeploy).ID {
		t.Error("ID should be set and unique")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "core-r1", OperationDeploy).
		WithRun("run-1", "live").
		WithPlan("sha256:abc", 12, 1).
		WithOutcome("PartialFailure", "Closed", false).
		WithDuration(time.Second)

	if event.RunID != "run-1" || event.Mode != "live" {
		t.Errorf("run = %s/%s", event.RunID, event.Mode)
	}
	if event.PlanHash != "sha256:abc" || event.Commands != 12 || event.Rejected != 1 {
		t.Errorf("plan = %s %d %d", event.PlanHash, event.Commands, event.Rejected)
	}
	if event.Outcome != "PartialFailure" || event.FinalStage != "Closed" || event.Success {
		t.Errorf("outcome = %s %s %v", event.Outcome, event.FinalStage, event.Success)
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "core-r1", OperationDeploy).
		WithOutcome("Success", "Closed", true).
		WithError(errors.New("save not acknowledged"))

	if event.Success {
		t.Error("Success should be false after WithError")
	}
	if event.Error != "save not acknowledged" {
		t.Errorf("Error = %q", event.Error)
	}

	event = NewEvent("alice", "core-r1", OperationDeploy).WithOutcome("Success", "Closed", true).WithError(nil)
	if !event.Success || event.Error != "" {
		t.Error("WithError(nil) should not change the event")
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	events := []*Event{
		NewEvent("alice", "core-r1", OperationDeploy).WithRun("run-1", "live").WithOutcome("Success", "Closed", true),
		NewEvent("alice", "edge-r2", OperationDeploy).WithRun("run-1", "live").WithOutcome("PartialFailure", "Closed", false),
		NewEvent("bob", "core-r1", OperationDeploy).WithRun("run-2", "dry-run").WithOutcome("SkippedDryRun", "Closed", true),
		NewEvent("bob", "edge-r3", OperationSkip).WithRun("run-2", "dry-run").WithOutcome("SkippedValidationFailed", "", false),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by device", Filter{Device: "core-r1"}, 2},
		{"by run", Filter{RunID: "run-2"}, 2},
		{"by user", Filter{User: "alice"}, 2},
		{"by outcome", Filter{Outcome: "PartialFailure"}, 1},
		{"success only", Filter{SuccessOnly: true}, 2},
		{"failure only", Filter{FailureOnly: true}, 2},
		{"limit", Filter{Limit: 3}, 3},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
		{"time window", Filter{StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour)}, 4},
		{"future", Filter{StartTime: time.Now().Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("Query(%+v) returned %d events, want %d", tt.filter, len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")
	logger, err := NewFileLogger(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger should create directories: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil || len(results) != 0 {
		t.Errorf("Query on empty log = %d events, %v", len(results), err)
	}
}

func TestFileLogger_MalformedLinesSkipped(t *testing.T) {
	logger, path := newTestLogger(t, RotationConfig{})
	logger.Log(NewEvent("alice", "core-r1", OperationDeploy))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.Close()
	logger.Log(NewEvent("alice", "edge-r2", OperationDeploy))

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events, got %d", len(results))
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, path := newTestLogger(t, RotationConfig{MaxSize: 100, MaxBackups: 2})

	for i := 0; i < 10; i++ {
		if err := logger.Log(NewEvent("alice", "core-r1", OperationDeploy)); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 || len(matches) > 2 {
		t.Errorf("got %d backup files, want 1-2", len(matches))
	}

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != len(matches)+1 {
		t.Errorf("Query should read backups and the active file: %d events, %d backups", len(results), len(matches))
	}
}

func TestFileLogger_OpenError(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when the directory cannot be created")
	}
}

func TestFileLogger_CloseTwice(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)
	defer SetDefaultLogger(nil)

	if err := Log(NewEvent("test", "test", OperationDeploy)); err != nil {
		t.Errorf("Log with nil default should not error: %v", err)
	}
	if results, err := Query(Filter{}); err != nil || len(results) != 0 {
		t.Errorf("Query with nil default = %d, %v", len(results), err)
	}

	logger, _ := newTestLogger(t, RotationConfig{})
	SetDefaultLogger(logger)

	if err := Log(NewEvent("alice", "core-r1", OperationDeploy)); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	if results, err := Query(Filter{}); err != nil || len(results) != 1 {
		t.Errorf("Query = %d results, %v", len(results), err)
	}
}
