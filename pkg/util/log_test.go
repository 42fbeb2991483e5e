package util

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

func TestSetLogLevel(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSetLogFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)

	if err := SetLogFormat("json"); err != nil {
		t.Fatalf("SetLogFormat(json): %v", err)
	}
	WithDevice("r1").Info("test json")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("Expected JSON output starting with '{', got: %s", output)
	}
	if !strings.Contains(output, `"device":"r1"`) {
		t.Errorf("Expected device field in output, got: %s", output)
	}

	if err := SetLogFormat("xml"); err == nil {
		t.Error("SetLogFormat(xml) should fail")
	}
}

func TestWithStage(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("debug")

	WithStage("r1", "applying").Debug("sending")
	WithRun("run-1").Warn("cancelled")

	output := buf.String()
	for _, want := range []string{"stage=applying", "device=r1", "run=run-1"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("warn")

	Logger.Debugf("debug %d", 1)
	Logger.Infof("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("Expected no output below warn level, got: %s", buf.String())
	}

	Warnf("warn %d", 3)
	Logger.Errorf("error %d", 4)
	if !strings.Contains(buf.String(), "warn 3") || !strings.Contains(buf.String(), "error 4") {
		t.Errorf("Expected warn and error output, got: %s", buf.String())
	}
}
