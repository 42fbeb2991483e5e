// Package audit records one event per device deployment in a JSON-lines
// log that can be queried by device, run and outcome.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is the audit record of one deployment attempt against one device
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	RunID       string        `json:"run_id,omitempty"`
	User        string        `json:"user"`
	Device      string        `json:"device"`
	Address     string        `json:"address,omitempty"`
	Operation   string        `json:"operation"`
	Mode        string        `json:"mode"`
	PlanHash    string        `json:"plan_hash,omitempty"`
	Outcome     string        `json:"outcome"`
	FinalStage  string        `json:"final_stage,omitempty"`
	Commands    int           `json:"commands"`
	Rejected    int           `json:"rejected"`
	SavedConfig bool          `json:"saved_config"`
	Unchanged   bool          `json:"unchanged,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Operations recorded in the log
const (
	OperationDeploy = "deploy"
	OperationSkip   = "skip"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	RunID       string
	User        string
	Outcome     string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRun sets the run ID and mode
func (e *Event) WithRun(runID, mode string) *Event {
	e.RunID = runID
	e.Mode = mode
	return e
}

// WithPlan sets the plan hash and the number of commands attempted
func (e *Event) WithPlan(hash string, commands, rejected int) *Event {
	e.PlanHash = hash
	e.Commands = commands
	e.Rejected = rejected
	return e
}

// WithOutcome records the deployment outcome. success marks outcomes that
// count as a clean result for the mode.
func (e *Event) WithOutcome(outcome, stage string, success bool) *Event {
	e.Outcome = outcome
	e.FinalStage = stage
	e.Success = success
	return e
}

// WithError sets the error message
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Success = false
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
