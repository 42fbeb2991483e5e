package deploy

import (
	"fmt"
	"time"

	"github.com/netcfg-io/netcfg/pkg/compiler"
)

// Mode selects whether a deployment may change the device. There is no
// default: the zero value is rejected.
type Mode string

const (
	DryRun Mode = "dry-run"
	Live   Mode = "live"
)

// Valid reports whether m is DryRun or Live
func (m Mode) Valid() bool {
	return m == DryRun || m == Live
}

// ParseMode accepts "dry-run" or "live"
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown deployment mode %q (want %s or %s)", s, DryRun, Live)
	}
	return m, nil
}

// Outcome is the overall result of one device deployment
type Outcome string

const (
	Success                 Outcome = "Success"
	PartialFailure          Outcome = "PartialFailure"
	Failure                 Outcome = "Failure"
	SkippedDryRun           Outcome = "SkippedDryRun"
	SkippedValidationFailed Outcome = "SkippedValidationFailed"
)

// CleanFor reports whether o is the expected result of a clean run in mode
func (o Outcome) CleanFor(mode Mode) bool {
	switch mode {
	case Live:
		return o == Success
	case DryRun:
		return o == SkippedDryRun
	}
	return false
}

// Stage is a state of the per-device deployment state machine
type Stage string

const (
	StageConnecting         Stage = "Connecting"
	StageAuthenticating     Stage = "Authenticating"
	StagePrivilegeElevating Stage = "PrivilegeElevating"
	StageApplying           Stage = "Applying"
	StageSaving             Stage = "Saving"
	StageVerifying          Stage = "Verifying"
	StageClosed             Stage = "Closed"
	StageAborted            Stage = "Aborted"
)

// RejectPolicy decides what happens after the device rejects a command
type RejectPolicy string

const (
	// RejectContinue records the reject and sends the remaining commands.
	RejectContinue RejectPolicy = "continue"
	// RejectAbort stops at the first reject.
	RejectAbort RejectPolicy = "abort"
)

// Dry-run annotations
const (
	NotePresent    = "already present"
	NoteWouldApply = "would apply"
)

// CommandResult records one plan line
type CommandResult struct {
	Command        string    `json:"command"`
	Accepted       bool      `json:"accepted"`
	Sent           bool      `json:"sent"`
	DeviceResponse string    `json:"deviceResponse"`
	Timestamp      time.Time `json:"timestamp"`
	Note           string    `json:"note,omitempty"`
}

// Report is the result of one deployment attempt against one device. A
// report is complete when Deploy returns and is not modified afterwards.
type Report struct {
	Hostname          string          `json:"hostname"`
	ManagementAddress string          `json:"managementAddress,omitempty"`
	Mode              Mode            `json:"mode"`
	Outcome           Outcome         `json:"outcome"`
	FinalStage        Stage           `json:"finalStage,omitempty"`
	FailedStage       Stage           `json:"failedStage,omitempty"`
	Commands          []CommandResult `json:"commands"`
	SavedConfig       bool            `json:"savedConfig"`
	Verified          bool            `json:"verified"`
	Unchanged         bool            `json:"unchanged,omitempty"`
	Warnings          []string        `json:"warnings,omitempty"`
	Error             string          `json:"error,omitempty"`
	Attempts          int             `json:"attempts"`
	DurationMs        int64           `json:"durationMs"`
	PlanHash          string          `json:"planHash,omitempty"`

	err error
}

// NewSkippedReport is the report for a device that was never contacted
func NewSkippedReport(hostname, address string, mode Mode, outcome Outcome, err error) *Report {
	r := &Report{
		Hostname:          hostname,
		ManagementAddress: address,
		Mode:              mode,
		Outcome:           outcome,
		Commands:          []CommandResult{},
	}
	r.setErr(err)
	return r
}

func newReport(plan *compiler.CommandPlan, address string, mode Mode) *Report {
	return &Report{
		Hostname:          plan.Hostname(),
		ManagementAddress: address,
		Mode:              mode,
		Commands:          []CommandResult{},
		PlanHash:          plan.Hash(),
	}
}

// Err returns the error that ended or degraded the deployment, if any
func (r *Report) Err() error { return r.err }

// Rejected counts commands the device answered with an error
func (r *Report) Rejected() int {
	n := 0
	for _, c := range r.Commands {
		if c.Sent && !c.Accepted {
			n++
		}
	}
	return n
}

// SentCount counts commands transmitted to the device
func (r *Report) SentCount() int {
	n := 0
	for _, c := range r.Commands {
		if c.Sent {
			n++
		}
	}
	return n
}

func (r *Report) setErr(err error) {
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Report) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// abort ends the deployment in the Aborted state
func (r *Report) abort(stage Stage, outcome Outcome, err error) {
	r.FailedStage = stage
	r.FinalStage = StageAborted
	r.Outcome = outcome
	r.setErr(err)
}
